package calendar

import "strings"

// Event is the subset of a Google Calendar event the service touches.
type Event struct {
	ID             string          `json:"id,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Description    string          `json:"description,omitempty"`
	Start          EventTime       `json:"start"`
	End            EventTime       `json:"end"`
	Attendees      []Attendee      `json:"attendees,omitempty"`
	ConferenceData *ConferenceData `json:"conferenceData,omitempty"`
	HangoutLink    string          `json:"hangoutLink,omitempty"`
}

// EventTime is a zoned wall-clock boundary of an event.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Attendee is an invited participant.
type Attendee struct {
	Email string `json:"email"`
}

// ConferenceData carries the conferencing request and the provisioned
// entry points once the event exists.
type ConferenceData struct {
	CreateRequest *CreateConferenceRequest `json:"createRequest,omitempty"`
	EntryPoints   []EntryPoint             `json:"entryPoints,omitempty"`
}

// CreateConferenceRequest asks Calendar to provision a Meet room.
type CreateConferenceRequest struct {
	RequestID string `json:"requestId"`
}

// EntryPoint is one way of joining the conference.
type EntryPoint struct {
	EntryPointType string `json:"entryPointType"`
	URI            string `json:"uri"`
}

// MeetingLink extracts the video entry point URI of an event, falling back
// to the legacy hangout link.
func (e *Event) MeetingLink() string {
	if e.ConferenceData != nil {
		for _, ep := range e.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" || strings.Contains(ep.URI, "meet") {
				return ep.URI
			}
		}
	}
	return e.HangoutLink
}
