package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventTemplate describes an event to create, without its times. The
// scheduling service fills in the slot it found.
type EventTemplate struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	// TimeZone is an IANA zone name for the event times. Empty means UTC.
	TimeZone string `json:"time_zone,omitempty"`
	// SendUpdates mails invitations to attendees.
	SendUpdates bool `json:"send_updates,omitempty"`
	// AddConference requests a Google Meet link.
	AddConference bool `json:"add_conference,omitempty"`
}

// EventInput is an EventTemplate placed at concrete times.
type EventInput struct {
	EventTemplate
	Start time.Time
	End   time.Time
}

// Event is a created calendar event.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Status      string     `json:"status,omitempty"`
	Organizer   string     `json:"organizer,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	HTMLLink    string     `json:"html_link,omitempty"`
	MeetLink    string     `json:"meet_link,omitempty"`
}

// Attendee is an event attendee.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
	ResponseStatus string `json:"response_status,omitempty"` // "needsAction", "declined", "tentative", "accepted"
	Optional       bool   `json:"optional,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
}

// toEvent converts a Google Calendar event. A nil event yields the zero Event.
func toEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{}
	}
	out := Event{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
		Start:       parseEventTime(event.Start),
		End:         parseEventTime(event.End),
	}

	if event.Organizer != nil {
		out.Organizer = event.Organizer.Email
	}

	for _, att := range event.Attendees {
		out.Attendees = append(out.Attendees, Attendee{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Optional:       att.Optional,
			Organizer:      att.Organizer,
		})
	}

	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				out.MeetLink = ep.Uri
				break
			}
		}
	}
	return out
}

func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse(time.DateOnly, edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
