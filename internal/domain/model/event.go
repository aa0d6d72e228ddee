// Package model contains domain models passed between layers.
package model

// DateTimeZone is an instant paired with a timezone label.
// Fields mirror the Graph dateTimeTimeZone resource.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// EmailAddress identifies a mailbox.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Recipient wraps an email address the way Graph does for organizers and attendees.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// CalendarEvent is a calendar entry as returned by the calendar source.
// Organizer and Attendees are carried through but never analysed.
type CalendarEvent struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Start       DateTimeZone `json:"start"`
	End         DateTimeZone `json:"end"`
	IsAllDay    bool         `json:"isAllDay,omitempty"`
	BodyPreview string       `json:"bodyPreview,omitempty"`
	Organizer   *Recipient   `json:"organizer,omitempty"`
	Attendees   []Recipient  `json:"attendees,omitempty"`
}

// ItemBody is the body of an event to be created.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// NewEvent is the payload for creating a calendar event.
type NewEvent struct {
	Subject   string       `json:"subject"`
	Start     DateTimeZone `json:"start"`
	End       DateTimeZone `json:"end"`
	Body      *ItemBody    `json:"body,omitempty"`
	Attendees []Recipient  `json:"attendees,omitempty"`
}

// AsCalendarEvent returns the event as it would be read back once created.
func (e NewEvent) AsCalendarEvent(id string) CalendarEvent {
	ev := CalendarEvent{
		ID:        id,
		Subject:   e.Subject,
		Start:     e.Start,
		End:       e.End,
		Attendees: e.Attendees,
	}
	if e.Body != nil {
		ev.BodyPreview = e.Body.Content
	}
	return ev
}
