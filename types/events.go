package types

import (
	"bytes"

	"github.com/bytedance/sonic"
)

// Inbound real-time event names.
const (
	EventMessage         = "message"
	EventCalendarCreated = "calendar_event_created"
	EventCalendarUpdated = "calendar_event_updated"
	EventCalendarDeleted = "calendar_event_deleted"
)

// EventKind tags the notification built from an inbound event.
type EventKind string

const (
	KindMessage         EventKind = "message"
	KindCalendarCreated EventKind = "calendar_created"
	KindCalendarUpdated EventKind = "calendar_updated"
	KindCalendarDeleted EventKind = "calendar_deleted"
)

// KindForEvent maps a wire event name to its kind.
func KindForEvent(name string) (EventKind, bool) {
	switch name {
	case EventMessage:
		return KindMessage, true
	case EventCalendarCreated:
		return KindCalendarCreated, true
	case EventCalendarUpdated:
		return KindCalendarUpdated, true
	case EventCalendarDeleted:
		return KindCalendarDeleted, true
	}
	return "", false
}

// ID is an identifier that may be sent as a JSON string or number.
// It always compares as its string form.
type ID string

// UnmarshalJSON accepts "u1", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	// numbers and anything else non-string: keep the literal
	*id = ID(data)
	return nil
}

// Empty reports whether the id is unset.
func (id ID) Empty() bool {
	return id == ""
}

// IDList is a list of ids. A single id is read as a one-element list and anything
// that is neither is read as no list.
type IDList []ID

func (l *IDList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")) || data[0] == '{':
		*l = nil
	case data[0] == '[':
		var ids []ID
		if err := sonic.Unmarshal(data, &ids); err != nil {
			*l = nil
			return nil
		}
		*l = ids
	default:
		var id ID
		if err := id.UnmarshalJSON(data); err != nil || id.Empty() {
			*l = nil
			return nil
		}
		*l = IDList{id}
	}
	return nil
}

// Text is a display field. Numbers and booleans keep their literal form, objects and
// arrays read as empty, so a stray type never fails the surrounding payload.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			*t = ""
			return nil
		}
		*t = Text(s)
	case '{', '[', 'n':
		*t = ""
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// MessagePayload is the body of a "message" event.
type MessagePayload struct {
	SenderID    ID     `json:"senderId"`
	SenderName  Text   `json:"senderName"`
	Message     Text   `json:"message"`
	MessageID   ID     `json:"messageId"`
	ProjectName Text   `json:"projectName"`
	ReceiverIDs IDList `json:"receiverIds,omitempty"`
	Timestamp   Text   `json:"timestamp,omitempty"` // ISO string or epoch millis
}

// HasReceiver reports whether id appears in the receiver list.
func (p *MessagePayload) HasReceiver(id ID) bool {
	for _, r := range p.ReceiverIDs {
		if r == id {
			return true
		}
	}
	return false
}

// CalendarPayload is the body of a calendar_event_* event.
type CalendarPayload struct {
	EventID     ID   `json:"eventId"`
	Title       Text `json:"title"`
	Type        Text `json:"type"`
	Date        Text `json:"date"`
	Time        Text `json:"time"`
	Description Text `json:"description"`
	ActorID     ID   `json:"actorId"`
	ActorName   Text `json:"actorName"`
	Reason      Text `json:"reason,omitempty"`
	Timestamp   Text `json:"timestamp,omitempty"`
}
