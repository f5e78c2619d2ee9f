package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/fistoar/crm-realtime/types"
)

// Notification titles per event kind.
const (
	TitleMessage         = "New Message"
	TitleCalendarCreated = "New Calendar Event"
	TitleCalendarUpdated = "Calendar Event Updated"
	TitleCalendarDeleted = "Calendar Event Deleted"

	unknownName   = "Unknown"
	untitledEvent = "Untitled event"
)

// Content is a formatted notification, independent of how it is delivered.
type Content struct {
	Kind  types.EventKind
	Title string
	Body  string // multi-line, for native notifications
	Toast string // single line, for the in-app fallback
	Tag   string
	Data  map[string]any
}

// DecodeMessage reads a message event, flat or wrapped as {"message": {...}}.
func DecodeMessage(payload []byte) (*types.MessagePayload, error) {
	body, err := unwrap(payload, "message")
	if err != nil {
		return nil, err
	}
	var p types.MessagePayload
	if err := sonic.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode message event: %v", err)
	}
	return &p, nil
}

// DecodeCalendar reads a calendar event, flat or wrapped as {"event": {...}}.
// Top-level actor and reason fields fill in what the wrapped event lacks.
func DecodeCalendar(payload []byte) (*types.CalendarPayload, error) {
	body, err := unwrap(payload, "event")
	if err != nil {
		return nil, err
	}
	var p types.CalendarPayload
	if err := sonic.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode calendar event: %v", err)
	}
	if !bytes.Equal(body, payload) {
		var outer types.CalendarPayload
		if err := sonic.Unmarshal(payload, &outer); err == nil {
			if p.ActorID.Empty() {
				p.ActorID = outer.ActorID
			}
			if p.ActorName == "" {
				p.ActorName = outer.ActorName
			}
			if p.Reason == "" {
				p.Reason = outer.Reason
			}
		}
	}
	return &p, nil
}

// unwrap returns the object under key when present, else the payload itself.
func unwrap(payload []byte, key string) ([]byte, error) {
	var wrapper map[string]json.RawMessage
	if err := sonic.Unmarshal(payload, &wrapper); err != nil {
		return nil, fmt.Errorf("event payload is not a JSON object: %v", err)
	}
	inner := bytes.TrimSpace(wrapper[key])
	if len(inner) > 0 && inner[0] == '{' {
		return inner, nil
	}
	return payload, nil
}

// FormatMessage builds the notification for a chat message.
func FormatMessage(p *types.MessagePayload, now time.Time) Content {
	sender := orDefault(p.SenderName.String(), unknownName)
	project := p.ProjectName.String()
	message := p.Message.String()

	lines := []string{"From: " + sender}
	if project != "" {
		lines = append(lines, "Project: "+project)
	}
	if message != "" {
		lines = append(lines, message)
	}

	toast := sender + " sent you a message"
	if message != "" {
		toast = sender + ": " + message
	}

	return Content{
		Kind:  types.KindMessage,
		Title: TitleMessage,
		Body:  strings.Join(lines, "\n"),
		Toast: toast,
		Tag:   tag("message", p.MessageID, now),
		Data: map[string]any{
			"messageId":   string(p.MessageID),
			"senderId":    string(p.SenderID),
			"projectName": project,
		},
	}
}

// FormatCalendar builds the notification for a calendar change of the given kind.
func FormatCalendar(kind types.EventKind, p *types.CalendarPayload, now time.Time) Content {
	title, verb, tagKind := TitleCalendarCreated, "created", "calendar-created"
	switch kind {
	case types.KindCalendarUpdated:
		title, verb, tagKind = TitleCalendarUpdated, "updated", "calendar-updated"
	case types.KindCalendarDeleted:
		title, verb, tagKind = TitleCalendarDeleted, "deleted", "calendar-deleted"
	}

	eventTitle := orDefault(p.Title.String(), untitledEvent)
	actor := orDefault(p.ActorName.String(), unknownName)
	eventType := p.Type.String()

	lines := []string{eventTitle}
	if eventType != "" {
		lines = append(lines, "Type: "+eventType)
	}
	if when := strings.TrimSpace(p.Date.String() + " " + p.Time.String()); when != "" {
		lines = append(lines, "When: "+when)
	}
	if p.Description != "" {
		lines = append(lines, p.Description.String())
	}
	lines = append(lines, "By: "+actor)
	if kind == types.KindCalendarDeleted && p.Reason != "" {
		lines = append(lines, "Reason: "+p.Reason.String())
	}

	return Content{
		Kind:  kind,
		Title: title,
		Body:  strings.Join(lines, "\n"),
		Toast: fmt.Sprintf("%s %s %q", actor, verb, eventTitle),
		Tag:   tag(tagKind, p.EventID, now),
		Data: map[string]any{
			"eventId": string(p.EventID),
			"actorId": string(p.ActorID),
			"type":    eventType,
		},
	}
}

// tag is prefix-<id>, or prefix-<unix nanos> when the event carries no id.
func tag(prefix string, id types.ID, now time.Time) string {
	if id.Empty() {
		return prefix + "-" + strconv.FormatInt(now.UnixNano(), 10)
	}
	return prefix + "-" + string(id)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
