package model

import (
	"encoding/json"
	"time"

	"github.com/slack-go/slack/slackevents"
)

// Kind classifies an inbound envelope by its top-level type.
type Kind int

const (
	KindUnknown Kind = iota
	KindURLVerification
	KindEventCallback
)

func (k Kind) String() string {
	switch k {
	case KindURLVerification:
		return slackevents.URLVerification
	case KindEventCallback:
		return slackevents.CallbackEvent
	default:
		return "unknown"
	}
}

// Envelope is the top-level body Slack pushes to the events endpoint.
type Envelope struct {
	Token     string        `json:"token"`
	Type      string        `json:"type"`
	Challenge string        `json:"challenge,omitempty"`
	TeamID    string        `json:"team_id,omitempty"`
	EventID   string        `json:"event_id,omitempty"`
	Event     *EventPayload `json:"event,omitempty"`
}

func (e Envelope) Kind() Kind {
	switch e.Type {
	case slackevents.URLVerification:
		return KindURLVerification
	case slackevents.CallbackEvent:
		return KindEventCallback
	default:
		return KindUnknown
	}
}

// EventPayload is the inner event of an event_callback envelope.
// Raw keeps the bytes exactly as received so handlers can decode the
// variant they own and unsupported events can be echoed back untouched.
type EventPayload struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Name    string `json:"name,omitempty"`
	Value   string `json:"value,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (p *EventPayload) UnmarshalJSON(data []byte) error {
	type fields EventPayload
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = EventPayload(f)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (p EventPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type fields EventPayload
	return json.Marshal(fields(p))
}

// NotificationMessage is what gets posted to the incoming webhook.
type NotificationMessage struct {
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Receipt describes what a Notifier did with a message.
type Receipt struct {
	Delivered bool
	Queued    bool
	TaskID    string
}

// Task wraps a notification with retry metadata
type Task struct {
	ID          string              `json:"id"`
	Message     NotificationMessage `json:"message"`
	RetryCount  int                 `json:"retry_count"`
	MaxRetries  int                 `json:"max_retries"`
	NextRetryAt time.Time           `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	LastError   string              `json:"last_error,omitempty"`
}
