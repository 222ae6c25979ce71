package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Speaker identifies who authored a conversation turn.
type Speaker string

// Speakers. The assistant is serialised as "bot" on the wire.
const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "bot"
)

// AttachmentKind discriminates attachment variants on the wire.
type AttachmentKind string

// Attachment kinds.
const (
	AttachmentKindIncidentList AttachmentKind = "incident-list"
)

// Attachment is a structured payload carried by an assistant turn.
// A nil Attachment means the turn has none. The set of variants is closed.
type Attachment interface {
	Kind() AttachmentKind
	sealed()
}

// IncidentListAttachment lists incidents for richer rendering.
type IncidentListAttachment struct {
	Incidents []IncidentSummary
}

// Kind implements Attachment.
func (IncidentListAttachment) Kind() AttachmentKind { return AttachmentKindIncidentList }

func (IncidentListAttachment) sealed() {}

// MarshalJSON renders the attachment as {"type":"incident-list","incidents":[...]}.
func (a IncidentListAttachment) MarshalJSON() ([]byte, error) {
	incidents := a.Incidents
	if incidents == nil {
		incidents = []IncidentSummary{}
	}
	return json.Marshal(struct {
		Type      AttachmentKind    `json:"type"`
		Incidents []IncidentSummary `json:"incidents"`
	}{Type: a.Kind(), Incidents: incidents})
}

// DecodeAttachment parses the wire form of an attachment. Empty input yields nil.
func DecodeAttachment(raw json.RawMessage) (Attachment, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var head struct {
		Type      AttachmentKind    `json:"type"`
		Incidents []IncidentSummary `json:"incidents"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}

	switch head.Type {
	case AttachmentKindIncidentList:
		return IncidentListAttachment{Incidents: head.Incidents}, nil
	default:
		return nil, fmt.Errorf("unknown attachment type %q", head.Type)
	}
}

// Turn is one entry of a conversation. Turns are never edited once appended.
type Turn struct {
	ID         string
	Speaker    Speaker
	Content    string
	Timestamp  time.Time
	Attachment Attachment
}

type turnJSON struct {
	ID        string          `json:"id"`
	Type      Speaker         `json:"type"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON renders the turn in the chat wire format.
func (t Turn) MarshalJSON() ([]byte, error) {
	out := turnJSON{
		ID:        t.ID,
		Type:      t.Speaker,
		Content:   t.Content,
		Timestamp: t.Timestamp,
	}
	if t.Attachment != nil {
		data, err := json.Marshal(t.Attachment)
		if err != nil {
			return nil, err
		}
		out.Data = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the chat wire format.
func (t *Turn) UnmarshalJSON(b []byte) error {
	var in turnJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	attachment, err := DecodeAttachment(in.Data)
	if err != nil {
		return err
	}
	*t = Turn{
		ID:         in.ID,
		Speaker:    in.Type,
		Content:    in.Content,
		Timestamp:  in.Timestamp,
		Attachment: attachment,
	}
	return nil
}
