// Package audit records what happened to every change item the assistant
// proposed, so users can see which edits were applied and which were dropped.
package audit

import (
	"fmt"
	"time"

	"github.com/ziadkadry99/healthagent/internal/changelog"
)

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser      ActorType = "user"
	ActorAssistant ActorType = "assistant"
	ActorSystem    ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionChangeApplied Action = "change_applied"
	ActionChangeDropped Action = "change_dropped"
)

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
	ActorType ActorType `json:"actor_type"`
	Action    Action    `json:"action"`
	// Scope is the record scope of Field, or "unknown" for fields outside the table.
	Scope     string  `json:"scope"`
	Field     string  `json:"field"`
	Summary   string  `json:"summary"`
	Reason    *string `json:"reason,omitempty"`
	MessageID *int64  `json:"message_id,omitempty"`
	RawValue  *string `json:"raw_value,omitempty"`
	NewValue  *string `json:"new_value,omitempty"`
}

const unknownScope = "unknown"

// FromResult builds one entry per applied and dropped item of res. messageID
// links the entries to the assistant message that proposed them and may be nil.
func FromResult(userID int64, messageID *int64, res *changelog.Result) []Entry {
	if res == nil {
		return nil
	}
	entries := make([]Entry, 0, len(res.Applied)+len(res.Dropped))
	for _, a := range res.Applied {
		value := a.Text
		entries = append(entries, Entry{
			UserID:    userID,
			ActorType: ActorAssistant,
			Action:    ActionChangeApplied,
			Scope:     string(a.Scope),
			Field:     a.Field,
			Summary:   fmt.Sprintf("%s set to %s", a.Field, a.Text),
			Reason:    a.Reason,
			MessageID: messageID,
			NewValue:  &value,
		})
	}
	for _, d := range res.Dropped {
		scope := unknownScope
		if rule, ok := changelog.Lookup(d.Item.Field); ok {
			scope = string(rule.Scope)
		}
		raw := d.Item.Value
		entries = append(entries, Entry{
			UserID:    userID,
			ActorType: ActorAssistant,
			Action:    ActionChangeDropped,
			Scope:     scope,
			Field:     d.Item.Field,
			Summary:   fmt.Sprintf("%s not applied: %s", d.Item.Field, d.Why),
			Reason:    d.Item.Reason,
			MessageID: messageID,
			RawValue:  &raw,
		})
	}
	return entries
}
