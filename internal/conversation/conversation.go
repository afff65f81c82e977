// Package conversation assembles the request sent to the assistant model from
// stored context, history and the user's new utterance.
package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/ziadkadry99/healthagent/internal/health"
)

// DefaultWindow is the number of stored messages replayed to the model.
const DefaultWindow = 50

// ErrEmptyUtterance is returned when the user's input is blank after trimming.
var ErrEmptyUtterance = errors.New("请输入有效的对话内容。")

// Context is the user's current health state.
type Context struct {
	// Metric may be nil: chat is allowed before the first measurement.
	Metric     *health.Metric     `json:"metric"`
	Preference *health.Preference `json:"preference,omitempty"`
}

// Request is everything the model transport needs for one exchange.
type Request struct {
	UserID    int64            `json:"user_id"`
	Context   Context          `json:"context"`
	History   []health.Message `json:"history"`
	Utterance string           `json:"utterance"`
}

// NormalizeUtterance trims raw and rejects blank input.
func NormalizeUtterance(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", ErrEmptyUtterance
	}
	return u, nil
}

// Compose builds a Request. history must be oldest-first; only the newest
// window messages are kept (window <= 0 uses DefaultWindow). The utterance is
// checked before anything else so callers can fail fast.
func Compose(ctx context.Context, userID int64, c Context, history []health.Message, utterance string, window int) (*Request, error) {
	u, err := NormalizeUtterance(utterance)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	bounded := make([]health.Message, len(history))
	copy(bounded, history)

	return &Request{
		UserID:    userID,
		Context:   c,
		History:   bounded,
		Utterance: u,
	}, nil
}

// Loader is the read side of the store that Assemble needs.
type Loader interface {
	LatestMetric(ctx context.Context, userID int64) (*health.Metric, error)
	GetPreference(ctx context.Context, userID int64) (*health.Preference, error)
	ListMessages(ctx context.Context, userID int64, limit int) ([]health.Message, error)
}

// Assemble validates the utterance, then loads context and history from store
// and composes the request. No I/O happens for a blank utterance.
func Assemble(ctx context.Context, store Loader, userID int64, utterance string, window int) (*Request, error) {
	if _, err := NormalizeUtterance(utterance); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultWindow
	}

	metric, err := store.LatestMetric(ctx, userID)
	if err != nil {
		return nil, err
	}
	pref, err := store.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := store.ListMessages(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	return Compose(ctx, userID, Context{Metric: metric, Preference: pref}, history, utterance, window)
}
