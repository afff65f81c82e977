// Package agent talks to the assistant model: it renders conversation requests
// into prompts, streams the reply and decodes it into structured outputs.
package agent

import (
	"context"

	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/conversation"
)

// Output is one decoded view of the assistant reply. Partial outputs carry the
// reply as parsed so far; exactly one Final output ends a stream. ChangeLog is
// already sanitized.
type Output struct {
	Content    string
	NeedChange bool
	ChangeLog  []changelog.ChangeItem
	Final      bool
}

// Stream yields outputs in order. Next returns io.EOF after the final output.
// Close may be called at any time and more than once.
type Stream interface {
	Next(ctx context.Context) (Output, error)
	Close() error
}

// Transport opens a reply stream for a composed request.
type Transport interface {
	Stream(ctx context.Context, req *conversation.Request) (Stream, error)
}
