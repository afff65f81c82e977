// Package session drives one streamed assistant reply and relays it to the
// caller as a sequence of chunks ending in exactly one final chunk.
package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/healthagent/internal/agent"
	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/metrics"
)

// DefaultFailureMessage is shown to the user when the model cannot be reached.
const DefaultFailureMessage = "抱歉，AI 助手暂时不可用，请稍后再试。"

// MaxBuffer bounds the chunk channel capacity.
const MaxBuffer = 64

// errNoFinal is reported when the transport ends without a final output.
var errNoFinal = errors.New("stream ended without a final reply")

// Chunk is one unit of the streamed reply. Only the final chunk's ChangeLog may
// be acted upon.
type Chunk struct {
	Content    string                 `json:"content"`
	NeedChange bool                   `json:"need_change"`
	ChangeLog  []changelog.ChangeItem `json:"change_log"`
	IsFinal    bool                   `json:"is_final"`
	// Failed marks the synthetic final chunk produced after a transport error.
	Failed bool `json:"failed,omitempty"`
}

// State is a step of the session lifecycle.
type State int

const (
	StateSending State = iota
	StateStreaming
	StateCompleting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleting:
		return "completing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config tunes a Controller.
type Config struct {
	// FailureMessage replaces the content of the synthetic final chunk.
	FailureMessage string
	// Buffer is the chunk channel capacity. Zero means unbuffered.
	Buffer int
}

// Controller runs sessions against a transport. It is safe for concurrent use;
// every Run is independent.
type Controller struct {
	transport agent.Transport
	cfg       Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewController creates a Controller. m may be nil.
func NewController(t agent.Transport, cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Controller {
	if cfg.FailureMessage == "" {
		cfg.FailureMessage = DefaultFailureMessage
	}
	cfg.Buffer = min(max(cfg.Buffer, 0), MaxBuffer)
	return &Controller{
		transport: t,
		cfg:       cfg,
		logger:    logger.With().Str("component", "session").Logger(),
		metrics:   m,
	}
}

// Run starts streaming the reply to req. The returned channel yields partial
// chunks followed by exactly one final chunk, then closes. If ctx is cancelled
// the controller stops reading, releases the transport and closes the channel
// without sending anything further. Callers that stop reading early must
// cancel ctx.
func (c *Controller) Run(ctx context.Context, req *conversation.Request) <-chan Chunk {
	ch := make(chan Chunk, c.cfg.Buffer)
	go c.run(ctx, req, ch)
	return ch
}

type run struct {
	c      *Controller
	ch     chan<- Chunk
	logger zerolog.Logger
	state  State
}

func (c *Controller) run(ctx context.Context, req *conversation.Request, ch chan<- Chunk) {
	defer close(ch)

	started := time.Now()
	r := &run{c: c, ch: ch, logger: c.logger.With().Int64("user_id", req.UserID).Logger(), state: StateSending}
	outcome := r.drive(ctx, req)
	c.metrics.RecordSession(outcome, time.Since(started))
	r.logger.Debug().Str("outcome", outcome).Stringer("state", r.state).Dur("elapsed", time.Since(started)).Msg("session finished")
}

// drive runs the state machine and returns the outcome label.
func (r *run) drive(ctx context.Context, req *conversation.Request) string {
	stream, err := r.c.transport.Stream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "cancelled"
		}
		return r.fail(ctx, err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			r.logger.Debug().Err(err).Msg("closing transport stream")
		}
	}()

	r.state = StateStreaming
	for {
		out, err := stream.Next(ctx)
		if ctx.Err() != nil {
			return "cancelled"
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errNoFinal
			}
			return r.fail(ctx, err)
		}

		if out.Final {
			r.state = StateCompleting
		}
		if !r.send(ctx, chunkFrom(out)) {
			return "cancelled"
		}
		if out.Final {
			r.state = StateDone
			return "done"
		}
	}
}

func (r *run) fail(ctx context.Context, err error) string {
	r.logger.Error().Err(err).Stringer("state", r.state).Msg("assistant stream failed")
	r.state = StateFailed
	if !r.send(ctx, Chunk{
		Content:   r.c.cfg.FailureMessage,
		ChangeLog: []changelog.ChangeItem{},
		IsFinal:   true,
		Failed:    true,
	}) {
		return "cancelled"
	}
	return "failed"
}

// send delivers chunk unless ctx is done. A ready channel never wins over an
// already cancelled ctx.
func (r *run) send(ctx context.Context, chunk Chunk) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case r.ch <- chunk:
	case <-ctx.Done():
		return false
	}
	switch {
	case chunk.Failed:
		r.c.metrics.RecordChunk("failed")
	case chunk.IsFinal:
		r.c.metrics.RecordChunk("final")
	default:
		r.c.metrics.RecordChunk("partial")
	}
	return true
}

func chunkFrom(out agent.Output) Chunk {
	log := out.ChangeLog
	if log == nil {
		log = []changelog.ChangeItem{}
	}
	return Chunk{
		Content:    out.Content,
		NeedChange: out.NeedChange,
		ChangeLog:  log,
		IsFinal:    out.Final,
	}
}
