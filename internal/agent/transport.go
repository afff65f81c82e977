package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/llm"
)

// ErrEmptyReply is returned when the model finishes without producing any text.
var ErrEmptyReply = errors.New("assistant returned an empty reply")

// Options are the completion parameters used for every request.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// LLMTransport streams replies from an LLM provider and decodes them
// incrementally into Outputs.
type LLMTransport struct {
	provider llm.StreamingProvider
	opts     Options
	logger   zerolog.Logger
}

// NewLLMTransport creates a transport backed by provider.
func NewLLMTransport(provider llm.StreamingProvider, opts Options, logger zerolog.Logger) *LLMTransport {
	return &LLMTransport{provider: provider, opts: opts, logger: logger}
}

// Stream sends req to the model and returns a stream of decoded outputs.
func (t *LLMTransport) Stream(ctx context.Context, req *conversation.Request) (Stream, error) {
	creq := llm.CompletionRequest{
		Model:       t.opts.Model,
		Messages:    chatMessages(req),
		MaxTokens:   t.opts.MaxTokens,
		Temperature: t.opts.Temperature,
		JSONMode:    true,
	}
	chunks, err := t.provider.Stream(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("opening %s stream: %w", t.provider.Name(), err)
	}
	return &llmStream{
		chunks:  chunks,
		logger:  t.logger.With().Str("provider", t.provider.Name()).Int64("user_id", req.UserID).Logger(),
		model:   t.opts.Model,
		prompt:  creq.Messages,
		started: time.Now(),
	}, nil
}

type llmStream struct {
	chunks llm.ChunkStream
	logger zerolog.Logger
	model  string
	prompt []llm.Message

	started time.Time
	buf     strings.Builder
	last    Output
	done    bool

	closeOnce sync.Once
	closeErr  error
}

func (s *llmStream) Next(ctx context.Context) (Output, error) {
	if s.done {
		return Output{}, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		delta, err := s.chunks.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return s.finish()
		}
		if err != nil {
			return Output{}, fmt.Errorf("receiving reply: %w", err)
		}
		s.buf.WriteString(delta)

		out, ok := parsePartial(s.buf.String())
		if !ok || sameOutput(out, s.last) {
			continue
		}
		s.last = out
		return out, nil
	}
}

func (s *llmStream) finish() (Output, error) {
	text := s.buf.String()
	if strings.TrimSpace(text) == "" {
		return Output{}, ErrEmptyReply
	}
	out, ok := parseReply(text)
	if !ok {
		s.logger.Warn().Int("bytes", len(text)).Msg("reply is not JSON, using raw text")
		out = Output{Content: strings.TrimSpace(text), ChangeLog: []changelog.ChangeItem{}, Final: true}
	}

	inputTokens := llm.EstimateMessageTokens(s.prompt)
	outputTokens := llm.EstimateTokens(text)
	s.logger.Debug().
		Int("input_tokens", inputTokens).
		Int("output_tokens", outputTokens).
		Float64("cost_usd", llm.EstimateCost(s.model, inputTokens, outputTokens)).
		Dur("elapsed", time.Since(s.started)).
		Bool("need_change", out.NeedChange).
		Int("change_items", len(out.ChangeLog)).
		Msg("reply complete")
	return out, nil
}

func (s *llmStream) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.chunks.Close() })
	return s.closeErr
}

func sameOutput(a, b Output) bool {
	return a.Content == b.Content &&
		a.NeedChange == b.NeedChange &&
		slices.EqualFunc(a.ChangeLog, b.ChangeLog, func(x, y changelog.ChangeItem) bool {
			return x.Field == y.Field && x.Value == y.Value && equalReason(x.Reason, y.Reason)
		})
}

func equalReason(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
