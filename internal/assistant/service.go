// Package assistant is the caller boundary of the chat pipeline: it starts
// streaming sessions, relays their chunks to a transport, and once the final
// chunk is delivered persists the exchange and applies the proposed changes.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/healthagent/internal/audit"
	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/health"
	"github.com/ziadkadry99/healthagent/internal/metrics"
	"github.com/ziadkadry99/healthagent/internal/session"
)

// MaxUtteranceRunes bounds the length of one user message.
const MaxUtteranceRunes = 2000

// NoRecordMessage is reported after the stream when the reply tried to change
// a metric the user never recorded.
const NoRecordMessage = "尚未记录健康数据，无法同步 AI 修改结果。"

// SyncFailedMessage is reported after the stream when applying changes failed
// for any other reason.
const SyncFailedMessage = "同步 AI 修改结果失败，请稍后重试。"

var (
	// ErrUtteranceTooLong is returned for messages over MaxUtteranceRunes.
	ErrUtteranceTooLong = fmt.Errorf("对话内容不能超过 %d 个字符。", MaxUtteranceRunes)
	// ErrSuggestionUnavailable wraps model failures while generating recommendations.
	ErrSuggestionUnavailable = errors.New("AI 健康建议暂时不可用，请稍后再试。")
	// ErrCallerGone is returned by Relay when the emitter failed.
	ErrCallerGone = errors.New("caller went away")
)

// Advisor produces structured recommendations for a health snapshot.
type Advisor interface {
	Suggest(ctx context.Context, c conversation.Context) (*health.Suggestion, error)
}

// Deps wires a Service. Audit and Metrics may be nil.
type Deps struct {
	Store    *health.Store
	Router   *changelog.Router
	Audit    *audit.Store
	Sessions *session.Controller
	Advisor  Advisor
	// Window is the number of stored messages replayed to the model.
	Window  int
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Service runs chat exchanges and recommendation requests for users.
type Service struct {
	store    *health.Store
	router   *changelog.Router
	audit    *audit.Store
	sessions *session.Controller
	advisor  Advisor
	window   int
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	if d.Window <= 0 {
		d.Window = conversation.DefaultWindow
	}
	return &Service{
		store:    d.Store,
		router:   d.Router,
		audit:    d.Audit,
		sessions: d.Sessions,
		advisor:  d.Advisor,
		window:   d.Window,
		logger:   d.Logger.With().Str("component", "assistant").Logger(),
		metrics:  d.Metrics,
	}
}

// Exchange is one chat request in flight.
type Exchange struct {
	ID        string
	UserID    int64
	Utterance string
	// Chunks yields the streamed reply and closes after the final chunk.
	Chunks <-chan session.Chunk

	cancel context.CancelFunc
}

// Cancel stops the session. No further chunks are produced and nothing is
// persisted.
func (e *Exchange) Cancel() { e.cancel() }

// Outcome is what Finish did after the final chunk.
type Outcome struct {
	// Failed is set when the stream ended with the synthetic failure chunk.
	Failed bool
	// Messages are the stored user and assistant messages.
	Messages []health.Message
	// Changes is nil when the reply proposed no changes.
	Changes *changelog.Result
}

// RunChat validates utterance, loads the user's context and history and
// starts streaming the reply. A blank utterance fails with
// conversation.ErrEmptyUtterance before any I/O.
func (s *Service) RunChat(ctx context.Context, userID int64, utterance string) (*Exchange, error) {
	u, err := conversation.NormalizeUtterance(utterance)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(u) > MaxUtteranceRunes {
		return nil, ErrUtteranceTooLong
	}
	req, err := conversation.Assemble(ctx, s.store, userID, u, s.window)
	if err != nil {
		return nil, fmt.Errorf("assembling conversation: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	ex := &Exchange{
		ID:        uuid.New().String(),
		UserID:    userID,
		Utterance: req.Utterance,
		cancel:    cancel,
	}
	ex.Chunks = s.sessions.Run(sctx, req)
	s.logger.Debug().Str("exchange", ex.ID).Int64("user_id", userID).Int("history", len(req.History)).Msg("chat started")
	return ex, nil
}

// Emitter delivers one chunk to the caller. A non-nil error means the caller
// went away.
type Emitter func(session.Chunk) error

// Relay forwards every chunk of ex to emit as it arrives and calls Finish once
// the final chunk has been delivered. If emit fails or ctx ends before the
// final chunk, the session is cancelled and nothing is persisted.
func (s *Service) Relay(ctx context.Context, ex *Exchange, emit Emitter) (*Outcome, error) {
	defer ex.cancel()

	var final *session.Chunk
	for chunk := range ex.Chunks {
		if err := emit(chunk); err != nil {
			ex.cancel()
			for range ex.Chunks {
			}
			s.logger.Debug().Err(err).Str("exchange", ex.ID).Msg("caller went away")
			return nil, fmt.Errorf("%w: %v", ErrCallerGone, err)
		}
		if chunk.IsFinal {
			c := chunk
			final = &c
		}
	}
	if final == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	}
	return s.Finish(ctx, ex, *final)
}

// Finish persists the exchange and applies its change log. It runs after the
// final chunk was delivered and is not interrupted by the caller disconnecting.
// The returned error matches changelog.ErrNoExistingRecord when the reply
// targeted a metric the user never recorded.
func (s *Service) Finish(ctx context.Context, ex *Exchange, final session.Chunk) (*Outcome, error) {
	if final.Failed {
		return &Outcome{Failed: true}, nil
	}
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With().Str("exchange", ex.ID).Int64("user_id", ex.UserID).Logger()

	msgs, err := s.store.AppendExchange(ctx,
		health.Message{UserID: ex.UserID, Role: health.RoleUser, Content: ex.Utterance},
		health.Message{
			UserID:     ex.UserID,
			Role:       health.RoleAssistant,
			Content:    final.Content,
			NeedChange: final.NeedChange,
			ChangeLog:  final.ChangeLog,
		},
	)
	if err != nil {
		logger.Error().Err(err).Msg("saving exchange")
		return nil, fmt.Errorf("saving exchange: %w", err)
	}
	out := &Outcome{Messages: msgs}
	if !final.NeedChange || len(final.ChangeLog) == 0 {
		return out, nil
	}

	res, applyErr := s.router.Apply(ctx, ex.UserID, final.ChangeLog)
	out.Changes = res
	if s.audit != nil {
		msgID := msgs[len(msgs)-1].ID
		if err := s.audit.LogBatch(ctx, audit.FromResult(ex.UserID, &msgID, res)); err != nil {
			logger.Error().Err(err).Msg("writing audit entries")
		}
	}
	logger.Info().Int("applied", len(res.Applied)).Int("dropped", len(res.Dropped)).Msg("change log applied")
	if applyErr != nil {
		return out, applyErr
	}
	return out, nil
}

// UserMessage maps a Finish error to the text shown to the user.
func UserMessage(err error) string {
	if errors.Is(err, changelog.ErrNoExistingRecord) {
		return NoRecordMessage
	}
	return SyncFailedMessage
}

// Chat runs a whole exchange: RunChat followed by Relay.
func (s *Service) Chat(ctx context.Context, userID int64, utterance string, emit Emitter) (*Outcome, error) {
	ex, err := s.RunChat(ctx, userID, utterance)
	if err != nil {
		return nil, err
	}
	return s.Relay(ctx, ex, emit)
}

// History returns the newest limit messages of the user, oldest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]health.Message, error) {
	if limit <= 0 {
		limit = s.window
	}
	return s.store.ListMessages(ctx, userID, limit)
}

// Suggest generates, stores and returns recommendations for the user's latest
// metric. It fails with health.ErrNoMetric when the user has no metric and
// with ErrSuggestionUnavailable when the model fails.
func (s *Service) Suggest(ctx context.Context, userID int64) (*health.Recommendation, error) {
	metric, err := s.store.LatestMetric(ctx, userID)
	if err != nil {
		return nil, err
	}
	if metric == nil {
		s.metrics.RecordRecommendation("no_metric")
		return nil, health.ErrNoMetric
	}
	pref, err := s.store.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}

	sug, err := s.advisor.Suggest(ctx, conversation.Context{Metric: metric, Preference: pref})
	if err != nil {
		s.metrics.RecordRecommendation("error")
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("generating recommendation")
		return nil, fmt.Errorf("%w: %v", ErrSuggestionUnavailable, err)
	}
	rec, err := s.store.CreateRecommendation(ctx, userID, *sug)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRecommendation("ok")
	return rec, nil
}

// LatestRecommendation returns the newest stored recommendation or nil.
func (s *Service) LatestRecommendation(ctx context.Context, userID int64) (*health.Recommendation, error) {
	return s.store.LatestRecommendation(ctx, userID)
}
