package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/health"
	"github.com/ziadkadry99/healthagent/internal/llm"
)

// DefaultSummary is used when the model omits the summary.
const DefaultSummary = "暂无摘要"

// ErrBadSuggestion is returned when the model reply cannot be decoded.
var ErrBadSuggestion = errors.New("assistant returned an unreadable suggestion")

// Suggester asks the model for structured health recommendations.
type Suggester struct {
	provider llm.Provider
	opts     Options
	logger   zerolog.Logger
}

// NewSuggester creates a Suggester backed by provider.
func NewSuggester(provider llm.Provider, opts Options, logger zerolog.Logger) *Suggester {
	return &Suggester{provider: provider, opts: opts, logger: logger}
}

// Suggest generates recommendations for c. c.Metric must be set.
func (s *Suggester) Suggest(ctx context.Context, c conversation.Context) (*health.Suggestion, error) {
	if c.Metric == nil {
		return nil, health.ErrNoMetric
	}
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    suggestionMessages(c),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting suggestion from %s: %w", s.provider.Name(), err)
	}

	s.logger.Debug().
		Str("provider", s.provider.Name()).
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Float64("cost_usd", resp.Cost()).
		Msg("suggestion complete")
	if resp.Truncated() {
		s.logger.Warn().Int("max_tokens", s.opts.MaxTokens).Msg("suggestion hit the token limit")
	}

	return parseSuggestion(resp.Content)
}

type wireSuggestion struct {
	Summary           string    `json:"summary"`
	MealPlan          looseList `json:"meal_plan"`
	CalorieManagement looseList `json:"calorie_management"`
	WeightManagement  looseList `json:"weight_management"`
	Hydration         looseList `json:"hydration"`
	Lifestyle         looseList `json:"lifestyle"`
}

func parseSuggestion(text string) (*health.Suggestion, error) {
	s := fencePattern.ReplaceAllString(text, "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, ErrBadSuggestion
	}
	var w wireSuggestion
	if err := json.Unmarshal([]byte(s[start:end+1]), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSuggestion, err)
	}
	summary := strings.TrimSpace(w.Summary)
	if summary == "" {
		summary = DefaultSummary
	}
	return &health.Suggestion{
		Summary:           summary,
		MealPlan:          w.MealPlan.items(),
		CalorieManagement: w.CalorieManagement.items(),
		WeightManagement:  w.WeightManagement.items(),
		Hydration:         w.Hydration.items(),
		Lifestyle:         w.Lifestyle.items(),
	}, nil
}

// looseList accepts either an array of values or a single string with one
// entry per line. Bullet markers are stripped and blank entries dropped.
type looseList []string

func (l *looseList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var out []string
	switch t := v.(type) {
	case string:
		for _, line := range strings.Split(t, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•* "))
			if line != "" {
				out = append(out, line)
			}
		}
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(item))
			if s != "" {
				out = append(out, s)
			}
		}
	}
	*l = out
	return nil
}

func (l looseList) items() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}
