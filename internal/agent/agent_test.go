package agent

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/health"
	"github.com/ziadkadry99/healthagent/internal/llm"
)

// stubProvider streams canned deltas and answers Complete with a canned reply.
type stubProvider struct {
	mu        sync.Mutex
	deltas    []string
	recvErr   error
	streamErr error
	reply     string
	err       error
	requests  []llm.CompletionRequest
	closed    int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.reply, Model: req.Model, InputTokens: 10, OutputTokens: 20}, nil
}

func (p *stubProvider) Stream(_ context.Context, req llm.CompletionRequest) (llm.ChunkStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	return &stubChunks{p: p, deltas: p.deltas, err: p.recvErr}, nil
}

type stubChunks struct {
	p      *stubProvider
	deltas []string
	err    error
}

func (s *stubChunks) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *stubChunks) Close() error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.closed++
	return nil
}

func testRequest() *conversation.Request {
	return &conversation.Request{
		UserID: 7,
		Context: conversation.Context{
			Metric: &health.Metric{UserID: 7, WeightKg: 72.4, BodyFatPercent: 21, BMI: 23.1, MusclePercent: 40, WaterPercent: 55, RecordedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		},
		History: []health.Message{
			{Role: health.RoleUser, Content: "早上好"},
			{Role: health.RoleAssistant, Content: "早上好，有什么可以帮你？"},
		},
		Utterance: "把体重改成 72.5",
	}
}

func drain(t *testing.T, s Stream) []Output {
	t.Helper()
	var outs []Output
	for {
		out, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return outs
		}
		require.NoError(t, err)
		outs = append(outs, out)
	}
}

func TestTransportStreamsPartialsThenFinal(t *testing.T) {
	p := &stubProvider{deltas: []string{
		`{"content": "你`,
		`好"`,
		`, "need_change": true, "change_log": [{"field": "weight_kg", "value": "72.5"}]}`,
	}}
	tr := NewLLMTransport(p, Options{Model: "m", Temperature: 0.7, MaxTokens: 100}, zerolog.Nop())

	s, err := tr.Stream(context.Background(), testRequest())
	require.NoError(t, err)
	outs := drain(t, s)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.Len(t, outs, 4)
	assert.Equal(t, "你", outs[0].Content)
	assert.Equal(t, "你好", outs[1].Content)
	assert.True(t, outs[2].NeedChange)
	for _, o := range outs[:3] {
		assert.False(t, o.Final)
	}
	final := outs[3]
	assert.True(t, final.Final)
	assert.Equal(t, "你好", final.Content)
	assert.True(t, final.NeedChange)
	require.Len(t, final.ChangeLog, 1)
	assert.Equal(t, "72.5", final.ChangeLog[0].Value)

	assert.Equal(t, 1, p.closed)
	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.True(t, req.JSONMode)
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, 100, req.MaxTokens)
}

func TestTransportFallsBackToRawText(t *testing.T) {
	p := &stubProvider{deltas: []string{"你好，", "今天感觉怎么样？"}}
	s, err := NewLLMTransport(p, Options{}, zerolog.Nop()).Stream(context.Background(), testRequest())
	require.NoError(t, err)

	outs := drain(t, s)
	require.Len(t, outs, 1)
	assert.True(t, outs[0].Final)
	assert.Equal(t, "你好，今天感觉怎么样？", outs[0].Content)
	assert.False(t, outs[0].NeedChange)
	assert.NotNil(t, outs[0].ChangeLog)
}

func TestTransportEmptyReply(t *testing.T) {
	p := &stubProvider{deltas: []string{"  "}}
	s, err := NewLLMTransport(p, Options{}, zerolog.Nop()).Stream(context.Background(), testRequest())
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestTransportReceiveError(t *testing.T) {
	boom := errors.New("connection reset")
	p := &stubProvider{deltas: []string{`{"content": "部分`}, recvErr: boom}
	s, err := NewLLMTransport(p, Options{}, zerolog.Nop()).Stream(context.Background(), testRequest())
	require.NoError(t, err)

	out, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "部分", out.Content)

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestTransportOpenError(t *testing.T) {
	p := &stubProvider{streamErr: errors.New("401")}
	_, err := NewLLMTransport(p, Options{}, zerolog.Nop()).Stream(context.Background(), testRequest())
	assert.ErrorContains(t, err, "401")
}

func TestTransportHonoursCancellation(t *testing.T) {
	p := &stubProvider{deltas: []string{`{"content": "a"}`}}
	s, err := NewLLMTransport(p, Options{}, zerolog.Nop()).Stream(context.Background(), testRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatMessages(t *testing.T) {
	msgs := chatMessages(testRequest())
	require.Len(t, msgs, 5)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "weight_kg")
	assert.Contains(t, msgs[0].Content, "hydration_goal_liters")
	assert.Contains(t, msgs[1].Content, "weight_kg: 72.4")
	assert.Equal(t, llm.RoleUser, msgs[2].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[3].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "把体重改成 72.5"}, msgs[4])
}

func TestDescribeContextWithoutMetric(t *testing.T) {
	target := 65.0
	text := describeContext(conversation.Context{Preference: &health.Preference{TargetWeightKg: &target}})
	assert.Contains(t, text, "尚未记录体测数据")
	assert.Contains(t, text, "target_weight_kg: 65.0")
	assert.NotContains(t, text, "calorie_budget_kcal")
}
