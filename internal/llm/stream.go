package llm

import (
	"context"
	"io"
)

// AsStreaming adapts p to StreamingProvider. Providers that stream natively are
// returned unchanged; others deliver the whole completion as a single delta.
func AsStreaming(p Provider) StreamingProvider {
	if sp, ok := p.(StreamingProvider); ok {
		return sp
	}
	return &singleShot{Provider: p}
}

type singleShot struct {
	Provider
}

func (s *singleShot) Stream(ctx context.Context, req CompletionRequest) (ChunkStream, error) {
	resp, err := s.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &sliceStream{deltas: []string{resp.Content}}, nil
}

// sliceStream replays fixed deltas.
type sliceStream struct {
	deltas []string
	pos    int
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *sliceStream) Close() error {
	s.pos = len(s.deltas)
	return nil
}

// Collect drains a stream into one string and closes it.
func Collect(stream ChunkStream) (string, error) {
	defer stream.Close()
	var out []byte
	for {
		d, err := stream.Recv()
		if err == io.EOF {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
		out = append(out, d...)
	}
}
