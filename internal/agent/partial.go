package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ziadkadry99/healthagent/internal/changelog"
)

// wireReply is the JSON object the model is asked to produce. Fields are decoded
// loosely because models do not always respect the declared types.
type wireReply struct {
	Content    changelog.Text  `json:"content"`
	NeedChange looseBool       `json:"need_change"`
	ChangeLog  json.RawMessage `json:"change_log"`
}

// looseBool accepts true/false, "true"/"false", "yes"/"no" and 0/1.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = looseBool(t)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			*b = true
		default:
			*b = false
		}
	case float64:
		*b = t != 0
	default:
		*b = false
	}
	return nil
}

func (w *wireReply) output(final bool) Output {
	var raw []changelog.RawItem
	if len(w.ChangeLog) > 0 {
		if err := json.Unmarshal(w.ChangeLog, &raw); err != nil {
			raw = nil
		}
	}
	return Output{
		Content:    string(w.Content),
		NeedChange: bool(w.NeedChange),
		ChangeLog:  changelog.Sanitize(raw),
		Final:      final,
	}
}

// fencePattern matches a leading or trailing markdown code fence.
var fencePattern = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")

// parseReply decodes a complete reply. It tolerates code fences and text around
// the JSON object, then falls back to repairing a truncated object.
func parseReply(text string) (Output, bool) {
	s := fencePattern.ReplaceAllString(text, "")
	if idx := strings.Index(s, "{"); idx >= 0 {
		s = s[idx:]
	} else {
		return Output{}, false
	}
	if idx := strings.LastIndex(s, "}"); idx >= 0 {
		var w wireReply
		if err := json.Unmarshal([]byte(s[:idx+1]), &w); err == nil {
			return w.output(true), true
		}
	}
	out, ok := parsePartial(s)
	out.Final = true
	return out, ok
}

// parsePartial decodes the reply received so far.
func parsePartial(text string) (Output, bool) {
	fixed, ok := completeJSON(text)
	if !ok {
		return Output{}, false
	}
	var w wireReply
	if err := json.Unmarshal([]byte(fixed), &w); err != nil {
		return Output{}, false
	}
	return w.output(false), true
}

const (
	expectKey = iota
	afterKey
	expectValue
	afterValue
)

type frame struct {
	object bool
	state  int
}

// partialEscape matches an unfinished \uXXXX escape at the end of a string.
var partialEscape = regexp.MustCompile(`\\u[0-9a-fA-F]{0,3}$`)

// completeJSON closes a truncated JSON object so that it decodes. Text before
// the first '{' is ignored and anything after the matching '}' is dropped.
func completeJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	s = s[start:]

	var (
		stack    []frame
		inStr    bool
		esc      bool
		strStart int
	)
	top := func() *frame { return &stack[len(stack)-1] }

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
				if f := top(); f.object && f.state == expectKey {
					f.state = afterKey
				} else {
					f.state = afterValue
				}
			}
			continue
		}

		switch c {
		case '"':
			inStr = true
			strStart = i
		case '{':
			stack = append(stack, frame{object: true, state: expectKey})
		case '[':
			stack = append(stack, frame{state: expectValue})
		case '}', ']':
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[:i+1], true
			}
			top().state = afterValue
		case ':':
			top().state = expectValue
		case ',':
			if f := top(); f.object {
				f.state = expectKey
			} else {
				f.state = expectValue
			}
		case ' ', '\t', '\r', '\n':
		default:
			if f := top(); f.state == expectValue {
				f.state = afterValue
			}
		}
	}

	out := s
	f := top()
	switch {
	case inStr && f.object && f.state == expectKey:
		out = out[:strStart]
	case inStr:
		if esc {
			out = out[:len(out)-1]
		}
		out = partialEscape.ReplaceAllString(out, "")
		out += `"`
		f.state = afterValue
	case f.state == afterValue:
		out = completeLiteral(out, f)
	}

	out = strings.TrimRight(out, " \t\r\n")
	switch f.state {
	case expectKey:
		out = strings.TrimSuffix(out, ",")
	case afterKey:
		out += ":null"
	case expectValue:
		if f.object {
			out += "null"
		} else {
			out = strings.TrimSuffix(out, ",")
		}
	}

	var b strings.Builder
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].object {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), true
}

// completeLiteral finishes a trailing true/false/null prefix or trims an
// unfinished number. When nothing usable remains the frame expects a value again.
func completeLiteral(s string, f *frame) string {
	trimmed := strings.TrimRight(s, " \t\r\n")
	end := len(trimmed)
	i := end
	for i > 0 && isLiteralByte(trimmed[i-1]) {
		i--
	}
	tail := trimmed[i:end]
	if tail == "" {
		return s
	}
	for _, word := range []string{"true", "false", "null"} {
		if strings.HasPrefix(word, tail) {
			return trimmed[:i] + word
		}
	}
	num := strings.TrimRight(tail, ".eE+-")
	if num == "" {
		f.state = expectValue
		return trimmed[:i]
	}
	return trimmed[:i] + num
}

func isLiteralByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+'
}
