package changelog

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ChangeItem is a structurally valid change proposed by the model: both Field and
// Value are non-empty and trimmed. It is still untrusted until coerced.
type ChangeItem struct {
	Field  string  `json:"field"`
	Value  string  `json:"value"`
	Reason *string `json:"reason,omitempty"`
}

// RawItem is a change item exactly as decoded from model output.
type RawItem struct {
	Field  Text  `json:"field"`
	Value  Text  `json:"value"`
	Reason *Text `json:"reason,omitempty"`
}

// Text decodes a JSON string, number or boolean into its textual form.
// null and absent both leave it empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if data[0] == '[' || data[0] == '{' {
		// Structured values have no textual form a field could accept.
		*t = ""
		return nil
	}
	*t = Text(data)
	return nil
}

// Sanitize trims every raw item and discards those whose field or value is empty.
// Order is preserved. A nil input yields an empty, non-nil slice.
func Sanitize(raw []RawItem) []ChangeItem {
	items := make([]ChangeItem, 0, len(raw))
	for _, r := range raw {
		field := strings.TrimSpace(string(r.Field))
		value := strings.TrimSpace(string(r.Value))
		if field == "" || value == "" {
			continue
		}
		item := ChangeItem{Field: field, Value: value}
		if r.Reason != nil {
			reason := string(*r.Reason)
			item.Reason = &reason
		}
		items = append(items, item)
	}
	return items
}
