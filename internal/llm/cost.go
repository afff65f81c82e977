package llm

import (
	"strings"
	"unicode"
)

// modelPricing is USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]modelPricing{
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},

	"gpt-4o":       {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":  {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1-mini": {InputPerMillion: 0.40, OutputPerMillion: 1.60},

	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-flash": {InputPerMillion: 0.30, OutputPerMillion: 2.50},
}

// EstimateCost returns the estimated cost in USD for the given model and token
// counts. OpenRouter style names ("openai/gpt-4o-mini") are priced as the bare
// model. Unknown models cost 0.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		if i := strings.LastIndexByte(model, '/'); i >= 0 {
			pricing, ok = priceTable[model[i+1:]]
		}
	}
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000.0 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// EstimateTokens roughly counts tokens in text: one per CJK character and one
// per 4 bytes of everything else.
func EstimateTokens(text string) int {
	wide, rest := 0, 0
	for _, r := range text {
		if isWide(r) {
			wide++
			continue
		}
		rest += len(string(r))
	}
	n := wide + rest/4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// EstimateMessageTokens sums EstimateTokens over the message contents.
func EstimateMessageTokens(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += EstimateTokens(m.Content)
	}
	return n
}

func isWide(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
		return true
	}
	// CJK punctuation and full-width forms.
	return (r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}
