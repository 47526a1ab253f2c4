package llm

import "strings"

// Price is USD per one million tokens.
type Price struct {
	Input  float64
	Output float64
}

// Approximate list prices, used only for the cost line in the logs.
var prices = map[string]Price{
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
	"gpt-4o":      {Input: 2.50, Output: 10.00},
}

var defaultPrice = prices["gpt-4o-mini"]

// EstimateCostUSD returns the approximate cost of usage under model.
// Provider-prefixed names such as "openai/gpt-4o" are accepted.
func EstimateCostUSD(model string, usage *Usage) float64 {
	if usage == nil {
		return 0
	}
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	p, ok := prices[model]
	if !ok {
		p = defaultPrice
	}
	return (float64(usage.PromptTokens)*p.Input + float64(usage.CompletionTokens)*p.Output) / 1_000_000
}
