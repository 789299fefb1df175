package providers

// defaultMaxOutputTokens is assumed when the request does not cap output
const defaultMaxOutputTokens = 500

// charsPerToken is the deterministic estimation ratio used when a provider
// response omits usage data and for pre-flight cost estimation. A real
// tokenizer is deliberately not used; the estimate only has to be stable.
const charsPerToken = 4

// EstimateTokens estimates a token count from raw text length
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// EstimateOutputTokens returns the output-token bound to use for pre-flight
// cost estimation: the request's max_tokens if set, otherwise a fixed default
func EstimateOutputTokens(maxTokens int) int {
	if maxTokens > 0 {
		return maxTokens
	}
	return defaultMaxOutputTokens
}
