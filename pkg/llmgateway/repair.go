package llmgateway

import "fmt"

// PromptPair is the system/user message pair sent in one completion call.
type PromptPair struct {
	System string
	User   string
}

// RepairPrompt builds the follow-up prompt sent after a response failed
// schema validation. It is a pure function, independently testable from
// the transport retry loop in grpc.go: a malformed response is a prompting
// problem, not a transport problem, so retrying the exact same request
// would just reproduce the same malformed response.
//
// Bounded by callers at config.Defaults.MaxRepairAttempts (default 1) — a
// second failure after the repair attempt is terminal, not retried again.
func RepairPrompt(prior PromptPair, parseErr error, schemaHint string, attempt int) PromptPair {
	return PromptPair{
		System: prior.System,
		User: fmt.Sprintf(
			"%s\n\nYour previous response could not be parsed: %v\n\n"+
				"Respond again with ONLY a single JSON object matching this shape, "+
				"no surrounding prose, no markdown fences:\n%s\n\n(repair attempt %d)",
			prior.User, parseErr, schemaHint, attempt,
		),
	}
}
