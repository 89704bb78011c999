package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMinAnswerLen is the shortest candidate answer accepted, in runes.
const DefaultMinAnswerLen = 10

// invalidOutputs are control-flow strings some agent frameworks emit when
// they give up. They must never reach the user; matching is by substring
// on the lowercased candidate.
var invalidOutputs = []string{
	"agent stopped due to max iterations.",
	"agent stopped due to iteration limit or time limit.",
	"parsing error",
}

// ValidationResult is the terminal outcome of one orchestrator invocation.
// Output is always deliverable text, whether or not the candidate passed.
type ValidationResult struct {
	Valid  bool
	Output string
	Reason string
}

// Validate decides whether a candidate answer may be sent to the user.
// Rejected candidates are substituted by the not-found fallback and the
// reason is recorded for logs. Pure, no I/O.
func Validate(candidate string, minLen int) ValidationResult {
	if minLen <= 0 {
		minLen = DefaultMinAnswerLen
	}

	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ValidationResult{Output: MsgNotFound, Reason: "empty output"}
	}

	lower := strings.ToLower(trimmed)
	for _, internal := range invalidOutputs {
		if strings.Contains(lower, internal) {
			return ValidationResult{Output: MsgNotFound, Reason: fmt.Sprintf("internal output: %q", internal)}
		}
	}

	if utf8.RuneCountInString(trimmed) <= minLen {
		return ValidationResult{Output: MsgNotFound, Reason: "output too short"}
	}

	return ValidationResult{Valid: true, Output: trimmed}
}
