package coordinator

import "strings"

// Classifier decides how a pipeline-reported error is treated. Hard failures
// tear down the pipeline instance; soft errors are suppressed entirely.
// Vendor error codes vary, so the sets are configuration, not constants.
type Classifier struct {
	HardCodes      map[int]bool
	HardSubstrings []string
	SoftSubstrings []string
}

// Hard reports whether the error signals a fatal pipeline failure such as a
// deadline exceeded or a crashed executor.
func (c Classifier) Hard(code int, message string) bool {
	if c.HardCodes[code] {
		return true
	}
	return containsAny(message, c.HardSubstrings)
}

// Soft reports whether the error should be suppressed without surfacing it,
// e.g. an empty recognition result.
func (c Classifier) Soft(message string) bool {
	return containsAny(message, c.SoftSubstrings)
}

func containsAny(message string, substrings []string) bool {
	lower := strings.ToLower(message)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
