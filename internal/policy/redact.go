package policy

import "regexp"

// ssnPattern matches US Social-Security-Number-shaped strings
// (spec.md §4.4 step 1, §8 scenario 4: "My SSN is 123-45-6789"). It is
// intentionally narrow: the built-in redaction is a first line of
// defense, not a general PII scanner.
var ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

const ssnReplacement = "[REDACTED-SSN]"

// redactPII scans payload for SSN-like patterns and returns the redacted
// bytes plus whether anything changed. Called before any policy file is
// even consulted (spec.md §4.4 pipeline step 1): if it changes anything,
// the decision is Modify immediately, independent of rule evaluation.
func redactPII(payload []byte) (out []byte, changed bool) {
	redacted := ssnPattern.ReplaceAll(payload, []byte(ssnReplacement))
	return redacted, string(redacted) != string(payload)
}

// redactReason strips PII patterns out of free-text reasons before they
// are attached to an audit record (spec.md §4.4 "a redacted reason (PII
// patterns must not leak)").
func redactReason(reason string) string {
	return ssnPattern.ReplaceAllString(reason, ssnReplacement)
}
