// Package gate implements the citation gate (spec §4.6): a pure,
// deterministic validator over strings and sets, with no LM call, no
// network, and no goroutines. It never edits the synthesized text.
package gate

import (
	"regexp"
	"strings"

	"github.com/lighthq/helpdesk-rag/internal/urlrewrite"
)

// Outcome is PASS or FAIL.
type Outcome string

const (
	Pass Outcome = "pass"
	Fail Outcome = "fail"
)

// FailReason names why the gate failed.
type FailReason string

const (
	ReasonInvalidCitation           FailReason = "invalid_citation"
	ReasonNoEvidenceForFunctional   FailReason = "no_evidence_for_functional_claim"
)

// Confidence mirrors model.Confidence without importing model, keeping
// this package dependency-free beyond urlrewrite.
type Confidence string

const (
	ConfidenceConfirmed          Confidence = "confirmed"
	ConfidenceNeedsClarification Confidence = "needs_clarification"
)

// Result is the gate's verdict.
type Result struct {
	Outcome    Outcome
	Reason     FailReason
	InvalidRefs []string
	Confidence Confidence
}

var citationPattern = regexp.MustCompile(`\[\[(\d+)\]\]\(([^)]+)\)`)

// functionalTokens is the fixed blocklist of §4.6: verbs describing
// system behavior plus the three absolute-claim tokens.
var functionalTokens = []string{
	"does", "happens", "writes", "reads", "emits", "triggers", "calls",
	"sends", "creates", "deletes", "updates", "retries", "processes",
	"stores", "persists", "syncs", "synchronizes", "validates", "calculates",
	"automatically", "always", "never",
}

var functionalTokenPattern = buildFunctionalTokenPattern()

func buildFunctionalTokenPattern() *regexp.Regexp {
	escaped := make([]string, len(functionalTokens))
	for i, t := range functionalTokens {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// Validate runs the four-step procedure of spec §4.6 over answer text
// T against the collected-evidence path set P.
func Validate(text string, collectedPaths map[string]bool) Result {
	refs := extractRefs(text)

	var invalid []string
	for ref := range refs {
		path := urlrewrite.ToPath(ref)
		if !collectedPaths[path] {
			invalid = append(invalid, ref)
		}
	}

	hasFunctionalClaim := functionalTokenPattern.MatchString(text)
	if hasFunctionalClaim && len(collectedPaths) == 0 {
		return Result{Outcome: Fail, Reason: ReasonNoEvidenceForFunctional}
	}

	if len(invalid) > 0 {
		return Result{Outcome: Fail, Reason: ReasonInvalidCitation, InvalidRefs: invalid}
	}

	confidence := ConfidenceNeedsClarification
	if len(collectedPaths) > 0 {
		confidence = ConfidenceConfirmed
	}
	return Result{Outcome: Pass, Confidence: confidence}
}

// extractRefs returns the set of distinct ref values cited in text.
func extractRefs(text string) map[string]bool {
	refs := make(map[string]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		refs[m[2]] = true
	}
	return refs
}
