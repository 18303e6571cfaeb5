// Package rules implements the verdict evaluator: a pure, deterministic
// classification of an extracted promo label against operator-supplied
// condition lists.
package rules

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"promowatch/internal/textnorm"
)

// Verdict classifies a visited product page.
type Verdict string

const (
	VerdictOK      Verdict = "ok"
	VerdictNOK     Verdict = "nok"
	VerdictUnknown Verdict = "unknown"
	// VerdictError and VerdictPending are produced outside Evaluate: error for
	// pages the inspector could not open, pending for pages not yet visited.
	VerdictError   Verdict = "error"
	VerdictPending Verdict = "pending"
)

// Set holds the condition lists for one job. Order defines priority: the first
// matching condition wins within each list, and the error list is checked
// before the ok list.
type Set struct {
	ErrorConditions []string `json:"error_conditions"`
	OkConditions    []string `json:"ok_conditions"`
}

// Empty reports whether the set has no usable conditions.
func (s Set) Empty() bool {
	return len(cleanConditions(s.ErrorConditions)) == 0 &&
		len(cleanConditions(s.OkConditions)) == 0
}

// Trace records everything an operator needs to tune rules without re-running
// a visit: the normalized label, the condition lists as evaluated, and which
// condition (if any) matched in each list.
type Trace struct {
	LabelText       string   `json:"label_text"`
	LabelNorm       string   `json:"label_norm"`
	ErrorConditions []string `json:"error_conditions"`
	OkConditions    []string `json:"ok_conditions"`
	MatchedError    string   `json:"matched_error,omitempty"`
	MatchedOK       string   `json:"matched_ok,omitempty"`
}

// noLabelPhrases are ok-conditions that match the absence of a label widget.
var noLabelPhrases = map[string]struct{}{
	"без виджета": {},
	"нет виджета": {},
}

// Evaluate classifies a label against a rule set. It is a pure function:
// repeated evaluation of the same inputs yields the same verdict and reason.
func Evaluate(labelText string, hasLabel bool, set Set) (Verdict, string, Trace) {
	labelNorm := textnorm.Normalize(labelText)
	errConds := cleanConditions(set.ErrorConditions)
	okConds := cleanConditions(set.OkConditions)

	trace := Trace{
		LabelText:       labelText,
		LabelNorm:       labelNorm,
		ErrorConditions: errConds,
		OkConditions:    okConds,
	}

	for _, cond := range errConds {
		if matchCondition(cond, labelText, labelNorm, false) {
			trace.MatchedError = cond
			return VerdictNOK, fmt.Sprintf("Совпало с условием ошибки: %s", cond), trace
		}
	}

	for _, cond := range okConds {
		if _, ok := noLabelPhrases[textnorm.Normalize(cond)]; ok && !hasLabel {
			trace.MatchedOK = cond
			return VerdictOK, fmt.Sprintf("Совпало с условием OK: %s", cond), trace
		}
		if matchCondition(cond, labelText, labelNorm, true) {
			trace.MatchedOK = cond
			return VerdictOK, fmt.Sprintf("Совпало с условием OK: %s", cond), trace
		}
	}

	return VerdictUnknown, "Нет совпадений с условиями", trace
}

// matchCondition reports whether every multi-character token of the condition
// is present in the label's token set, subject to the gift rules:
//
//   - a condition carrying the gift glyph requires the glyph literally in the
//     label text; in the ok list (allowIconFallback) a glyph-less label may
//     still match when it reads as an implicit SIM promo and does not already
//     spell the gift word out;
//   - a condition containing the gift word never matches a label lacking it.
func matchCondition(condition, labelText, labelNorm string, allowIconFallback bool) bool {
	if labelNorm == "" {
		return false
	}
	condNorm := textnorm.Normalize(condition)
	condTokens := multiCharTokens(condNorm)
	if len(condTokens) == 0 {
		return false
	}
	labelTokens := textnorm.TokenSet(labelNorm)

	if strings.Contains(condition, textnorm.GiftGlyph) && !strings.Contains(labelText, textnorm.GiftGlyph) {
		if allowIconFallback {
			if _, gift := labelTokens[textnorm.GiftWord]; gift {
				return false
			}
			_, sim := labelTokens["sim"]
			_, brand := labelTokens["tecno"]
			_, card := labelTokens["карта"]
			return sim && (brand || card)
		}
		return false
	}

	giftRequired := false
	for _, tok := range condTokens {
		if tok == textnorm.GiftWord {
			giftRequired = true
			break
		}
	}
	if giftRequired {
		if _, ok := labelTokens[textnorm.GiftWord]; !ok {
			return false
		}
	}

	for _, tok := range condTokens {
		if _, ok := labelTokens[tok]; !ok {
			return false
		}
	}
	return true
}

func multiCharTokens(norm string) []string {
	var out []string
	for _, tok := range textnorm.Tokens(norm) {
		if utf8.RuneCountInString(tok) > 1 {
			out = append(out, tok)
		}
	}
	return out
}

func cleanConditions(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
