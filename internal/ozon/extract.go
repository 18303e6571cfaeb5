package ozon

import (
	"regexp"
	"strings"

	"promowatch/internal/textnorm"
)

// legacyLabelClass is the obfuscated class the promo-label fell back to on
// older page layouts; still seen in cached markup.
const legacyLabelClass = "b5_5_1-a5"

var (
	sourceLabelTitleRe = regexp.MustCompile(`class="[^"]*` + legacyLabelClass + `[^"]*"[^>]*title="([^"]+)"`)
	sourceLabelTextRe  = regexp.MustCompile(`class="[^"]*` + legacyLabelClass + `[^"]*"[^>]*>([^<]+)</`)

	sourceSellerRes = []*regexp.Regexp{
		regexp.MustCompile(`"sellerName":"([^"]+)"`),
		regexp.MustCompile(`"merchantName":"([^"]+)"`),
		regexp.MustCompile(`"seller":"([^"]+)"`),
		regexp.MustCompile(`"companyName":"([^"]+)"`),
	}

	ozonExpressRe = regexp.MustCompile(`(?i)\bozon express\b`)
	ozonWordRe    = regexp.MustCompile(`(?i)\bozon\b`)
)

// isLabelCandidate reports whether a normalized text chunk looks like the
// promo label. When the widget carries an icon the gift word may live in the
// icon alone, so only the sim and brand tokens are required.
func isLabelCandidate(norm string, hasIcon bool) bool {
	if norm == "" {
		return false
	}
	hasSim := strings.Contains(norm, "sim")
	hasBrand := strings.Contains(norm, "tecno") || strings.Contains(norm, "карта")
	hasGift := strings.Contains(norm, "подарок") || strings.Contains(norm, "gift")
	if hasIcon {
		return hasSim && hasBrand
	}
	return hasSim && hasBrand && hasGift
}

// filterLabelChunks keeps the text chunks that look like the promo label,
// deduplicated by normalized form in first-seen order.
func filterLabelChunks(chunks []string, hasIcon bool) []string {
	var cleaned []string
	seen := make(map[string]struct{})
	for _, raw := range chunks {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		norm := textnorm.Normalize(text)
		if strings.Contains(norm, "перейти к описанию") {
			continue
		}
		if !isLabelCandidate(norm, hasIcon) {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		cleaned = append(cleaned, text)
	}
	return cleaned
}

// labelPresent reports whether extracted label text amounts to a real label.
func labelPresent(labelText string) bool {
	hasIcon := strings.Contains(labelText, textnorm.GiftGlyph)
	return isLabelCandidate(textnorm.Normalize(labelText), hasIcon)
}

// extractLabelFromSource scans raw page markup for a label on the legacy
// layout. Returns "" when nothing plausible is found.
func extractLabelFromSource(source string) string {
	if source == "" {
		return ""
	}
	var candidates []string
	for _, m := range sourceLabelTitleRe.FindAllStringSubmatch(source, -1) {
		candidates = append(candidates, m[1])
	}
	for _, m := range sourceLabelTextRe.FindAllStringSubmatch(source, -1) {
		candidates = append(candidates, m[1])
	}
	for _, cand := range candidates {
		if isLabelCandidate(textnorm.Normalize(cand), false) {
			return cand
		}
	}
	return ""
}

// extractSellerFromSource pulls the seller name out of the embedded page
// state JSON. Returns "" when no known key is present.
func extractSellerFromSource(source string) string {
	if source == "" {
		return ""
	}
	for _, re := range sourceSellerRes {
		if m := re.FindStringSubmatch(source); m != nil {
			return m[1]
		}
	}
	return ""
}

// extractSellerFromText falls back to the visible page text: the first-party
// storefronts mention themselves there even when the seller widget is absent.
func extractSellerFromText(text string) string {
	if text == "" {
		return ""
	}
	if m := ozonExpressRe.FindString(text); m != "" {
		return m
	}
	return ozonWordRe.FindString(text)
}

// IsOzonSeller classifies the seller as first-party. Returns nil when the
// page gives no signal either way.
func IsOzonSeller(sellerName, bodyText string) *bool {
	if sellerName != "" {
		v := ozonWordRe.MatchString(textnorm.Normalize(sellerName))
		return &v
	}
	if bodyText == "" {
		return nil
	}
	norm := textnorm.Normalize(bodyText)
	if ozonWordRe.MatchString(norm) {
		v := true
		return &v
	}
	if strings.Contains(norm, "продавец") {
		v := false
		return &v
	}
	return nil
}
