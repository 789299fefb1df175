package safety

import (
	"regexp"
	"sort"
	"strings"
)

// PIIKind identifies a category of personally identifiable information
type PIIKind string

const (
	PIIEmail      PIIKind = "email"
	PIIPhone      PIIKind = "phone"
	PIISSN        PIIKind = "ssn"
	PIICreditCard PIIKind = "credit_card"
	PIIIPAddress  PIIKind = "ip_address"
)

// PIIMatch is one detected PII occurrence in the scanned text
type PIIMatch struct {
	Kind  PIIKind
	Value string
	Start int
	End   int
}

// piiScanner pairs the patterns for one PII kind with an optional
// post-match validator that rejects false positives.
type piiScanner struct {
	kind     PIIKind
	patterns []*regexp.Regexp
	validate func(string) bool
}

var piiScanners = []piiScanner{
	{
		kind: PIIEmail,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		},
	},
	{
		kind: PIIPhone,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(\+?1[-.]?)?\(?([0-9]{3})\)?[-.]?([0-9]{3})[-.]?([0-9]{4})\b`),
		},
	},
	{
		kind: PIISSN,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),
			regexp.MustCompile(`\b[0-9]{9}\b`),
		},
		validate: plausibleSSN,
	},
	{
		kind: PIICreditCard,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b4[0-9]{12}(?:[0-9]{3})?\b`),     // Visa
			regexp.MustCompile(`\b5[1-5][0-9]{14}\b`),             // MasterCard
			regexp.MustCompile(`\b3[47][0-9]{13}\b`),              // Amex
			regexp.MustCompile(`\b6(?:011|5[0-9]{2})[0-9]{12}\b`), // Discover
		},
		validate: luhnValid,
	},
	{
		kind: PIIIPAddress,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
			regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`),
		},
	},
}

// ScanPII returns all PII occurrences found in text, ordered by position
func ScanPII(text string) []PIIMatch {
	var matches []PIIMatch
	for _, s := range piiScanners {
		for _, p := range s.patterns {
			for _, loc := range p.FindAllStringIndex(text, -1) {
				value := text[loc[0]:loc[1]]
				if s.validate != nil && !s.validate(value) {
					continue
				}
				matches = append(matches, PIIMatch{
					Kind:  s.kind,
					Value: value,
					Start: loc[0],
					End:   loc[1],
				})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// ContainsPII reports whether text contains any detectable PII
func ContainsPII(text string) bool {
	for _, s := range piiScanners {
		for _, p := range s.patterns {
			for _, loc := range p.FindAllStringIndex(text, -1) {
				if s.validate == nil || s.validate(text[loc[0]:loc[1]]) {
					return true
				}
			}
		}
	}
	return false
}

// PIIKinds returns the distinct kinds present in matches, sorted
func PIIKinds(matches []PIIMatch) []string {
	seen := make(map[string]struct{}, len(matches))
	var kinds []string
	for _, m := range matches {
		if _, ok := seen[string(m.Kind)]; ok {
			continue
		}
		seen[string(m.Kind)] = struct{}{}
		kinds = append(kinds, string(m.Kind))
	}
	sort.Strings(kinds)
	return kinds
}

// RedactPII replaces every detected occurrence with a kind-specific marker
func RedactPII(text string) string {
	matches := ScanPII(text)
	// Replace back to front so earlier offsets stay valid
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		text = text[:m.Start] + redactionMarker(m.Kind) + text[m.End:]
	}
	return text
}

func redactionMarker(kind PIIKind) string {
	return "[" + strings.ToUpper(string(kind)) + "_REDACTED]"
}

// plausibleSSN filters bare nine-digit numbers using SSN assignment rules:
// no all-zero group, no 666 or 9xx area prefix.
func plausibleSSN(s string) bool {
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 9 {
		return false
	}
	if s[:3] == "000" || s[3:5] == "00" || s[5:] == "0000" {
		return false
	}
	if strings.HasPrefix(s, "666") || strings.HasPrefix(s, "9") {
		return false
	}
	return true
}

// luhnValid runs the Luhn checksum over a candidate card number
func luhnValid(card string) bool {
	card = strings.ReplaceAll(card, " ", "")
	card = strings.ReplaceAll(card, "-", "")
	if len(card) < 13 || len(card) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(card) - 1; i >= 0; i-- {
		d := int(card[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
