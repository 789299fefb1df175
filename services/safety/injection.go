package safety

import (
	"regexp"
	"sort"
)

// InjectionKind identifies a category of prompt-injection attempt
type InjectionKind string

const (
	InjectionPromptLeak          InjectionKind = "system_prompt_leak"
	InjectionRoleManipulation    InjectionKind = "role_manipulation"
	InjectionInstructionOverride InjectionKind = "instruction_override"
	InjectionExfiltration        InjectionKind = "data_exfiltration"
	InjectionJailbreak           InjectionKind = "jailbreak"
	InjectionDelimiter           InjectionKind = "delimiter_attack"
	InjectionEncoding            InjectionKind = "encoding_attack"
)

// blockConfidence is the minimum confidence at which a detection is
// considered strong enough to block a request.
const blockConfidence = 0.8

// InjectionMatch is one detected injection attempt in the scanned text
type InjectionMatch struct {
	Kind       InjectionKind
	Confidence float64
	Start      int
	End        int
}

// injectionScanner groups the patterns for one injection kind with the
// confidence assigned to a match.
type injectionScanner struct {
	kind       InjectionKind
	confidence float64
	patterns   []*regexp.Regexp
}

var injectionScanners = []injectionScanner{
	{
		kind:       InjectionPromptLeak,
		confidence: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|commands?)`),
			regexp.MustCompile(`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden|secret)\s+(prompt|instructions?)`),
			regexp.MustCompile(`(?i)what\s+(is|are|was|were)\s+(your|the)\s+(system|original|initial)\s+(prompt|instructions?)`),
		},
	},
	{
		kind:       InjectionRoleManipulation,
		confidence: 0.85,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(you|your)\s+(are|role|identity)\s+(now|is|changed)`),
			regexp.MustCompile(`(?i)assume\s+(the\s+)?(role|identity)\s+of`),
			regexp.MustCompile(`(?i)pretend\s+(to\s+)?be\s+(a|an)`),
			regexp.MustCompile(`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`),
		},
	},
	{
		kind:       InjectionInstructionOverride,
		confidence: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)disregard\s+(all|previous|above|any)\s+(instructions?|rules|commands?)`),
			regexp.MustCompile(`(?i)override\s+(all|previous|system)\s+(instructions?|rules|settings?)`),
			regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous|what\s+you\s+learned)`),
		},
	},
	{
		kind:       InjectionExfiltration,
		confidence: 0.85,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(execute|run)\s+(this|the\s+following)\s+(code|script|command)`),
			regexp.MustCompile(`(?i)(eval|system|exec)\s*\(`),
			regexp.MustCompile(`(?i)send\s+(data|information|content)\s+to\s+(http|https)://`),
		},
	},
	{
		kind:       InjectionJailbreak,
		confidence: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(DAN|developer|unrestricted|god)\s+mode`),
			regexp.MustCompile(`(?i)jailbreak`),
			regexp.MustCompile(`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?|guidelines?)`),
		},
	},
	{
		kind:       InjectionDelimiter,
		confidence: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\[/?(SYSTEM|USER|ASSISTANT)\]`),
			regexp.MustCompile(`<\|(system|user|assistant|end)\|>`),
			regexp.MustCompile(`###\s*(SYSTEM|USER|ASSISTANT|INSTRUCTION)`),
		},
	},
	{
		kind:       InjectionEncoding,
		confidence: 0.7,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)base64\s*[:\s=]\s*[A-Za-z0-9+/]{20,}={0,2}`),
			regexp.MustCompile(`(?i)hex\s*[:\s=]\s*[0-9a-fA-F]{20,}`),
			regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){10,}`),
		},
	},
}

// ScanInjections returns all injection attempts found in text, ordered by
// position
func ScanInjections(text string) []InjectionMatch {
	var matches []InjectionMatch
	for _, s := range injectionScanners {
		for _, p := range s.patterns {
			for _, loc := range p.FindAllStringIndex(text, -1) {
				matches = append(matches, InjectionMatch{
					Kind:       s.kind,
					Confidence: s.confidence,
					Start:      loc[0],
					End:        loc[1],
				})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// DetectInjection reports the first high-confidence injection attempt in
// text. Low-confidence signals such as encoding heuristics never block on
// their own.
func DetectInjection(text string) (InjectionKind, bool) {
	for _, m := range ScanInjections(text) {
		if m.Confidence >= blockConfidence {
			return m.Kind, true
		}
	}
	return "", false
}
