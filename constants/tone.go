package constants

import (
	"strings"
)

type Tone string

const (
	ToneProfessional   Tone = "professional"
	ToneConversational Tone = "conversational"
	ToneAcademic       Tone = "academic"
	TonePersuasive     Tone = "persuasive"
	ToneFriendly       Tone = "friendly"
)

var allTones = []Tone{
	ToneProfessional,
	ToneConversational,
	ToneAcademic,
	TonePersuasive,
	ToneFriendly,
}

func ToneStrings() []string {
	result := make([]string, len(allTones))
	for i, t := range allTones {
		result[i] = string(t)
	}
	return result
}

// CanonicalizeTone maps free-form input onto a Tone. Empty input yields the default.
func CanonicalizeTone(input string) (Tone, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ToneProfessional, true
	}

	// synonyms map
	synonyms := map[string]Tone{
		"formal":       ToneProfessional,
		"business":     ToneProfessional,
		"casual":       ToneConversational,
		"informal":     ToneConversational,
		"scholarly":    ToneAcademic,
		"technical":    ToneAcademic,
		"salesy":       TonePersuasive,
		"marketing":    TonePersuasive,
		"warm":         ToneFriendly,
		"approachable": ToneFriendly,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allTones {
		if normalized == string(t) {
			return t, true
		}
	}
	return ToneProfessional, false
}

// LengthPreset is a named target article length.
type LengthPreset string

const (
	LengthShort  LengthPreset = "short"
	LengthMedium LengthPreset = "medium"
	LengthLong   LengthPreset = "long"
)

// Words returns the target word count of the preset.
func (l LengthPreset) Words() int {
	switch l {
	case LengthShort:
		return 800
	case LengthLong:
		return 2500
	default:
		return 1500
	}
}

func CanonicalizeLength(input string) (LengthPreset, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return LengthMedium, true
	case "short", "s", "brief":
		return LengthShort, true
	case "medium", "m", "standard":
		return LengthMedium, true
	case "long", "l", "longform", "long-form":
		return LengthLong, true
	}
	return LengthMedium, false
}
