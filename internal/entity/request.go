package entity

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
)

// SubmitRequest is the raw generation request as received from callers.
type SubmitRequest struct {
	Topic       string        `json:"topic" validate:"notblank,min=3,max=300"`
	Keywords    []string      `json:"keywords" validate:"required,min=1,max=20,dive,notblank,max=100"`
	Tone        string        `json:"tone,omitempty" validate:"tone"`
	Length      string        `json:"length,omitempty" validate:"length_preset"`
	TargetWords int           `json:"target_words,omitempty" validate:"omitempty,gte=300,lte=10000"`
	Audience    string        `json:"audience,omitempty" validate:"max=200"`
	Oracles     []string      `json:"oracles,omitempty" validate:"max=10,dive,notblank"`
	Features    *FeatureFlags `json:"features,omitempty"`
	Corpus      []ContentItem `json:"corpus,omitempty" validate:"max=5000,dive"`
}

// FeatureFlags toggles optional pipeline behavior. Nil fields take their defaults.
type FeatureFlags struct {
	KeywordResearch *bool `json:"keyword_research,omitempty"`
	WebSearch       *bool `json:"web_search,omitempty"`
	Consensus       *bool `json:"consensus,omitempty"`
	Enhancement     *bool `json:"enhancement,omitempty"`
	Interlinking    *bool `json:"interlinking,omitempty"`
	Archive         *bool `json:"archive,omitempty"`
}

// Features is the resolved form of FeatureFlags.
type Features struct {
	KeywordResearch bool `json:"keyword_research"`
	WebSearch       bool `json:"web_search"`
	Consensus       bool `json:"consensus"`
	Enhancement     bool `json:"enhancement"`
	Interlinking    bool `json:"interlinking"`
	Archive         bool `json:"archive"`
}

// DefaultFeatures is used for every flag the caller leaves unset.
var DefaultFeatures = Features{
	KeywordResearch: true,
	WebSearch:       false,
	Consensus:       false,
	Enhancement:     true,
	Interlinking:    true,
	Archive:         true,
}

func (f *FeatureFlags) resolve() Features {
	out := DefaultFeatures
	if f == nil {
		return out
	}
	pick := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	pick(&out.KeywordResearch, f.KeywordResearch)
	pick(&out.WebSearch, f.WebSearch)
	pick(&out.Consensus, f.Consensus)
	pick(&out.Enhancement, f.Enhancement)
	pick(&out.Interlinking, f.Interlinking)
	pick(&out.Archive, f.Archive)
	return out
}

// GenerationRequest is a validated SubmitRequest. Internal code only sees this type.
type GenerationRequest struct {
	Topic       string
	Keywords    []string
	Tone        constants.Tone
	Length      constants.LengthPreset
	TargetWords int
	Audience    string
	Oracles     []string
	Features    Features
	Corpus      []ContentItem
}

// PrimaryKeyword is the first keyword.
func (r GenerationRequest) PrimaryKeyword() string {
	if len(r.Keywords) == 0 {
		return ""
	}
	return r.Keywords[0]
}

// Validate checks the request and builds the GenerationRequest.
// knownOracle reports whether an oracle name is registered; nil skips that check.
func (s SubmitRequest) Validate(knownOracle func(string) bool) (GenerationRequest, error) {
	v := common.NewValidator()
	if err := common.ValidateStruct(s); err != nil {
		if !v.Merge(err) {
			return GenerationRequest{}, err
		}
	}

	keywords := make([]string, 0, len(s.Keywords))
	seen := make(map[string]struct{}, len(s.Keywords))
	for _, k := range s.Keywords {
		k = strings.Join(strings.Fields(k), " ")
		key := strings.ToLower(k)
		if _, dup := seen[key]; dup || k == "" {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, k)
	}

	oracles := make([]string, 0, len(s.Oracles))
	for i, name := range s.Oracles {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if knownOracle != nil && !knownOracle(name) {
			v.Add(fmt.Sprintf("oracles[%d]", i), name, "is not a registered oracle")
			continue
		}
		if !slices.Contains(oracles, name) {
			oracles = append(oracles, name)
		}
	}

	corpusIDs := make(map[string]struct{}, len(s.Corpus))
	for i, item := range s.Corpus {
		if _, dup := corpusIDs[item.ID]; dup {
			v.Add(fmt.Sprintf("corpus[%d].id", i), item.ID, "is duplicated")
		}
		corpusIDs[item.ID] = struct{}{}
	}

	if err := v.Error(); err != nil {
		return GenerationRequest{}, err
	}

	tone, _ := constants.CanonicalizeTone(s.Tone)
	length, _ := constants.CanonicalizeLength(s.Length)
	return GenerationRequest{
		Topic:       strings.TrimSpace(s.Topic),
		Keywords:    keywords,
		Tone:        tone,
		Length:      length,
		TargetWords: s.TargetWords,
		Audience:    strings.TrimSpace(s.Audience),
		Oracles:     oracles,
		Features:    s.Features.resolve(),
		Corpus:      slices.Clone(s.Corpus),
	}, nil
}
