package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
)

func boolPtr(b bool) *bool { return &b }

func TestSubmitRequestValidate(t *testing.T) {
	known := func(name string) bool { return name == "primary" || name == "backup" }

	t.Run("valid request resolves defaults", func(t *testing.T) {
		req, err := SubmitRequest{
			Topic:    "  Container security basics ",
			Keywords: []string{"container security", "Container  Security", "docker"},
			Tone:     "casual",
			Features: &FeatureFlags{WebSearch: boolPtr(true)},
			Oracles:  []string{"backup", "primary", "backup"},
		}.Validate(known)
		require.NoError(t, err)

		assert.Equal(t, "Container security basics", req.Topic)
		assert.Equal(t, []string{"container security", "docker"}, req.Keywords)
		assert.Equal(t, "container security", req.PrimaryKeyword())
		assert.Equal(t, constants.ToneConversational, req.Tone)
		assert.Equal(t, constants.LengthMedium, req.Length)
		assert.Equal(t, []string{"backup", "primary"}, req.Oracles)
		assert.True(t, req.Features.WebSearch)
		assert.True(t, req.Features.Enhancement)
		assert.False(t, req.Features.Consensus)
	})

	tests := []struct {
		name  string
		req   SubmitRequest
		field string
	}{
		{"missing topic", SubmitRequest{Keywords: []string{"k"}}, "topic"},
		{"short topic", SubmitRequest{Topic: "ab", Keywords: []string{"k"}}, "topic"},
		{"no keywords", SubmitRequest{Topic: "a topic"}, "keywords"},
		{"blank keyword", SubmitRequest{Topic: "a topic", Keywords: []string{" "}}, "keywords[0]"},
		{"bad tone", SubmitRequest{Topic: "a topic", Keywords: []string{"k"}, Tone: "sarcastic"}, "tone"},
		{"bad length", SubmitRequest{Topic: "a topic", Keywords: []string{"k"}, Length: "epic"}, "length"},
		{"target words too small", SubmitRequest{Topic: "a topic", Keywords: []string{"k"}, TargetWords: 10}, "target_words"},
		{"unknown oracle", SubmitRequest{Topic: "a topic", Keywords: []string{"k"}, Oracles: []string{"nope"}}, "oracles[0]"},
		{"too long audience", SubmitRequest{Topic: "a topic", Keywords: []string{"k"}, Audience: strings.Repeat("a", 201)}, "audience"},
		{"duplicate corpus id", SubmitRequest{Topic: "a topic", Keywords: []string{"k"}, Corpus: []ContentItem{
			{ID: "1", Title: "t", URL: "/a"}, {ID: "1", Title: "u", URL: "/b"},
		}}, "corpus[1].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.Validate(known)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)

			var ve common.ValidationErrors
			require.ErrorAs(t, err, &ve)
			fields := make([]string, 0, len(ve))
			for _, e := range ve {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
