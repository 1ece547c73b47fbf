package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/pkg/anthropic"
)

type fakeMessages struct {
	text string
	err  error
	reqs []anthropic.MessageRequest
}

func (f *fakeMessages) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}, nil
}

func TestAnthropicTagger_ParsesWrappedJSON(t *testing.T) {
	fake := &fakeMessages{text: "Sure!\n```json\n" +
		`{"tags": ["Sushi", " omakase", "sushi", "Hidden Gem"], "suggested_category": "Restaurants", "tagline": "Pristine fish at dawn."}` +
		"\n```"}
	tagger := NewAnthropicTagger(fake, "claude-haiku-4-5-20251001", 0, nil)

	got, err := tagger.Tags(context.Background(), Facts{
		Name:        "Tsukiji Sushi",
		City:        "Tokyo",
		GoogleTypes: []string{"restaurant"},
		WantTagline: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"sushi", "omakase", "hidden gem"}, got.Tags)
	assert.Equal(t, "Restaurants", got.SuggestedCategory)
	assert.Equal(t, "Pristine fish at dawn", got.Tagline)
	assert.Equal(t, int64(100), got.Usage.InputTokens)

	require.Len(t, fake.reqs, 1)
	req := fake.reqs[0]
	assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
	assert.Equal(t, int64(300), req.MaxTokens)
	require.Len(t, req.System, 1)
	assert.NotNil(t, req.System[0].CacheControl)
	assert.Contains(t, req.System[0].Text, "Restaurants, Cafes, Bars")
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "Place: Tsukiji Sushi")
	assert.Contains(t, req.Messages[0].Content, "Google types: restaurant")
	assert.Contains(t, req.Messages[0].Content, "5-word tagline")
}

func TestAnthropicTagger_DropsUnrequestedTagline(t *testing.T) {
	fake := &fakeMessages{text: `{"tags":["a"],"suggested_category":"Bars","tagline":"Five words of pure poetry"}`}
	tagger := NewAnthropicTagger(fake, "m", 200, nil)

	got, err := tagger.Tags(context.Background(), Facts{Name: "x"})
	require.NoError(t, err)
	assert.Empty(t, got.Tagline)
	assert.NotContains(t, fake.reqs[0].Messages[0].Content, "tagline")
}

func TestAnthropicTagger_UnparseableIsNoTags(t *testing.T) {
	fake := &fakeMessages{text: "I'm not sure what this place is."}
	tagger := NewAnthropicTagger(fake, "m", 200, nil)

	got, err := tagger.Tags(context.Background(), Facts{Name: "x"})
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
	assert.Empty(t, got.SuggestedCategory)
}

func TestAnthropicTagger_ApiErrorDegrades(t *testing.T) {
	fake := &fakeMessages{err: errors.New("boom")}
	tagger := NewAnthropicTagger(fake, "m", 200, nil)

	got, err := tagger.Tags(context.Background(), Facts{Name: "x"})
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestAnthropicTagger_QuotaPropagates(t *testing.T) {
	fake := &fakeMessages{err: resilience.NewQuotaError("anthropic", 429, "rate limited")}
	tagger := NewAnthropicTagger(fake, "m", 200, nil)

	_, err := tagger.Tags(context.Background(), Facts{Name: "x"})
	require.Error(t, err)
	assert.True(t, resilience.IsQuota(err))
}

func TestNormalizeTags_Caps(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	assert.Len(t, normalizeTags(in), maxTags)
	assert.Nil(t, normalizeTags([]string{" ", ""}))
}
