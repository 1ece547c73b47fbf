package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/pkg/anthropic"
)

const (
	minTags = 5
	maxTags = 8
)

// Facts is what the tagger sees about one destination.
type Facts struct {
	Name             string
	City             string
	Category         string
	Description      string
	EditorialSummary string
	GoogleTypes      []string
	WantTagline      bool
}

// Tags is the tagger's answer. A zero value means nothing usable came back.
type Tags struct {
	Tags              []string `json:"tags"`
	SuggestedCategory string   `json:"suggested_category"`
	Tagline           string   `json:"tagline"`

	Usage anthropic.TokenUsage `json:"-"`
}

// Tagger derives descriptive tags and a category suggestion.
type Tagger interface {
	Tags(ctx context.Context, f Facts) (*Tags, error)
}

var tagSystemPrompt = `You are a travel expert categorizing destinations. For the place described by the user, provide:
1. ` + fmt.Sprintf("%d-%d", minTags, maxTags) + ` descriptive tags (e.g. "romantic", "family-friendly", "hidden gem", "michelin-recommended", "rooftop", "speakeasy").
2. The best category, which must be one of: ` + strings.Join(Vocabulary, ", ") + `.
3. Only when the user asks for it, a tagline of exactly 5 words in an editorial, story-driven tone with no closing punctuation (e.g. "Refined Japanese dining meets tradition").

Respond ONLY with valid JSON in this exact format:
{"tags": ["tag1", "tag2", "tag3", "tag4", "tag5"], "suggested_category": "Category Name", "tagline": ""}

Tags are lowercase, concise and highly searchable.`

// AnthropicTagger asks Claude for tags.
type AnthropicTagger struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *resilience.Limiter
}

// NewAnthropicTagger creates a tagger. limiter may be nil.
func NewAnthropicTagger(client anthropic.Client, model string, maxTokens int64, limiter *resilience.Limiter) *AnthropicTagger {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &AnthropicTagger{client: client, model: model, maxTokens: maxTokens, limiter: limiter}
}

// Tags implements Tagger. Quota errors are returned; any other failure,
// including an unparseable answer, yields empty Tags and a nil error.
func (t *AnthropicTagger) Tags(ctx context.Context, f Facts) (*Tags, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "enrich: tagger rate limit")
	}

	temp := 0.3
	resp, err := t.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       t.model,
		MaxTokens:   t.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(tagSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: factsPrompt(f)}},
		Temperature: &temp,
	})
	if err != nil {
		if resilience.IsQuota(err) || ctx.Err() != nil {
			return nil, err
		}
		zap.L().Warn("enrich: tagger call failed", zap.String("name", f.Name), zap.Error(err))
		return &Tags{}, nil
	}

	tags := parseTags(resp.Text())
	tags.Usage = resp.Usage
	if len(tags.Tags) == 0 {
		zap.L().Debug("enrich: no tags parsed", zap.String("name", f.Name))
	}
	if !f.WantTagline {
		tags.Tagline = ""
	}
	return tags, nil
}

func factsPrompt(f Facts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Place: %s\nLocation: %s\n", f.Name, f.City)
	if f.Category != "" {
		fmt.Fprintf(&b, "Current category: %s\n", f.Category)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}
	if f.EditorialSummary != "" {
		fmt.Fprintf(&b, "Editorial summary: %s\n", f.EditorialSummary)
	}
	if len(f.GoogleTypes) > 0 {
		fmt.Fprintf(&b, "Google types: %s\n", strings.Join(f.GoogleTypes, ", "))
	}
	if f.WantTagline {
		b.WriteString("Also write the 5-word tagline.\n")
	}
	return b.String()
}

// parseTags extracts and normalizes the JSON answer. Anything unparseable
// becomes empty Tags.
func parseTags(text string) *Tags {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return &Tags{}
	}
	var out Tags
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return &Tags{}
	}
	out.Tags = normalizeTags(out.Tags)
	out.Tagline = strings.TrimRight(strings.TrimSpace(out.Tagline), ".!")
	return &out
}

func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
