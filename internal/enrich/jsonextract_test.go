package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "bare object",
			text:   `{"tags":["a"]}`,
			want:   `{"tags":["a"]}`,
			wantOK: true,
		},
		{
			name:   "wrapped in prose",
			text:   "Here you go:\n```json\n{\"tags\": [\"rooftop\"], \"suggested_category\": \"Bars\"}\n```\nEnjoy!",
			want:   `{"tags": ["rooftop"], "suggested_category": "Bars"}`,
			wantOK: true,
		},
		{
			name:   "braces inside strings",
			text:   `note {"tagline": "a {curly} story", "tags": []} end`,
			want:   `{"tagline": "a {curly} story", "tags": []}`,
			wantOK: true,
		},
		{
			name:   "skips malformed candidate",
			text:   `{not json} then {"ok": true}`,
			want:   `{"ok": true}`,
			wantOK: true,
		},
		{
			name:   "nested",
			text:   `x {"a": {"b": 1}} y`,
			want:   `{"a": {"b": 1}}`,
			wantOK: true,
		},
		{
			name: "no object",
			text: "I cannot help with that.",
		},
		{
			name: "unbalanced",
			text: `{"tags": ["a"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
