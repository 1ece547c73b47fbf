package anthropic

// BuildCachedSystemBlocks returns text as a single system block with an
// ephemeral cache breakpoint. The tagging prompt is identical for every
// destination, so all calls after the first read it from the prompt cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "5m"},
		},
	}
}
