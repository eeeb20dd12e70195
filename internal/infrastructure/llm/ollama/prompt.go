package ollama

func buildIntentPrompt(query string) string {
	const maxSnippet = 2000
	snippet := query
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You are a query intent classifier for a retrieval system.
Return strict JSON object with one key:
query_type (one of "explicit_fact", "implicit_fact", "interpretable_rationale", "hidden_rationale").
No markdown, no extra keys.

Query:
` + snippet
}
