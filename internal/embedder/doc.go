// Package embedder provides AI providers for embeddings and chat
// completions.
//
// Three providers implement the Provider interface:
//   - OpenAI: embeddings and chat completions via the OpenAI API
//   - Ollama: a local Ollama server over HTTP
//   - Static: deterministic hash-derived vectors, no network
//
// # Provider Selection
//
// The factory reads configuration from the environment:
//
//	provider, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
// REPOCTX_EMBEDDING_PROVIDER selects a provider explicitly (openai,
// ollama, static). Without it, OPENAI_API_KEY selects OpenAI and
// OLLAMA_HOST selects Ollama. The static provider is the offline
// fallback and the stub used throughout the test suite.
//
// # Embeddings
//
//	vector, err := provider.Embed(ctx, "func authenticate(user, pass string) error")
//
//	vectors, err := provider.EmbedBatch(ctx, texts)
//
// Results are cached in an in-memory LRU keyed by content hash, so
// embedding the same text twice costs one API call.
//
// # Chat
//
//	text, err := provider.Chat(ctx, []embedder.Message{
//	    {Role: "system", Content: "Summarize code in one sentence."},
//	    {Role: "user", Content: source},
//	}, nil)
//
// Chat responses are opaque text. Callers that cache them are
// responsible for recording the file hashes they were derived from.
//
// # Retry Behavior
//
// API calls retry up to 3 times with exponential backoff (100ms base,
// 5s cap, x2 per attempt). HTTP 429 responses surface *RateLimitError
// and the wait honors the server's Retry-After header when present.
package embedder
