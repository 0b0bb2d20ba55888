// Package embedder turns chunk and symbol text into fixed-length vectors.
//
// An Embedder is a pluggable provider. Two implementations ship:
//
//   - HashProvider: deterministic placeholder vectors derived from a text
//     hash (v[i] = sin(seed + i*31)*0.5 + 0.5, 128 dimensions by default).
//     Equal texts give equal vectors, which keeps tests reproducible.
//   - HTTPProvider: any OpenAI-compatible POST /embeddings endpoint
//     (OpenAI, Jina, self-hosted servers) with per-batch retry, a request
//     rate limit and a 30 second timeout.
//
// # Engine
//
// Engine wraps a provider for the indexer:
//
//	emb, err := embedder.New(embedder.Config{Provider: "hash"})
//	if err != nil {
//	    return err
//	}
//	engine := embedder.NewEngine(emb,
//	    embedder.WithBatchSize(100),
//	    embedder.WithConcurrency(4),
//	)
//
//	texts := make([]string, len(chunks))
//	for i, c := range chunks {
//	    texts[i] = embedder.FormatChunk(c)
//	}
//	vectors, err := engine.EmbedBatch(ctx, texts)
//
// EmbedBatch splits its input into fixed-size batches and runs a bounded
// number of them at once. A failed batch fails the whole call with a
// *types.EmbeddingBatchError; zero vectors are never substituted. Every
// returned vector is checked against the provider dimension.
//
// EmbedQuery embeds search queries and keeps recent results in an LRU cache
// keyed by provider, model and text hash.
//
// # Provider Selection
//
// Config.Provider picks the implementation:
//
//	hash    placeholder, no network (default)
//	openai  api.openai.com, key from Config.APIKey or OPENAI_API_KEY
//	jina    api.jina.ai, key from Config.APIKey or JINA_API_KEY
//	http    any compatible server at Config.BaseURL
//	auto    jina or openai when a key is present, hash otherwise
//
// # Retries
//
// HTTP failures and 5xx/429 responses are retried with exponential backoff
// (100ms doubling to 5s, three attempts). Other 4xx responses fail at once.
package embedder
