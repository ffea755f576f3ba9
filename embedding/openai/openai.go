// Package openai provides an embedding.Backend backed by the OpenAI
// embeddings API.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/ragmesh/embedding"
	"github.com/openai/openai-go"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = openai.EmbeddingModelTextEmbedding3Small

var modelDimensions = map[string]int{
	openai.EmbeddingModelTextEmbedding3Small: 1536,
	openai.EmbeddingModelTextEmbedding3Large: 3072,
	openai.EmbeddingModelTextEmbeddingAda002: 1536,
}

// Options configure the OpenAI embedding backend.
type Options struct {
	Model string
	// Dimensions overrides the model's native dimension (text-embedding-3-* only).
	Dimensions int
	// Normalize L2-normalizes returned vectors.
	Normalize bool
	// BatchSize bounds the number of texts per request.
	BatchSize int
}

// Backend implements embedding.Backend over the Embeddings API.
type Backend struct {
	client *openai.Client
	opts   Options
}

var _ embedding.Backend = (*Backend)(nil)

// NewBackend creates a backend using the default client (OPENAI_API_KEY).
func NewBackend(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewBackendFromClient(&client, optFns...)
}

// NewBackendFromClient creates a backend from an existing client.
func NewBackendFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{Model: DefaultModel, Normalize: true, BatchSize: 128}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = modelDimensions[opts.Model]
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 128
	}
	return &Backend{client: client, opts: opts}
}

// Identity implements embedding.Backend.
func (b *Backend) Identity() embedding.Identity {
	return embedding.Identity{Name: "openai:" + b.opts.Model, Dim: b.opts.Dimensions, Normalize: b.opts.Normalize}
}

// Encode implements embedding.Backend.
func (b *Backend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.opts.BatchSize {
		end := min(start+b.opts.BatchSize, len(texts))
		vecs, err := b.encodeBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (b *Backend) encodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          b.opts.Model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if b.opts.Model != openai.EmbeddingModelTextEmbeddingAda002 && b.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(b.opts.Dimensions))
	}

	resp, err := b.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		if b.opts.Normalize {
			embedding.Normalize(v)
		}
		vecs[d.Index] = v
	}
	return vecs, nil
}
