// Package rag provides retrieval pipeline configuration options.
package rag

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/aegis/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains retrieval pipeline configuration.
type Options struct {
	// ChunkSize is the size of text chunks in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of results to return from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// ContextBudget caps the total characters of retrieved context
	// assembled into the generation prompt.
	ContextBudget int `json:"context-budget" mapstructure:"context-budget"`

	// MinScore drops retrieved chunks below this similarity score.
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// SystemPrompt is the system prompt for grounded generation.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// DefaultSystemPrompt instructs the model to answer only from retrieved context.
const DefaultSystemPrompt = `You are a knowledge assistant. Answer the question using only the provided context.
If the context does not contain the answer, say that you do not know.
Always cite the source documents when providing information.

Context:
{{context}}

Question: {{question}}`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:     500,
		ChunkOverlap:  50,
		TopK:          3,
		Collection:    "aegis_knowledge",
		EmbeddingDim:  768, // nomic-embed-text dimension
		ContextBudget: 4000,
		MinScore:      0,
		SystemPrompt:  DefaultSystemPrompt,
	}
}

// AddFlags adds flags for retrieval options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"rag.chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"rag.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"rag.top-k", o.TopK, "Number of results from similarity search.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"rag.collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"rag.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.ContextBudget, options.Join(prefixes...)+"rag.context-budget", o.ContextBudget, "Character budget for assembled context.")
	fs.Float64Var(&o.MinScore, options.Join(prefixes...)+"rag.min-score", o.MinScore, "Minimum similarity score for retrieved chunks.")
	fs.StringVar(&o.SystemPrompt, options.Join(prefixes...)+"rag.system-prompt", o.SystemPrompt, "System prompt for grounded generation.")
}

// Validate validates the retrieval options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk-overlap cannot be negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be smaller than chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.ContextBudget <= 0 {
		errs = append(errs, fmt.Errorf("context-budget must be positive"))
	}
	if o.SystemPrompt != "" && (!strings.Contains(o.SystemPrompt, "{{context}}") || !strings.Contains(o.SystemPrompt, "{{question}}")) {
		errs = append(errs, fmt.Errorf("system-prompt must contain {{context}} and {{question}} placeholders"))
	}
	return errs
}

// Complete completes the retrieval options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}
