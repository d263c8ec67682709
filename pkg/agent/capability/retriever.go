package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/repository/unitofwork"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/connector"
	"workflow-agent-be/pkg/embedding"
)

const (
	DefaultTopK      = 3
	DefaultThreshold = 0.3
)

var (
	_ agent.Retriever = (*VectorRetriever)(nil)
	_ agent.Retriever = (*CatalogRetriever)(nil)
)

// Snippet renders one connector the way prompts reference it.
func Snippet(name, kind, id string) string {
	return fmt.Sprintf("Name: %s, Type: %s, ID: %s", name, kind, id)
}

// VectorRetriever embeds the prompt and returns the closest connectors from
// the connector_embeddings table.
type VectorRetriever struct {
	embedder   embedding.EmbeddingProvider
	uowFactory unitofwork.RepositoryFactory
	topK       int
	threshold  float64
	logger     logger.ILogger
}

func NewVectorRetriever(embedder embedding.EmbeddingProvider, uowFactory unitofwork.RepositoryFactory, topK int, threshold float64, log logger.ILogger) *VectorRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &VectorRetriever{
		embedder:   embedder,
		uowFactory: uowFactory,
		topK:       topK,
		threshold:  threshold,
		logger:     log,
	}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, prompt string) ([]string, error) {
	vec, err := r.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("embed prompt: %w", err)
	}
	if err := embedding.CheckDimensions(r.embedder, vec); err != nil {
		return nil, err
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.ConnectorEmbeddingRepository().SearchSimilarWithScore(ctx, embedding.Normalize(vec), r.topK, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("search connector embeddings: %w", err)
	}

	snippets := make([]string, 0, len(scored))
	for _, s := range scored {
		snippets = append(snippets, Snippet(s.Embedding.Name, s.Embedding.Kind, s.Embedding.ConnectorId))
	}
	r.logger.Debug("CAPABILITY", "Retrieved connector context", map[string]interface{}{
		"matches": len(snippets),
		"top_k":   r.topK,
	})
	return snippets, nil
}

// CatalogRetriever matches provider names and aliases mentioned in the
// prompt. It serves when no vector index is configured.
type CatalogRetriever struct {
	registry *connector.Registry
	topK     int
}

func NewCatalogRetriever(registry *connector.Registry, topK int) *CatalogRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &CatalogRetriever{registry: registry, topK: topK}
}

func (r *CatalogRetriever) Retrieve(ctx context.Context, prompt string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := words(prompt)

	type hit struct {
		at int
		d  *connector.Descriptor
	}
	var hits []hit
	for _, d := range r.registry.List() {
		at := -1
		for _, name := range append([]string{d.Name}, d.Aliases...) {
			if i := strings.Index(p, words(name)); i >= 0 && (at < 0 || i < at) {
				at = i
			}
		}
		if at >= 0 {
			hits = append(hits, hit{at: at, d: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })
	if len(hits) > r.topK {
		hits = hits[:r.topK]
	}

	snippets := make([]string, len(hits))
	for i, h := range hits {
		snippets[i] = Snippet(h.d.Name, string(h.d.Kind), h.d.ID)
	}
	return snippets, nil
}

// words lowercases s, turns punctuation into spaces and pads it so that a
// substring search only matches whole words.
func words(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return " " + strings.Join(strings.Fields(s), " ") + " "
}
