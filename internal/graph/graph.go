// Package graph reads the knowledge base held in ArangoDB. The graph side
// is authoritative for document content; the relational side only holds
// links pointing at it.
package graph

import (
	"context"

	"github.com/verityhq/verity/internal/models"
)

// Document is one knowledge entry. Content is schema-free on the graph
// side, so everything beyond the key travels as a loose field map.
type Document struct {
	Key        string         `json:"key"`
	Collection string         `json:"collection"`
	Fields     map[string]any `json:"fields"`
}

// Hit is a single search match.
type Hit struct {
	Collection string   `json:"collection"`
	Document   Document `json:"document"`
}

// SearchResults carries matches plus the collections that could not be
// searched. A partial answer with Degraded set is still an answer.
type SearchResults struct {
	Hits     []Hit    `json:"hits"`
	Degraded []string `json:"degraded,omitempty"`
}

type Store interface {
	// GetDocument fetches one document by knowledge type and key. A
	// missing document is fault.KindNotFound; an unreachable store is
	// fault.KindUnavailable.
	GetDocument(ctx context.Context, t models.KnowledgeType, key string) (*Document, error)

	// Search scans knowledge collections for the term. An empty
	// collections list means all of them. Collections that fail are
	// reported in Degraded rather than failing the call.
	Search(ctx context.Context, term string, collections []string, limit int) (*SearchResults, error)

	// RawQuery runs an arbitrary read query with bind variables.
	RawQuery(ctx context.Context, query string, bindVars map[string]any) ([]map[string]any, error)

	Health(ctx context.Context) error
}

// Collections holds the fixed knowledge type to collection mapping.
var Collections = map[models.KnowledgeType]string{
	models.KnowledgePattern:      "knowledge_patterns",
	models.KnowledgeStandard:     "coding_standards",
	models.KnowledgeRequirement:  "requirements",
	models.KnowledgeArchitecture: "architecture_patterns",
}

// CollectionFor resolves the collection a knowledge type lives in.
func CollectionFor(t models.KnowledgeType) (string, bool) {
	c, ok := Collections[t]
	return c, ok
}

// KnownCollection reports whether name is one of the fixed knowledge
// collections.
func KnownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}
