package graph

import (
	"context"

	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
)

// disabledStore stands in when no graph endpoint is configured. Every
// read reports the knowledge store as unavailable; the relational side
// keeps working.
type disabledStore struct{}

func NewDisabledStore() Store { return disabledStore{} }

func (disabledStore) GetDocument(ctx context.Context, t models.KnowledgeType, key string) (*Document, error) {
	return nil, fault.Unavailable("knowledge store not configured", nil)
}

func (disabledStore) Search(ctx context.Context, term string, collections []string, limit int) (*SearchResults, error) {
	return nil, fault.Unavailable("knowledge store not configured", nil)
}

func (disabledStore) RawQuery(ctx context.Context, query string, bindVars map[string]any) ([]map[string]any, error) {
	return nil, fault.Unavailable("knowledge store not configured", nil)
}

func (disabledStore) Health(ctx context.Context) error {
	return fault.Unavailable("knowledge store not configured", nil)
}
