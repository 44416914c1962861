package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	driver "github.com/arangodb/go-driver"
	driverhttp "github.com/arangodb/go-driver/http"
	"golang.org/x/sync/errgroup"

	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
)

type ArangoStore struct {
	client driver.Client
	db     driver.Database
}

type ArangoConfig struct {
	Endpoint string
	Database string
	Username string
	Password string
}

func NewArangoStore(ctx context.Context, cfg ArangoConfig) (*ArangoStore, error) {
	conn, err := driverhttp.NewConnection(driverhttp.ConnectionConfig{
		Endpoints: []string{cfg.Endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("arango connection: %w", err)
	}
	client, err := driver.NewClient(driver.ClientConfig{
		Connection:     conn,
		Authentication: driver.BasicAuthentication(cfg.Username, cfg.Password),
	})
	if err != nil {
		return nil, fmt.Errorf("arango client: %w", err)
	}
	db, err := client.Database(ctx, cfg.Database)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "knowledge store unreachable", err)
	}
	return &ArangoStore{client: client, db: db}, nil
}

func (a *ArangoStore) Health(ctx context.Context) error {
	if _, err := a.client.Version(ctx); err != nil {
		return fault.Wrap(fault.KindUnavailable, "knowledge store unreachable", err)
	}
	return nil
}

func (a *ArangoStore) GetDocument(ctx context.Context, t models.KnowledgeType, key string) (*Document, error) {
	collection, ok := CollectionFor(t)
	if !ok {
		return nil, fault.Validationf("unknown knowledge type %q", t)
	}
	col, err := a.db.Collection(ctx, collection)
	if err != nil {
		if driver.IsNotFound(err) {
			return nil, fault.NotFound("knowledge document")
		}
		return nil, fault.Wrap(fault.KindUnavailable, "knowledge store unreachable", err)
	}
	var fields map[string]any
	if _, err := col.ReadDocument(ctx, key, &fields); err != nil {
		if driver.IsNotFound(err) {
			return nil, fault.NotFound("knowledge document")
		}
		return nil, fault.Wrap(fault.KindUnavailable, "knowledge store unreachable", err)
	}
	return &Document{Key: key, Collection: collection, Fields: fields}, nil
}

// Search fans out one AQL query per requested knowledge collection, or
// every collection when none are named. A collection that errors is
// recorded as degraded; the remaining matches are still returned.
func (a *ArangoStore) Search(ctx context.Context, term string, collections []string, limit int) (*SearchResults, error) {
	if limit <= 0 {
		limit = 20
	}
	if len(collections) == 0 {
		for _, c := range Collections {
			collections = append(collections, c)
		}
	}

	var mu sync.Mutex
	results := &SearchResults{}

	g, gctx := errgroup.WithContext(ctx)
	for _, collection := range collections {
		if !KnownCollection(collection) {
			return nil, fault.Validationf("unknown collection %q", collection)
		}
		collection := collection
		g.Go(func() error {
			hits, err := a.searchCollection(gctx, collection, term, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results.Degraded = append(results.Degraded, collection)
				return nil
			}
			results.Hits = append(results.Hits, hits...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results.Hits, func(i, j int) bool {
		if results.Hits[i].Collection != results.Hits[j].Collection {
			return results.Hits[i].Collection < results.Hits[j].Collection
		}
		return results.Hits[i].Document.Key < results.Hits[j].Document.Key
	})
	sort.Strings(results.Degraded)
	return results, nil
}

func (a *ArangoStore) searchCollection(ctx context.Context, collection, term string, limit int) ([]Hit, error) {
	query := fmt.Sprintf(`
		FOR d IN %s
			FILTER CONTAINS(LOWER(d.title), LOWER(@term))
				OR CONTAINS(LOWER(d.content), LOWER(@term))
				OR CONTAINS(LOWER(d.description), LOWER(@term))
			LIMIT @limit
			RETURN d`, collection)
	cursor, err := a.db.Query(ctx, query, map[string]any{
		"term":  term,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var hits []Hit
	for {
		var fields map[string]any
		meta, err := cursor.ReadDocument(ctx, &fields)
		if driver.IsNoMoreDocuments(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{
			Collection: collection,
			Document:   Document{Key: meta.Key, Collection: collection, Fields: fields},
		})
	}
	return hits, nil
}

func (a *ArangoStore) RawQuery(ctx context.Context, query string, bindVars map[string]any) ([]map[string]any, error) {
	cursor, err := a.db.Query(ctx, query, bindVars)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "knowledge query failed", err)
	}
	defer cursor.Close()

	var out []map[string]any
	for {
		var row map[string]any
		_, err := cursor.ReadDocument(ctx, &row)
		if driver.IsNoMoreDocuments(err) {
			break
		}
		if err != nil {
			return nil, fault.Wrap(fault.KindUnavailable, "knowledge query failed", err)
		}
		out = append(out, row)
	}
	return out, nil
}
