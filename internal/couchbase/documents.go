package couchbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
)

// ErrDocumentNotFound is returned when a document id does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentManager handles document CRUD operations on one collection
type DocumentManager struct {
	cluster    *gocb.Cluster
	collection *gocb.Collection
	keyspace   string
}

// NewDocumentManager binds a document manager to bucket.scope.collection.
func NewDocumentManager(cluster *gocb.Cluster, bucket *gocb.Bucket, scope, collection string) *DocumentManager {
	if scope == "" {
		scope = "_default"
	}
	if collection == "" {
		collection = "_default"
	}

	return &DocumentManager{
		cluster:    cluster,
		collection: bucket.Scope(scope).Collection(collection),
		keyspace:   fmt.Sprintf("`%s`.`%s`.`%s`", bucket.Name(), scope, collection),
	}
}

// UpsertDocument stores or replaces a JSON document.
func (dm *DocumentManager) UpsertDocument(ctx context.Context, docID string, data []byte) error {
	_, err := dm.collection.Upsert(docID, json.RawMessage(data), &gocb.UpsertOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", docID, err)
	}
	return nil
}

// GetDocument returns the raw JSON content of a document.
func (dm *DocumentManager) GetDocument(ctx context.Context, docID string) (json.RawMessage, error) {
	res, err := dm.collection.Get(docID, &gocb.GetOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", docID, err)
	}

	var raw json.RawMessage
	if err := res.Content(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse document content: %w", err)
	}
	return raw, nil
}

// DeleteDocument removes a document. Missing documents are not an error.
func (dm *DocumentManager) DeleteDocument(ctx context.Context, docID string) error {
	_, err := dm.collection.Remove(docID, &gocb.RemoveOptions{Context: ctx})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	return nil
}

// Row is one result of a prefix scan.
type Row struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// ScanPrefix runs a N1QL query over document ids. pattern is a LIKE pattern
// that is already escaped by the caller.
func (dm *DocumentManager) ScanPrefix(ctx context.Context, pattern string) ([]Row, error) {
	stmt := fmt.Sprintf("SELECT META(d).id AS id, d AS `value` FROM %s AS d WHERE META(d).id LIKE $pattern ORDER BY META(d).id", dm.keyspace)

	result, err := dm.cluster.Query(stmt, &gocb.QueryOptions{
		NamedParameters: map[string]interface{}{"pattern": pattern},
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
		Context:         ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run prefix query: %w", err)
	}
	defer result.Close()

	var rows []Row
	for result.Next() {
		var row Row
		if err := result.Row(&row); err != nil {
			return nil, fmt.Errorf("failed to decode query row: %w", err)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("prefix query failed: %w", err)
	}
	return rows, nil
}
