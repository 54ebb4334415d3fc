package kvstore

import (
	"context"
	"errors"

	"stealthcompany.com/clinicportal/internal/couchbase"
)

// CouchbaseStore keeps each key as one document in a single collection.
type CouchbaseStore struct {
	client *couchbase.Client
}

// NewCouchbaseStore connects to the cluster described by cfg.
func NewCouchbaseStore(cfg couchbase.Config) (*CouchbaseStore, error) {
	client, err := couchbase.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &CouchbaseStore{client: client}, nil
}

func (s *CouchbaseStore) Set(ctx context.Context, key string, value any) error {
	b, err := encode(value)
	if err != nil {
		return err
	}
	return s.client.UpsertDocument(ctx, key, b)
}

func (s *CouchbaseStore) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.client.GetDocument(ctx, key)
	if err != nil {
		if errors.Is(err, couchbase.ErrDocumentNotFound) {
			return ErrNotFound
		}
		return err
	}
	return decode(raw, dest)
}

func (s *CouchbaseStore) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.client.ScanPrefix(ctx, likePrefix(prefix))
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{Key: r.ID, Value: r.Value})
	}
	return out, nil
}

func (s *CouchbaseStore) Delete(ctx context.Context, key string) error {
	return s.client.DeleteDocument(ctx, key)
}

func (s *CouchbaseStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *CouchbaseStore) Close() error {
	return s.client.Close()
}
