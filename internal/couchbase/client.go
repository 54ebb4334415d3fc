package couchbase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// Config selects the cluster and keyspace a Client works against.
type Config struct {
	URL        string
	Username   string
	Password   string
	Bucket     string
	Scope      string
	Collection string
}

// Client represents a Couchbase client that orchestrates all operations
type Client struct {
	connManager *ConnectionManager
	docManager  *DocumentManager
}

// NewClient creates a new Couchbase client
func NewClient(cfg Config) (*Client, error) {
	connManager, err := NewConnectionManager(cfg.URL, cfg.Username, cfg.Password, cfg.Bucket)
	if err != nil {
		return nil, err
	}

	docManager := NewDocumentManager(connManager.Cluster(), connManager.Bucket(), cfg.Scope, cfg.Collection)

	return &Client{
		connManager: connManager,
		docManager:  docManager,
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}

// Ping checks the KV service of the bucket.
func (c *Client) Ping(ctx context.Context) error {
	opts := &gocb.PingOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue},
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts.Timeout = time.Until(deadline)
	}

	report, err := c.connManager.Bucket().Ping(opts)
	if err != nil {
		return fmt.Errorf("failed to ping bucket: %w", err)
	}

	for _, endpoints := range report.Services {
		for _, ep := range endpoints {
			if ep.State != gocb.PingStateOk {
				return fmt.Errorf("endpoint %s is not healthy: %v", ep.Remote, ep.State)
			}
		}
	}
	return nil
}

func (c *Client) UpsertDocument(ctx context.Context, docID string, data []byte) error {
	return c.docManager.UpsertDocument(ctx, docID, data)
}

func (c *Client) GetDocument(ctx context.Context, docID string) (json.RawMessage, error) {
	return c.docManager.GetDocument(ctx, docID)
}

func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	return c.docManager.DeleteDocument(ctx, docID)
}

func (c *Client) ScanPrefix(ctx context.Context, pattern string) ([]Row, error) {
	return c.docManager.ScanPrefix(ctx, pattern)
}
