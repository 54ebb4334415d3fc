package couchbase

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
)

const (
	clusterReadyTimeout = 30 * time.Second
	bucketReadyTimeout  = 10 * time.Second
)

// ConnectionManager handles Couchbase cluster and bucket connections
type ConnectionManager struct {
	cluster *gocb.Cluster
	bucket  *gocb.Bucket
}

// ConnectionString normalises a configured address into a gocb connection string.
func ConnectionString(url string) string {
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	default:
		return "couchbase://" + url
	}
}

// NewConnectionManager connects to the cluster and waits until the KV and
// query services of the bucket are reachable.
func NewConnectionManager(url, username, password, bucketName string) (*ConnectionManager, error) {
	cluster, err := gocb.Connect(ConnectionString(url), gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	err = cluster.WaitUntilReady(clusterReadyTimeout, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("failed to wait for cluster: %w", err)
	}

	// Bucket is expected to exist already
	bucket := cluster.Bucket(bucketName)
	if err := bucket.WaitUntilReady(bucketReadyTimeout, nil); err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("bucket '%s' is not accessible: %w", bucketName, err)
	}

	return &ConnectionManager{
		cluster: cluster,
		bucket:  bucket,
	}, nil
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	return cm.cluster.Close(nil)
}

func (cm *ConnectionManager) Bucket() *gocb.Bucket {
	return cm.bucket
}

func (cm *ConnectionManager) Cluster() *gocb.Cluster {
	return cm.cluster
}
