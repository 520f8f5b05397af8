package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSStore keeps objects in a JetStream object store bucket.
type NATSStore struct {
	conn   *nats.Conn
	owned  bool
	bucket string
	store  nats.ObjectStore
}

// NATSConfig configures DialNATS.
type NATSConfig struct {
	URL     string
	Bucket  string
	Timeout time.Duration
}

// DialNATS connects to url and opens the bucket. Close releases the
// connection.
func DialNATS(config NATSConfig) (*NATSStore, error) {
	if config.URL == "" {
		config.URL = nats.DefaultURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	conn, err := nats.Connect(config.URL,
		nats.Name("voicebank"),
		nats.Timeout(config.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open JetStream: %w", err)
	}

	s, err := NewNATSStore(js, config.Bucket)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.conn, s.owned = conn, true
	return s, nil
}

// NewNATSStore creates the bucket, or binds to it when it already exists.
func NewNATSStore(js nats.JetStreamContext, bucket string) (*NATSStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Approved renditions for %s.", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		bound, bindErr := js.ObjectStore(bucket)
		if bindErr != nil {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store = bound
	}

	return &NATSStore{bucket: bucket, store: store}, nil
}

// Put stores data under key with Content-Type and Cache-Control headers.
func (n *NATSStore) Put(_ context.Context, key string, data []byte, contentType, cacheControl string) error {
	headers := nats.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	if cacheControl != "" {
		headers.Set("Cache-Control", cacheControl)
	}

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:    key,
		Headers: headers,
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}
	return nil
}

// Get reads an object and its headers.
func (n *NATSStore) Get(_ context.Context, key string) (*Object, error) {
	obj, err := n.store.Get(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	info, err := obj.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read object info '%s': %w", key, err)
	}

	return &Object{
		Key:          key,
		Data:         data,
		ContentType:  info.Headers.Get("Content-Type"),
		CacheControl: info.Headers.Get("Cache-Control"),
	}, nil
}

// Close closes the connection if DialNATS opened it.
func (n *NATSStore) Close() error {
	if n.owned && n.conn != nil {
		n.conn.Close()
	}
	return nil
}
