package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore is a Store backed by a NATS JetStream KV bucket. It lets a fleet
// of hosts publish their pending-reboot records to a central bucket instead
// of (or in addition to) local state files.
type NATSStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// OpenNATSStore connects to NATS and binds (or creates) the given KV bucket.
func OpenNATSStore(ctx context.Context, natsURL, bucket string) (*NATSStore, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create KV bucket %s: %w", bucket, err)
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// natsKey maps store keys onto the NATS KV key alphabet. Resource names are
// file paths, and "/" is not a valid KV key character.
func natsKey(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

// Get retrieves the value for key.
func (n *NATSStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}

// Set stores value under key.
func (n *NATSStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := n.kv.Put(ctx, natsKey(key), value); err != nil {
		return fmt.Errorf("put key %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (n *NATSStore) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, natsKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete key %s: %w", key, err)
	}
	return nil
}

// Flush is a no-op: JetStream KV writes are durable once acknowledged.
func (n *NATSStore) Flush(_ context.Context) error {
	return nil
}

// Close drops the NATS connection.
func (n *NATSStore) Close() error {
	n.nc.Close()
	return nil
}
