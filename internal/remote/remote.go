package remote

import "context"

// Document is one record from a remote collection, decoded into a generic
// field map. ID is the store-assigned identifier.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Snapshot carries the full current document set of a collection, delivered
// on every change. A transient subscription failure is delivered in-band
// through Err so the consumer can keep its last-good state.
type Snapshot struct {
	Documents []Document
	Err       error
}

// Store is the push-capable document store the engine talks to. Insert
// stamps createdAt with a server-assigned timestamp; clients never set it.
type Store interface {
	Subscribe(ctx context.Context, collection, orderBy string, descending bool) (<-chan Snapshot, error)
	Insert(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}
