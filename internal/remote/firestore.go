package remote

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/apex/log"
	"google.golang.org/api/option"
)

// FirestoreStore implements Store on top of Cloud Firestore snapshot
// listeners, which already deliver the full result set on every change.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	conf := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Subscribe(ctx context.Context, collection, orderBy string, descending bool) (<-chan Snapshot, error) {
	q := s.client.Collection(collection).Query
	if orderBy != "" {
		dir := firestore.Asc
		if descending {
			dir = firestore.Desc
		}
		q = q.OrderBy(orderBy, dir)
	}

	ch := make(chan Snapshot, 1)
	go func() {
		defer close(ch)
		for {
			if err := s.listen(ctx, q, collection, ch); err != nil {
				select {
				case ch <- Snapshot{Err: err}:
				case <-ctx.Done():
					return
				}
				// The iterator dies with its error; re-listen after a pause.
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			return
		}
	}()
	return ch, nil
}

// listen pumps snapshots until ctx is cancelled (nil return) or the
// iterator fails (non-nil return).
func (s *FirestoreStore) listen(ctx context.Context, q firestore.Query, collection string, ch chan<- Snapshot) error {
	it := q.Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("firestore listen on %s: %w", collection, err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("firestore read on %s: %w", collection, err)
		}

		out := make([]Document, 0, len(docs))
		for _, d := range docs {
			out = append(out, Document{ID: d.Ref.ID, Data: d.Data()})
		}

		select {
		case ch <- Snapshot{Documents: out}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *FirestoreStore) Insert(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["createdAt"] = firestore.ServerTimestamp

	ref, _, err := s.client.Collection(collection).Add(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("firestore insert into %s: %w", collection, err)
	}
	log.WithField("collection", collection).WithField("id", ref.ID).Debug("document inserted")
	return ref.ID, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
