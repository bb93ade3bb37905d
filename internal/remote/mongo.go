package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on top of MongoDB change streams. Every
// change event triggers a re-fetch of the full collection, so consumers
// see the same full-set semantics as the Firestore listener.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}

	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (s *MongoStore) Subscribe(ctx context.Context, collection, orderBy string, descending bool) (<-chan Snapshot, error) {
	ch := make(chan Snapshot, 1)

	go func() {
		defer close(ch)

		// Initial full set before any change arrives.
		s.deliver(ctx, collection, orderBy, descending, ch)

		for {
			if ctx.Err() != nil {
				return
			}
			stream, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case ch <- Snapshot{Err: fmt.Errorf("mongo watch on %s: %w", collection, err)}:
				case <-ctx.Done():
					return
				}
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			for stream.Next(ctx) {
				s.deliver(ctx, collection, orderBy, descending, ch)
			}
			if err := stream.Err(); err != nil && ctx.Err() == nil {
				select {
				case ch <- Snapshot{Err: fmt.Errorf("mongo stream on %s: %w", collection, err)}:
				case <-ctx.Done():
					stream.Close(context.Background())
					return
				}
			}
			stream.Close(context.Background())
		}
	}()

	return ch, nil
}

func (s *MongoStore) deliver(ctx context.Context, collection, orderBy string, descending bool, ch chan<- Snapshot) {
	docs, err := s.fetchAll(ctx, collection, orderBy, descending)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		select {
		case ch <- Snapshot{Err: err}:
		case <-ctx.Done():
		}
		return
	}
	select {
	case ch <- Snapshot{Documents: docs}:
	case <-ctx.Done():
	}
}

func (s *MongoStore) fetchAll(ctx context.Context, collection, orderBy string, descending bool) ([]Document, error) {
	opts := options.Find()
	if orderBy != "" {
		dir := 1
		if descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: orderBy, Value: dir}})
	}

	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find on %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("mongo decode on %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		doc := Document{Data: make(map[string]interface{}, len(m))}
		for k, v := range m {
			if k == "_id" {
				if oid, ok := v.(primitive.ObjectID); ok {
					doc.ID = oid.Hex()
					continue
				}
				doc.ID = fmt.Sprintf("%v", v)
				continue
			}
			doc.Data[k] = normalize(v)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// normalize maps BSON wrapper types onto the plain Go types the Firestore
// client produces, so consumers decode documents the same way for both
// backends.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case primitive.Binary:
		return t.Data
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case int32:
		return int64(t)
	default:
		return v
	}
}

func (s *MongoStore) Insert(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, bson.M(data))
	if err != nil {
		return "", fmt.Errorf("mongo insert into %s: %w", collection, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("mongo insert into %s: unexpected id type %T", collection, res.InsertedID)
	}

	// createdAt is stamped by the server, never by this client.
	_, err = s.db.Collection(collection).UpdateByID(ctx, oid,
		bson.M{"$currentDate": bson.M{"createdAt": true}})
	if err != nil {
		log.WithError(err).WithField("collection", collection).Warn("failed to stamp createdAt")
	}

	return oid.Hex(), nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid document id %q", id)
	}

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
