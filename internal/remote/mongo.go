package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "website_content"

// mongoSnapshot.Seq breaks created_at ties, which BSON stores to the
// millisecond.
type mongoSnapshot struct {
	ID        string             `bson:"_id"`
	Seq       primitive.ObjectID `bson:"seq"`
	Origin    string             `bson:"origin"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
}

var latestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}

func (m mongoSnapshot) snapshot() Snapshot {
	return Snapshot{
		ID:        m.ID,
		Origin:    m.Origin,
		Content:   json.RawMessage(m.Content),
		CreatedAt: m.CreatedAt,
	}
}

// Mongo stores snapshots in a collection and feeds inserts through a change
// stream, which needs a replica set.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongo connects to uri and uses the website_content collection of
// database.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	collection := client.Database(database).Collection(mongoCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: latestFirst,
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo index: %w", err)
	}
	return &Mongo{client: client, collection: collection}, nil
}

func (m *Mongo) Name() string { return "mongo" }

func (m *Mongo) FetchLatest(ctx context.Context) (Snapshot, error) {
	var doc mongoSnapshot
	opts := options.FindOne().SetSort(latestFirst)
	err := m.collection.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch latest snapshot: %w", err)
	}
	return doc.snapshot(), nil
}

func (m *Mongo) InsertSnapshot(ctx context.Context, origin string, content json.RawMessage) (Snapshot, error) {
	doc := mongoSnapshot{
		ID:        uuid.NewString(),
		Seq:       primitive.NewObjectID(),
		Origin:    origin,
		Content:   string(content),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return doc.snapshot(), nil
}

func (m *Mongo) SubscribeInserts(ctx context.Context, fn func(Snapshot)) (func(), error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}
	stream, err := m.collection.Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", mongoCollection, err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			var change struct {
				FullDocument mongoSnapshot `bson:"fullDocument"`
			}
			if err := stream.Decode(&change); err != nil {
				log.WithError(err).Warn("skipping undecodable mongo change")
				continue
			}
			fn(change.FullDocument.snapshot())
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			log.WithError(err).Warn("mongo insert feed stopped")
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}
