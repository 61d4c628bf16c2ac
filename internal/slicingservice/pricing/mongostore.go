package pricing

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
)

const mongoOpTimeout = 5 * time.Second

// mongoRateDocument is one technology's rate table in the collection.
type mongoRateDocument struct {
	Technology string         `bson:"_id"`
	Materials  map[string]int `bson:"materials"`
}

// MongoStore persists the rate table in a MongoDB collection, one document
// per technology. Intended for deployments where several service instances
// share a pricing table; single-instance deployments use the FileStore.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB and returns a store over the given
// database and collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}
	return &MongoStore{collection: client.Database(database).Collection(collection)}, nil
}

// Load reads all technology documents. An empty collection reports ok=false
// so the registry seeds defaults.
func (s *MongoStore) Load() (Rates, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		logger.LogError("query pricing collection", err)
		return nil, false
	}
	defer func() { _ = cursor.Close(ctx) }()

	rates := make(Rates)
	for cursor.Next(ctx) {
		var doc mongoRateDocument
		if err := cursor.Decode(&doc); err != nil {
			logger.LogError("decode pricing document", err)
			return nil, false
		}
		tech, known := model.ParseTechnology(doc.Technology)
		if !known {
			logger.LogWarning("ignoring unknown technology in pricing collection: " + doc.Technology)
			continue
		}
		rates[tech] = doc.Materials
	}
	if err := cursor.Err(); err != nil {
		logger.LogError("iterate pricing collection", err)
		return nil, false
	}
	if len(rates) == 0 {
		return nil, false
	}
	return rates, true
}

// Save upserts one document per technology. Each ReplaceOne is atomic per
// document, which is sufficient because technologies are independent tables.
func (s *MongoStore) Save(rates Rates) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	for tech, materials := range rates {
		doc := mongoRateDocument{Technology: string(tech), Materials: materials}
		_, err := s.collection.ReplaceOne(
			ctx,
			bson.D{{Key: "_id", Value: string(tech)}},
			doc,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
