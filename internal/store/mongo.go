package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names the processor writes to.
const (
	EventsCollection           = "events"
	MetricsCollection          = "metrics"
	SessionsCollection         = "sessions"
	ProductAnalyticsCollection = "product_analytics"
	UserAnalyticsCollection    = "user_analytics"
	OrdersCollection           = "orders"
	SearchesCollection         = "searches"
	SearchAnalyticsCollection  = "search_analytics"
	RealTimeMetricsCollection  = "real_time_metrics"
)

// MongoStore is the document store behind all aggregate mutation. Its
// atomic single-document upsert/increment is the only concurrency
// control in the pipeline; there is no multi-document consistency.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the secondary indexes the per-event handler
// reads depend on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		EventsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "eventType", Value: 1}}},
			{Keys: bson.D{{Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "data.productId", Value: 1}}},
		},
		MetricsCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "date", Value: 1}}},
		},
		SessionsCollection: {
			{Keys: bson.D{{Key: "sessionId", Value: 1}}},
		},
		ProductAnalyticsCollection: {
			{Keys: bson.D{{Key: "productId", Value: 1}}},
		},
		UserAnalyticsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "orderId", Value: 1}}},
		},
		SearchAnalyticsCollection: {
			{Keys: bson.D{{Key: "term", Value: 1}}},
		},
		RealTimeMetricsCollection: {
			{Keys: bson.D{{Key: "metric", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", coll, err)
		}
	}
	return nil
}
