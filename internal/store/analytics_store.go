package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var upsert = options.Update().SetUpsert(true)

// InsertEvent persists the raw event verbatim, keyed by eventId. This
// is a plain insert: redelivered messages produce duplicate raw events
// (documented at-least-once limitation).
func (s *MongoStore) InsertEvent(ctx context.Context, e *domain.Event) error {
	var data bson.M
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return fmt.Errorf("decoding event data: %w", err)
		}
	}

	doc := bson.M{
		"eventId":   e.EventID,
		"eventType": string(e.EventType),
		"userId":    e.UserID,
		"sessionId": e.SessionID,
		"timestamp": e.Timestamp,
		"data":      data,
		"metadata":  e.Metadata,
	}
	if _, err := s.db.Collection(EventsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// IncrementDailyPageViews bumps the daily_page_views counter for date.
func (s *MongoStore) IncrementDailyPageViews(ctx context.Context, date string) error {
	_, err := s.db.Collection(MetricsCollection).UpdateOne(ctx,
		bson.M{"name": "daily_page_views", "date": date},
		bson.M{"$inc": bson.M{"count": 1}},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("incrementing daily page views: %w", err)
	}
	return nil
}

// IncrementDailySales bumps the daily_sales counters for date.
func (s *MongoStore) IncrementDailySales(ctx context.Context, date string, revenue float64, items int) error {
	_, err := s.db.Collection(MetricsCollection).UpdateOne(ctx,
		bson.M{"name": "daily_sales", "date": date},
		bson.M{"$inc": bson.M{"count": 1, "revenue": revenue, "items": items}},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("incrementing daily sales: %w", err)
	}
	return nil
}

// TouchSession creates the session document on first page view and
// bumps its page-view count thereafter.
func (s *MongoStore) TouchSession(ctx context.Context, e *domain.Event) error {
	_, err := s.db.Collection(SessionsCollection).UpdateOne(ctx,
		bson.M{"sessionId": e.SessionID},
		bson.M{
			"$set":         bson.M{"userId": e.UserID, "lastActive": e.Timestamp},
			"$inc":         bson.M{"pageViews": 1},
			"$setOnInsert": bson.M{"firstSeen": e.Timestamp, "userAgent": e.Metadata.UserAgent},
		},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", e.SessionID, err)
	}
	return nil
}

// RecordProductView increments the product's view counter and refreshes
// its descriptive fields.
func (s *MongoStore) RecordProductView(ctx context.Context, e *domain.Event, p domain.ProductData) error {
	_, err := s.db.Collection(ProductAnalyticsCollection).UpdateOne(ctx,
		bson.M{"productId": p.ProductID},
		bson.M{
			"$inc": bson.M{"views": 1},
			"$set": bson.M{
				"lastViewed":  e.Timestamp,
				"productName": p.ProductName,
				"price":       p.Price,
				"category":    p.Category,
			},
		},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("recording product view %s: %w", p.ProductID, err)
	}
	return nil
}

// RecordCartAdd increments the product's cart-add counter and refreshes
// its descriptive fields.
func (s *MongoStore) RecordCartAdd(ctx context.Context, e *domain.Event, p domain.ProductData) error {
	_, err := s.db.Collection(ProductAnalyticsCollection).UpdateOne(ctx,
		bson.M{"productId": p.ProductID},
		bson.M{
			"$inc": bson.M{"cartAdds": 1},
			"$set": bson.M{
				"lastAddedToCart": e.Timestamp,
				"productName":     p.ProductName,
				"price":           p.Price,
				"category":        p.Category,
			},
		},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("recording cart add %s: %w", p.ProductID, err)
	}
	return nil
}

// ProductAggregate returns the aggregate for productID, or nil if the
// product has never been seen.
func (s *MongoStore) ProductAggregate(ctx context.Context, productID string) (*domain.ProductAggregate, error) {
	var agg domain.ProductAggregate
	err := s.db.Collection(ProductAnalyticsCollection).
		FindOne(ctx, bson.M{"productId": productID}).
		Decode(&agg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("querying product aggregate %s: %w", productID, err)
	}
	return &agg, nil
}

// SetViewToCartRate writes the derived conversion rate. This is a
// read-modify-write relative to the counters and may briefly reflect a
// stale views/cartAdds pair under concurrent cart adds.
func (s *MongoStore) SetViewToCartRate(ctx context.Context, productID string, rate float64) error {
	_, err := s.db.Collection(ProductAnalyticsCollection).UpdateOne(ctx,
		bson.M{"productId": productID},
		bson.M{"$set": bson.M{"viewToCartRate": rate}},
	)
	if err != nil {
		return fmt.Errorf("setting view-to-cart rate %s: %w", productID, err)
	}
	return nil
}

// AppendViewedProduct appends to the user's product-view history.
func (s *MongoStore) AppendViewedProduct(ctx context.Context, e *domain.Event, p domain.ProductData) error {
	_, err := s.db.Collection(UserAnalyticsCollection).UpdateOne(ctx,
		bson.M{"userId": e.UserID},
		bson.M{
			"$push": bson.M{"viewedProducts": domain.ViewedProduct{
				ProductID:   p.ProductID,
				ProductName: p.ProductName,
				Timestamp:   e.Timestamp,
			}},
			"$set": bson.M{"lastActive": e.Timestamp},
		},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("appending viewed product for %s: %w", e.UserID, err)
	}
	return nil
}

// AppendCartEvent appends an add action to the user's cart history.
func (s *MongoStore) AppendCartEvent(ctx context.Context, e *domain.Event, p domain.ProductData) error {
	_, err := s.db.Collection(UserAnalyticsCollection).UpdateOne(ctx,
		bson.M{"userId": e.UserID},
		bson.M{
			"$push": bson.M{"cartEvents": domain.CartEvent{
				ProductID:   p.ProductID,
				Action:      "add",
				ProductName: p.ProductName,
				Price:       p.Price,
				Timestamp:   e.Timestamp,
			}},
			"$set": bson.M{"lastActive": e.Timestamp},
		},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("appending cart event for %s: %w", e.UserID, err)
	}
	return nil
}

// RecordPurchase appends to the user's purchase history and bumps the
// running totals.
func (s *MongoStore) RecordPurchase(ctx context.Context, e *domain.Event, o domain.OrderData) error {
	_, err := s.db.Collection(UserAnalyticsCollection).UpdateOne(ctx,
		bson.M{"userId": e.UserID},
		bson.M{
			"$push": bson.M{"purchases": domain.Purchase{
				OrderID:   o.OrderID,
				Total:     o.Total,
				Items:     o.Items,
				Timestamp: e.Timestamp,
			}},
			"$inc": bson.M{"totalSpent": o.Total, "totalOrders": 1},
			"$set": bson.M{"lastActive": e.Timestamp},
		},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("recording purchase for %s: %w", e.UserID, err)
	}
	return nil
}

// InsertOrder stores the immutable order snapshot.
func (s *MongoStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	if _, err := s.db.Collection(OrdersCollection).InsertOne(ctx, o); err != nil {
		return fmt.Errorf("inserting order %s: %w", o.OrderID, err)
	}
	return nil
}

// InsertSearch stores one append-only search record.
func (s *MongoStore) InsertSearch(ctx context.Context, rec *domain.SearchRecord) error {
	if _, err := s.db.Collection(SearchesCollection).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("inserting search: %w", err)
	}
	return nil
}

// IncrementSearchTerm bumps the popularity counter for a lower-cased term.
func (s *MongoStore) IncrementSearchTerm(ctx context.Context, term string, at time.Time) error {
	_, err := s.db.Collection(SearchAnalyticsCollection).UpdateOne(ctx,
		bson.M{"term": term},
		bson.M{
			"$inc": bson.M{"count": 1},
			"$set": bson.M{"lastSearched": at},
		},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("incrementing search term %q: %w", term, err)
	}
	return nil
}

// IncrementRealTimeBucket atomically bumps the total and per-type
// counters of the minute bucket, creating it on first write.
func (s *MongoStore) IncrementRealTimeBucket(ctx context.Context, metric, minute string, eventType domain.EventType) error {
	_, err := s.db.Collection(RealTimeMetricsCollection).UpdateOne(ctx,
		bson.M{"metric": metric, "timestamp": minute},
		bson.M{"$inc": bson.M{"total": 1, string(eventType): 1}},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("incrementing real-time bucket %s: %w", minute, err)
	}
	return nil
}

// RealTimeWindow returns all buckets for metric with a minute key at or
// after sinceMinute. Minute keys sort lexicographically in time order.
func (s *MongoStore) RealTimeWindow(ctx context.Context, metric, sinceMinute string) ([]domain.RealTimeBucket, error) {
	cursor, err := s.db.Collection(RealTimeMetricsCollection).Find(ctx,
		bson.M{"metric": metric, "timestamp": bson.M{"$gte": sinceMinute}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("querying real-time window: %w", err)
	}
	defer cursor.Close(ctx)

	var buckets []domain.RealTimeBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("decoding real-time buckets: %w", err)
	}
	if buckets == nil {
		buckets = []domain.RealTimeBucket{}
	}
	return buckets, nil
}
