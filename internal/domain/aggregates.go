package domain

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DailyMetric is a monotonically incremented per-day counter document,
// keyed by metric name and calendar date.
type DailyMetric struct {
	ID      primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Name    string             `json:"name" bson:"name"`
	Date    string             `json:"date" bson:"date"`
	Count   int64              `json:"count" bson:"count"`
	Revenue float64            `json:"revenue,omitempty" bson:"revenue,omitempty"`
	Items   int64              `json:"items,omitempty" bson:"items,omitempty"`
}

// Session tracks per-session page-view activity, created on the first
// page view and updated thereafter.
type Session struct {
	ID         primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	SessionID  string             `json:"sessionId" bson:"sessionId"`
	UserID     string             `json:"userId" bson:"userId"`
	PageViews  int64              `json:"pageViews" bson:"pageViews"`
	FirstSeen  time.Time          `json:"firstSeen" bson:"firstSeen"`
	LastActive time.Time          `json:"lastActive" bson:"lastActive"`
	UserAgent  string             `json:"userAgent" bson:"userAgent"`
}

// ProductAggregate summarizes view and cart activity per product.
// ViewToCartRate is derived (cartAdds/views*100) and only set once the
// product has at least one view.
type ProductAggregate struct {
	ID              primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	ProductID       string             `json:"productId" bson:"productId"`
	ProductName     string             `json:"productName" bson:"productName"`
	Price           float64            `json:"price" bson:"price"`
	Category        string             `json:"category" bson:"category"`
	Views           int64              `json:"views" bson:"views"`
	CartAdds        int64              `json:"cartAdds" bson:"cartAdds"`
	ViewToCartRate  *float64           `json:"viewToCartRate,omitempty" bson:"viewToCartRate,omitempty"`
	LastViewed      time.Time          `json:"lastViewed,omitempty" bson:"lastViewed,omitempty"`
	LastAddedToCart time.Time          `json:"lastAddedToCart,omitempty" bson:"lastAddedToCart,omitempty"`
}

// ViewedProduct is one entry in a user's product-view history.
type ViewedProduct struct {
	ProductID   string    `json:"productId" bson:"productId"`
	ProductName string    `json:"productName" bson:"productName"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// CartEvent is one entry in a user's cart history.
type CartEvent struct {
	ProductID   string    `json:"productId" bson:"productId"`
	Action      string    `json:"action" bson:"action"`
	ProductName string    `json:"productName" bson:"productName"`
	Price       float64   `json:"price" bson:"price"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// Purchase is one entry in a user's purchase history.
type Purchase struct {
	OrderID   string    `json:"orderId" bson:"orderId"`
	Total     float64   `json:"total" bson:"total"`
	Items     int       `json:"items" bson:"items"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// UserAggregate holds a user's append-only history sequences and
// running purchase totals.
type UserAggregate struct {
	ID             primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	UserID         string             `json:"userId" bson:"userId"`
	ViewedProducts []ViewedProduct    `json:"viewedProducts,omitempty" bson:"viewedProducts,omitempty"`
	CartEvents     []CartEvent        `json:"cartEvents,omitempty" bson:"cartEvents,omitempty"`
	Purchases      []Purchase         `json:"purchases,omitempty" bson:"purchases,omitempty"`
	TotalSpent     float64            `json:"totalSpent" bson:"totalSpent"`
	TotalOrders    int64              `json:"totalOrders" bson:"totalOrders"`
	LastActive     time.Time          `json:"lastActive" bson:"lastActive"`
}

// Order is an immutable snapshot of a completed checkout.
type Order struct {
	ID            primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	OrderID       string             `json:"orderId" bson:"orderId"`
	UserID        string             `json:"userId" bson:"userId"`
	Total         float64            `json:"total" bson:"total"`
	Items         int                `json:"items" bson:"items"`
	PaymentMethod string             `json:"paymentMethod" bson:"paymentMethod"`
	Timestamp     time.Time          `json:"timestamp" bson:"timestamp"`
}

// SearchRecord is an append-only record of a single search.
type SearchRecord struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Query     string             `json:"query" bson:"query"`
	UserID    string             `json:"userId" bson:"userId"`
	Results   int                `json:"results" bson:"results"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
}

// SearchTermAggregate counts searches per lower-cased term.
type SearchTermAggregate struct {
	ID           primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Term         string             `json:"term" bson:"term"`
	Count        int64              `json:"count" bson:"count"`
	LastSearched time.Time          `json:"lastSearched" bson:"lastSearched"`
}

// RealTimeBucket holds per-event-type counters for one minute. The
// per-type counters live as top-level document fields (page_view,
// search, ...) so a single atomic $inc covers both the total and the
// specific type; the inline map collects them on decode.
type RealTimeBucket struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Metric    string             `json:"metric" bson:"metric"`
	Timestamp string             `json:"timestamp" bson:"timestamp"`
	Total     int64              `json:"total" bson:"total"`
	ByType    map[string]int64   `json:"-" bson:",inline"`
}

// MarshalJSON flattens the per-type counters to top-level keys so the
// published snapshot matches the stored document shape.
func (b RealTimeBucket) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.ByType)+3)
	for k, v := range b.ByType {
		out[k] = v
	}
	out["metric"] = b.Metric
	out["timestamp"] = b.Timestamp
	out["total"] = b.Total
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (b *RealTimeBucket) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["metric"]; ok {
		if err := json.Unmarshal(v, &b.Metric); err != nil {
			return err
		}
	}
	if v, ok := raw["timestamp"]; ok {
		if err := json.Unmarshal(v, &b.Timestamp); err != nil {
			return err
		}
	}
	if v, ok := raw["total"]; ok {
		if err := json.Unmarshal(v, &b.Total); err != nil {
			return err
		}
	}
	for k, v := range raw {
		switch k {
		case "metric", "timestamp", "total":
			continue
		}
		var n int64
		if err := json.Unmarshal(v, &n); err != nil {
			continue
		}
		if b.ByType == nil {
			b.ByType = make(map[string]int64)
		}
		b.ByType[k] = n
	}
	return nil
}
