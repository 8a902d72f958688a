package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of behavioral event a client submitted.
type EventType string

const (
	EventPageView         EventType = "page_view"
	EventProductView      EventType = "product_view"
	EventAddToCart        EventType = "add_to_cart"
	EventRemoveFromCart   EventType = "remove_from_cart"
	EventCheckoutStart    EventType = "checkout_start"
	EventCheckoutComplete EventType = "checkout_complete"
	EventSearch           EventType = "search"
)

// EventTypes is the full whitelist accepted by the collector.
var EventTypes = []EventType{
	EventPageView,
	EventProductView,
	EventAddToCart,
	EventRemoveFromCart,
	EventCheckoutStart,
	EventCheckoutComplete,
	EventSearch,
}

// Valid reports whether t is in the whitelist.
func (t EventType) Valid() bool {
	for _, v := range EventTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Metadata carries informational request context captured at ingress.
type Metadata struct {
	UserAgent string `json:"userAgent" bson:"userAgent"`
	IPAddress string `json:"ipAddress" bson:"ipAddress"`
	Referrer  string `json:"referrer" bson:"referrer"`
}

// Event is the unit of ingestion. The collector assigns EventID and
// Timestamp exactly once; the event is immutable downstream.
type Event struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Metadata  Metadata        `json:"metadata"`
}

// ProductData is the payload shape of product_view and add_to_cart events.
type ProductData struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

// OrderData is the payload shape of checkout_complete events.
type OrderData struct {
	OrderID       string  `json:"orderId"`
	Total         float64 `json:"total"`
	Items         int     `json:"items"`
	PaymentMethod string  `json:"paymentMethod"`
}

// SearchData is the payload shape of search events.
type SearchData struct {
	Query   string `json:"query"`
	Results int    `json:"results"`
}

// ProductData decodes the event payload as product fields.
func (e *Event) ProductData() (ProductData, error) {
	var d ProductData
	err := json.Unmarshal(e.Data, &d)
	return d, err
}

// OrderData decodes the event payload as order fields.
func (e *Event) OrderData() (OrderData, error) {
	var d OrderData
	err := json.Unmarshal(e.Data, &d)
	return d, err
}

// SearchData decodes the event payload as search fields.
func (e *Event) SearchData() (SearchData, error) {
	var d SearchData
	err := json.Unmarshal(e.Data, &d)
	return d, err
}

const (
	dateKeyLayout   = "2006-01-02"
	minuteKeyLayout = "2006-01-02T15:04"
)

// DateKey formats t as the daily-metric bucket key (UTC calendar date).
func DateKey(t time.Time) string {
	return t.UTC().Format(dateKeyLayout)
}

// MinuteKey formats t as the minute-truncated real-time bucket key.
// Keys sort lexicographically in time order, so range queries over
// the rolling window are plain string comparisons.
func MinuteKey(t time.Time) string {
	return t.UTC().Format(minuteKeyLayout)
}
