package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
)

// SimulatedEvent identifies one successfully published synthetic event.
type SimulatedEvent struct {
	EventID   string           `json:"eventId"`
	EventType domain.EventType `json:"eventType"`
}

var (
	simPages      = []string{"/", "/products", "/cart", "/checkout", "/search"}
	simCategories = []string{"Electronics", "Clothing", "Home", "Books"}
	simQueries    = []string{"iphone", "laptop", "shoes", "dress", "headphones"}
	simPayments   = []string{"credit_card", "paypal", "apple_pay"}
)

// Simulate generates count random, schema-valid events across all
// types and publishes each one. It assigns synthetic identities
// directly rather than going through Submit's data-derived identity,
// so the load path cannot loosen production validation. Per-event
// publish failures are logged and omitted from the result.
func (c *Collector) Simulate(ctx context.Context, count int, meta domain.Metadata) []SimulatedEvent {
	results := make([]SimulatedEvent, 0, count)

	for i := 0; i < count; i++ {
		eventType := domain.EventTypes[rand.Intn(len(domain.EventTypes))]

		event := c.canonicalize(SubmitRequest{
			EventType: eventType,
			Data:      simulatedData(eventType),
			Metadata:  meta,
		})
		event.UserID = fmt.Sprintf("user_%d", rand.Intn(1000))
		event.SessionID = fmt.Sprintf("session_%d", rand.Intn(500))

		if err := c.publish(ctx, event); err != nil {
			c.logger.Error("failed to simulate event", "error", err, "event_type", eventType)
			continue
		}

		results = append(results, SimulatedEvent{EventID: event.EventID, EventType: eventType})
	}

	return results
}

// simulatedData builds a payload matching the schema of the given type.
func simulatedData(eventType domain.EventType) json.RawMessage {
	var data any

	switch eventType {
	case domain.EventPageView:
		data = map[string]string{"page": simPages[rand.Intn(len(simPages))]}
	case domain.EventProductView, domain.EventAddToCart:
		n := rand.Intn(100)
		data = domain.ProductData{
			ProductID:   fmt.Sprintf("prod_%d", n),
			ProductName: fmt.Sprintf("Product %d", n),
			Price:       round2(rand.Float64()*100 + 5),
			Category:    simCategories[rand.Intn(len(simCategories))],
		}
	case domain.EventSearch:
		data = domain.SearchData{
			Query:   simQueries[rand.Intn(len(simQueries))],
			Results: rand.Intn(50),
		}
	case domain.EventCheckoutComplete:
		data = domain.OrderData{
			OrderID:       fmt.Sprintf("order_%d", rand.Intn(10000)),
			Total:         round2(rand.Float64()*500 + 20),
			Items:         rand.Intn(5) + 1,
			PaymentMethod: simPayments[rand.Intn(len(simPayments))],
		}
	default:
		return json.RawMessage(`{}`)
	}

	payload, _ := json.Marshal(data)
	return payload
}

func round2(f float64) float64 {
	return float64(int(f*100)) / 100
}
