package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
)

// HandlerFunc applies one event's aggregate updates.
type HandlerFunc func(ctx context.Context, e *domain.Event) error

// newRegistry maps each handled event type to its update function.
// remove_from_cart and checkout_start carry no aggregates and have no
// entry; their raw events are still persisted by the caller.
func newRegistry(st Store) map[domain.EventType]HandlerFunc {
	h := &handlers{store: st}
	return map[domain.EventType]HandlerFunc{
		domain.EventPageView:         h.pageView,
		domain.EventProductView:      h.productView,
		domain.EventAddToCart:        h.addToCart,
		domain.EventCheckoutComplete: h.checkoutComplete,
		domain.EventSearch:           h.search,
	}
}

type handlers struct {
	store Store
}

func (h *handlers) pageView(ctx context.Context, e *domain.Event) error {
	if err := h.store.IncrementDailyPageViews(ctx, domain.DateKey(e.Timestamp)); err != nil {
		return fmt.Errorf("daily page views: %w", err)
	}
	if err := h.store.TouchSession(ctx, e); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

func (h *handlers) productView(ctx context.Context, e *domain.Event) error {
	p, err := e.ProductData()
	if err != nil {
		return fmt.Errorf("decoding product data: %w", err)
	}
	if p.ProductID == "" {
		return nil
	}

	if err := h.store.RecordProductView(ctx, e, p); err != nil {
		return fmt.Errorf("product views: %w", err)
	}
	if err := h.store.AppendViewedProduct(ctx, e, p); err != nil {
		return fmt.Errorf("user viewed products: %w", err)
	}
	return nil
}

func (h *handlers) addToCart(ctx context.Context, e *domain.Event) error {
	p, err := e.ProductData()
	if err != nil {
		return fmt.Errorf("decoding product data: %w", err)
	}
	if p.ProductID == "" {
		return nil
	}

	if err := h.store.RecordCartAdd(ctx, e, p); err != nil {
		return fmt.Errorf("product cart adds: %w", err)
	}

	// Recompute the derived conversion rate from a fresh read. The
	// counters themselves are atomic increments; this re-read-then-write
	// can briefly reflect a stale views/cartAdds pair under concurrent
	// cart adds for the same product.
	agg, err := h.store.ProductAggregate(ctx, p.ProductID)
	if err != nil {
		return fmt.Errorf("reading product aggregate: %w", err)
	}
	if agg != nil && agg.Views > 0 {
		rate := float64(agg.CartAdds) / float64(agg.Views) * 100
		if err := h.store.SetViewToCartRate(ctx, p.ProductID, rate); err != nil {
			return fmt.Errorf("view-to-cart rate: %w", err)
		}
	}

	if err := h.store.AppendCartEvent(ctx, e, p); err != nil {
		return fmt.Errorf("user cart events: %w", err)
	}
	return nil
}

func (h *handlers) checkoutComplete(ctx context.Context, e *domain.Event) error {
	o, err := e.OrderData()
	if err != nil {
		return fmt.Errorf("decoding order data: %w", err)
	}
	if o.OrderID == "" {
		return nil
	}

	if err := h.store.InsertOrder(ctx, &domain.Order{
		OrderID:       o.OrderID,
		UserID:        e.UserID,
		Total:         o.Total,
		Items:         o.Items,
		PaymentMethod: o.PaymentMethod,
		Timestamp:     e.Timestamp,
	}); err != nil {
		return fmt.Errorf("order: %w", err)
	}

	if err := h.store.IncrementDailySales(ctx, domain.DateKey(e.Timestamp), o.Total, o.Items); err != nil {
		return fmt.Errorf("daily sales: %w", err)
	}

	if err := h.store.RecordPurchase(ctx, e, o); err != nil {
		return fmt.Errorf("user purchases: %w", err)
	}
	return nil
}

func (h *handlers) search(ctx context.Context, e *domain.Event) error {
	d, err := e.SearchData()
	if err != nil {
		return fmt.Errorf("decoding search data: %w", err)
	}
	if d.Query == "" {
		return nil
	}

	if err := h.store.InsertSearch(ctx, &domain.SearchRecord{
		Query:     d.Query,
		UserID:    e.UserID,
		Results:   d.Results,
		Timestamp: e.Timestamp,
	}); err != nil {
		return fmt.Errorf("search record: %w", err)
	}

	if err := h.store.IncrementSearchTerm(ctx, strings.ToLower(d.Query), e.Timestamp); err != nil {
		return fmt.Errorf("search term: %w", err)
	}
	return nil
}
