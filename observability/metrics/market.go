package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"melodia/core/events"
	"melodia/core/types"
	"melodia/native/marketplace"
	"melodia/native/payments"
	"melodia/native/streaming"
)

// MarketMetrics aggregates the engine activity counters exported on /metrics.
type MarketMetrics struct {
	listings    prometheus.Counter
	sales       prometheus.Counter
	cancels     prometheus.Counter
	listens     prometheus.Counter
	withdrawals *prometheus.CounterVec
	credits     *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the lazily-initialised engine metrics registry.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listings: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "melodia",
				Subsystem: "market",
				Name:      "listings_total",
				Help:      "Count of listings created.",
			}),
			sales: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "melodia",
				Subsystem: "market",
				Name:      "sales_total",
				Help:      "Count of listings settled by a purchase.",
			}),
			cancels: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "melodia",
				Subsystem: "market",
				Name:      "cancellations_total",
				Help:      "Count of listings withdrawn by their seller.",
			}),
			listens: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "melodia",
				Subsystem: "streaming",
				Name:      "listen_batches_total",
				Help:      "Count of recorded listen batches.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "melodia",
				Subsystem: "payments",
				Name:      "withdrawals_total",
				Help:      "Count of pending-payment withdrawals by module.",
			}, []string{"module"}),
			credits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "melodia",
				Subsystem: "payments",
				Name:      "credits_total",
				Help:      "Count of pending-payment credits by module.",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			marketRegistry.listings,
			marketRegistry.sales,
			marketRegistry.cancels,
			marketRegistry.listens,
			marketRegistry.withdrawals,
			marketRegistry.credits,
		)
	})
	return marketRegistry
}

// Recorder is an events.Emitter that counts engine activity before handing
// the event to the next emitter in the chain.
type Recorder struct {
	metrics *MarketMetrics
	next    events.Emitter
}

// NewRecorder chains metric recording in front of next. A nil next is valid.
func NewRecorder(next events.Emitter) *Recorder {
	return &Recorder{metrics: Market(), next: next}
}

// Emit implements events.Emitter.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	switch evt.EventType() {
	case marketplace.EventTypeListed:
		r.metrics.listings.Inc()
	case marketplace.EventTypeSold:
		r.metrics.sales.Inc()
	case marketplace.EventTypeCancelled:
		r.metrics.cancels.Inc()
	case streaming.EventTypeBatchListens:
		r.metrics.listens.Inc()
	case payments.EventTypePaymentWithdrawn:
		r.metrics.withdrawals.WithLabelValues(moduleAttr(evt)).Inc()
	case payments.EventTypePaymentRecorded:
		r.metrics.credits.WithLabelValues(moduleAttr(evt)).Inc()
	}
	if r.next != nil {
		r.next.Emit(evt)
	}
}

// payloadCarrier is satisfied by every engine event envelope.
type payloadCarrier interface {
	Event() *types.Event
}

func moduleAttr(evt events.Event) string {
	carrier, ok := evt.(payloadCarrier)
	if !ok || carrier.Event() == nil {
		return "unknown"
	}
	if module, ok := carrier.Event().Attributes["module"]; ok {
		return module
	}
	return "unknown"
}
