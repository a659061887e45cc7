package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "ohlcv_collector"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "requests_total",
		Help:      "Total number of exchange API requests issued.",
	})
	requestFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "request_failures_total",
		Help:      "Total number of exchange API requests that failed.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "retries_total",
		Help:      "Total number of retried exchange API requests.",
	})
	rateLimitHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "rate_limit_hits_total",
		Help:      "Total number of rate-limited responses.",
	})
	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "pages_total",
		Help:      "Total number of candle pages fetched.",
	})
	pairsCollected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "pairs_collected_total",
		Help:      "Total number of (asset, exchange) pairs collected in full.",
	})
	pairsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "pairs_failed_total",
		Help:      "Total number of (asset, exchange) pairs that ended with a failure.",
	})

	registry.MustRegister(requests, requestFailures, retries, rateLimitHits, pages, pairsCollected, pairsFailed)

	m := &Metrics{
		Requests:        promCounter{requests},
		RequestFailures: promCounter{requestFailures},
		Retries:         promCounter{retries},
		RateLimitHits:   promCounter{rateLimitHits},
		Pages:           promCounter{pages},
		PairsCollected:  promCounter{pairsCollected},
		PairsFailed:     promCounter{pairsFailed},
	}

	return &Prometheus{
		Metrics:  m,
		registry: registry,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
