package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	Requests        Counter
	RequestFailures Counter
	Retries         Counter
	RateLimitHits   Counter
	Pages           Counter
	PairsCollected  Counter
	PairsFailed     Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		Requests:        n,
		RequestFailures: n,
		Retries:         n,
		RateLimitHits:   n,
		Pages:           n,
		PairsCollected:  n,
		PairsFailed:     n,
	}
}
