package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Inc()
	Dec()
	Set(v float64)
}

type Metrics struct {
	TicksApplied       Counter
	MessagesIgnored    Counter
	Reconnects         Counter
	HistoryLoadsFailed Counter
	FeedsLive          Gauge
	HubClients         Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Inc()        {}
func (noopGauge) Dec()        {}
func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	c := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		TicksApplied:       c,
		MessagesIgnored:    c,
		Reconnects:         c,
		HistoryLoadsFailed: c,
		FeedsLive:          g,
		HubClients:         g,
	}
}
