package spi

import "github.com/prometheus/client_golang/prometheus"

// InstrumentedBus wraps a Bus and counts transfers and errors by operation.
// ddssrv wraps every hardware-facing bus with one of these so a dashboard
// can spot a wedged bridge before an experiment does.
type InstrumentedBus struct {
	bus Bus

	transfers *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// NewInstrumentedBus wraps bus and registers its counters with reg.  The
// channel label distinguishes multiple buses in one process.
func NewInstrumentedBus(bus Bus, channel string, reg prometheus.Registerer) *InstrumentedBus {
	ib := &InstrumentedBus{
		bus: bus,
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "spi_transfers_total",
			Help:        "bus transfers issued, by operation",
			ConstLabels: prometheus.Labels{"channel": channel},
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "spi_transfer_errors_total",
			Help:        "bus transfers that returned an error, by operation",
			ConstLabels: prometheus.Labels{"channel": channel},
		}, []string{"op"}),
	}
	reg.MustRegister(ib.transfers, ib.errors)
	return ib
}

func (ib *InstrumentedBus) count(op string, err error) error {
	ib.transfers.WithLabelValues(op).Inc()
	if err != nil {
		ib.errors.WithLabelValues(op).Inc()
	}
	return err
}

// Configure implements Bus.
func (ib *InstrumentedBus) Configure(flags Flag, length, div, cs int) error {
	return ib.count("configure", ib.bus.Configure(flags, length, div, cs))
}

// Write implements Bus.
func (ib *InstrumentedBus) Write(data uint32) error {
	return ib.count("write", ib.bus.Write(data))
}

// Read implements Bus.
func (ib *InstrumentedBus) Read() (uint32, error) {
	data, err := ib.bus.Read()
	return data, ib.count("read", err)
}
