package spi

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type stubBus struct {
	fail bool
}

func (s stubBus) Configure(flags Flag, length, div, cs int) error {
	if s.fail {
		return errors.New("configure failed")
	}
	return nil
}

func (s stubBus) Write(data uint32) error {
	if s.fail {
		return errors.New("write failed")
	}
	return nil
}

func (s stubBus) Read() (uint32, error) {
	if s.fail {
		return 0, errors.New("read failed")
	}
	return 42, nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, op string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "op" && lp.GetValue() == op {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestInstrumentedBusCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	ib := NewInstrumentedBus(stubBus{}, "ch0", reg)
	if err := ib.Configure(0, 8, 2, 4); err != nil {
		t.Fatal(err)
	}
	if err := ib.Write(0); err != nil {
		t.Fatal(err)
	}
	if err := ib.Write(0); err != nil {
		t.Fatal(err)
	}
	if _, err := ib.Read(); err != nil {
		t.Fatal(err)
	}
	if got := counterValue(t, reg, "spi_transfers_total", "write"); got != 2 {
		t.Errorf("write transfers = %g, want 2", got)
	}
	if got := counterValue(t, reg, "spi_transfer_errors_total", "write"); got != 0 {
		t.Errorf("write errors = %g, want 0", got)
	}
}

func TestInstrumentedBusCountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	ib := NewInstrumentedBus(stubBus{fail: true}, "ch0", reg)
	if err := ib.Write(0); err == nil {
		t.Fatal("stub error swallowed")
	}
	if got := counterValue(t, reg, "spi_transfer_errors_total", "write"); got != 1 {
		t.Errorf("write errors = %g, want 1", got)
	}
}
