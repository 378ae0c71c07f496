package main

import (
	"fmt"
	"log"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iontrap/golabrf/dds"
	"github.com/iontrap/golabrf/generichttp/rf"
	"github.com/iontrap/golabrf/rtio"
	"github.com/iontrap/golabrf/server/middleware/locker"
	"github.com/iontrap/golabrf/server/middleware/throttle"
	"github.com/iontrap/golabrf/spi"
)

// ChannelSetup holds the per-channel configuration from the config file.
type ChannelSetup struct {
	// Name labels the channel in logs and metrics
	Name string `yaml:"name" koanf:"name"`

	// URL is the path the channel's routes are served under, ex. "bus1/ch0"
	URL string `yaml:"endpoint" koanf:"endpoint"`

	// Addr is the network or filesystem address of the bus bridge,
	// e.g. 192.168.100.40:4021, or /dev/ttyUSB2 for RS232
	Addr string `yaml:"addr" koanf:"addr"`

	// Serial selects RS232 (true) or TCP (false)
	Serial bool `yaml:"serial" koanf:"serial"`

	// Sim replaces the bridge with a simulated chip; no hardware needed
	Sim bool `yaml:"sim" koanf:"sim"`

	// ChipSelect addresses the chip on the bus, 4-7
	ChipSelect int `yaml:"chipSelect" koanf:"chipSelect"`

	// PLLN, PLLCp, PLLVCO configure the chip PLL
	PLLN   int `yaml:"pllN" koanf:"pllN"`
	PLLCp  int `yaml:"pllCp" koanf:"pllCp"`
	PLLVCO int `yaml:"pllVCO" koanf:"pllVCO"`

	// RefClkMHz is the board reference clock in MHz
	RefClkMHz float64 `yaml:"refClkMHz" koanf:"refClkMHz"`

	// SyncDelaySeed seeds the sync-delay search during init; -1 disables
	SyncDelaySeed int `yaml:"syncDelaySeed" koanf:"syncDelaySeed"`

	// IOUpdateDelay is the calibrated update-pulse delay in ticks
	IOUpdateDelay int64 `yaml:"ioUpdateDelay" koanf:"ioUpdateDelay"`
}

// Config is the top-level config file structure.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"addr" koanf:"addr"`

	// Channels is the list of DDS channels to serve
	Channels []ChannelSetup `yaml:"channels" koanf:"channels"`
}

func (cs ChannelSetup) ddsConfig() dds.Config {
	return dds.Config{
		ChipSelect:    cs.ChipSelect,
		PLLN:          cs.PLLN,
		PLLCp:         cs.PLLCp,
		PLLVCO:        cs.PLLVCO,
		RefClk:        cs.RefClkMHz * 1e6,
		TickPeriod:    time.Nanosecond,
		SyncDelaySeed: cs.SyncDelaySeed,
		IOUpdateDelay: cs.IOUpdateDelay,
	}
}

// buildChannel assembles the bus, timeline and board for one channel and
// returns the channel.
func buildChannel(cs ChannelSetup) (*dds.Channel, error) {
	if cs.Sim {
		sched := rtio.NewSim(time.Nanosecond)
		mock := dds.NewMock(sched)
		mock.ChipSelect = cs.ChipSelect
		board := dds.NewBoard(mock, mock.IOUpdate())
		return dds.NewChannel(mock, sched, board, cs.ddsConfig())
	}
	br := spi.NewBridge(cs.Addr, cs.Serial)
	if err := br.Open(); err != nil {
		return nil, fmt.Errorf("opening bridge for %s: %w", cs.Name, err)
	}
	bus := spi.NewInstrumentedBus(br, cs.Name, prometheus.DefaultRegisterer)
	board := dds.NewBoard(bus, br)
	return dds.NewChannel(bus, rtio.NewWall(time.Nanosecond), board, cs.ddsConfig())
}

// BuildMux constructs the root router with one subrouter per configured
// channel, each guarded by its own locker, plus /metrics.
func BuildMux(c Config) (chi.Router, error) {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Use(throttle.New(50, 10))
	for _, cs := range c.Channels {
		ch, err := buildChannel(cs)
		if err != nil {
			return nil, err
		}
		httpS := rf.NewHTTPSynth(ch)
		lock := locker.New()
		locker.Inject(httpS, lock)
		r := chi.NewRouter()
		r.Use(lock.Check)
		httpS.RT().Bind(r)
		stem := sanitizeStem(cs.URL)
		root.Mount(stem, r)
		log.Printf("%s available via HTTP at %s", cs.Name, stem)
	}
	root.Handle("/metrics", promhttp.Handler())
	return root, nil
}

// sanitizeStem adds the leading slash and strips the trailing one if the
// config file omits or includes them.
func sanitizeStem(url string) string {
	if url == "" {
		return "/"
	}
	if url[0] != '/' {
		url = "/" + url
	}
	if url[len(url)-1] == '/' {
		url = url[:len(url)-1]
	}
	return url
}
