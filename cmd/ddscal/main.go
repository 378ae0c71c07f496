// ddscal calibrates a DDS channel: it initializes the chip, searches for the
// sync input delay, and measures the update-pulse alignment, then prints the
// values to paste into the ddssrv config file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/theckman/yacspin"

	"github.com/iontrap/golabrf/dds"
	"github.com/iontrap/golabrf/rtio"
	"github.com/iontrap/golabrf/spi"
)

func spinner(msg string) (*yacspin.Spinner, error) {
	cfg := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " ",
		Message:           msg,
		StopCharacter:     "✓",
		StopFailCharacter: "✗",
		StopColors:        []string{"fgGreen"},
		StopFailColors:    []string{"fgRed"},
	}
	return yacspin.New(cfg)
}

func step(msg string, f func() error) {
	spin, err := spinner(msg)
	if err != nil {
		log.Fatal(err)
	}
	spin.Start()
	if err := f(); err != nil {
		spin.StopFailMessage(fmt.Sprintf("%s: %v", msg, err))
		spin.StopFail()
		os.Exit(1)
	}
	spin.Stop()
}

func main() {
	var (
		addr      = flag.String("addr", "", "bridge address, host:port or serial device")
		serial    = flag.Bool("serial", false, "addr is a serial device")
		sim       = flag.Bool("sim", false, "use a simulated chip instead of a bridge")
		cs        = flag.Int("cs", 4, "chip select, 4-7")
		pllN      = flag.Int("pll-n", 32, "PLL feedback divider")
		pllCp     = flag.Int("pll-cp", 7, "PLL charge pump setting")
		pllVCO    = flag.Int("pll-vco", 5, "PLL VCO band")
		refClkMHz = flag.Float64("refclk-mhz", 125, "reference clock, MHz")
		seed      = flag.Int("seed", 15, "sync delay search seed tap")
		blind     = flag.Bool("blind", false, "initialize without readback")
	)
	flag.Parse()
	if *addr == "" && !*sim {
		fmt.Fprintln(os.Stderr, "ddscal: -addr or -sim is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := dds.Config{
		ChipSelect:    *cs,
		PLLN:          *pllN,
		PLLCp:         *pllCp,
		PLLVCO:        *pllVCO,
		RefClk:        *refClkMHz * 1e6,
		TickPeriod:    time.Nanosecond,
		SyncDelaySeed: -1,
	}

	var (
		ch  *dds.Channel
		err error
	)
	if *sim {
		sched := rtio.NewSim(time.Nanosecond)
		mock := dds.NewMock(sched)
		mock.ChipSelect = *cs
		board := dds.NewBoard(mock, mock.IOUpdate())
		ch, err = dds.NewChannel(mock, sched, board, cfg)
	} else {
		br := spi.NewBridge(*addr, *serial)
		if oerr := br.Open(); oerr != nil {
			log.Fatalf("opening bridge: %v", oerr)
		}
		defer br.Close()
		board := dds.NewBoard(br, br)
		ch, err = dds.NewChannel(br, rtio.NewWall(time.Nanosecond), board, cfg)
	}
	if err != nil {
		log.Fatal(err)
	}

	step("initializing chip", func() error {
		return ch.Init(*blind)
	})

	var delay, window int
	step("searching sync input delay", func() error {
		var serr error
		delay, window, serr = ch.TuneSyncDelay(*seed)
		return serr
	})

	var ioDelay int64
	step("measuring update pulse alignment", func() error {
		var aerr error
		ioDelay, aerr = ch.TuneIOUpdateDelay()
		return aerr
	})

	fmt.Println()
	fmt.Println("calibration complete; ddssrv channel config values:")
	fmt.Printf("  syncDelaySeed: %d   # validation window %d\n", delay, window)
	fmt.Printf("  ioUpdateDelay: %d\n", ioDelay)
}
