package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "ddssrv.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr: ":8000",
		Channels: []ChannelSetup{
			{
				Name:          "ch0",
				URL:           "dds/ch0",
				Sim:           true,
				ChipSelect:    4,
				PLLN:          32,
				PLLCp:         7,
				PLLVCO:        5,
				RefClkMHz:     125,
				SyncDelaySeed: -1,
			},
		}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), kyaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `ddssrv drives direct digital synthesizer boards over an SPI bridge and
exposes an HTTP interface to them.  This enables a server-client architecture,
and the clients can leverage the excellent HTTP libraries for any programming
language.

Usage:
	ddssrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `ddssrv is amenable to configuration via its .yaml file.  For a primer on YAML,
see https://yaml.org/start.html

Each channel entry describes one chip on one bus bridge.  "sim: true"
replaces the bridge with a simulated chip, which is useful for exercising
clients without hardware.

chipSelect is 4 through 7 and picks the chip on the board.  pllN, pllCp and
pllVCO configure the on-chip PLL; the system clock is refClkMHz * pllN / 4
and must not exceed 1 GHz.  syncDelaySeed seeds the sync-delay search at
init time (-1 skips it); ioUpdateDelay is the calibrated update-pulse delay
in timeline ticks, as reported by ddscal.

No two channels can have the same endpoint.

Endpoints may look like any variation between "dds/ch0" or "/dds/ch0/", the
leading slash is added and the trailing one removed by the server if needed.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yaml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yaml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("ddssrv version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	mux, err := BuildMux(c)
	if err != nil {
		log.Fatal(err)
	}
	srv := &http.Server{Addr: c.Addr, Handler: mux}
	go func() {
		log.Println("now listening for requests at", c.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
