package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitizeStem(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"dds/ch0", "/dds/ch0"},
		{"/dds/ch0", "/dds/ch0"},
		{"dds/ch0/", "/dds/ch0"},
		{"/dds/ch0/", "/dds/ch0"},
		{"", "/"},
	}
	for _, tc := range cases {
		if got := sanitizeStem(tc.in); got != tc.out {
			t.Errorf("sanitizeStem(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func simConfig() Config {
	return Config{
		Addr: ":0",
		Channels: []ChannelSetup{{
			Name:          "ch0",
			URL:           "dds/ch0",
			Sim:           true,
			ChipSelect:    4,
			PLLN:          32,
			PLLCp:         7,
			PLLVCO:        5,
			RefClkMHz:     125,
			SyncDelaySeed: -1,
		}},
	}
}

func TestBuildMuxServesSimChannel(t *testing.T) {
	mux, err := BuildMux(simConfig())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/dds/ch0/init", "application/json", strings.NewReader(`{"bool": false}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("init status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestBuildMuxLockBouncesRequests(t *testing.T) {
	mux, err := BuildMux(simConfig())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/dds/ch0/lock", "application/json", strings.NewReader(`{"bool": true}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lock status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/dds/ch0/output", "application/json",
		strings.NewReader(`{"frequency": 8e7, "phase": 0, "amplitude": 1}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusLocked {
		t.Errorf("locked output status = %d, want 423", resp.StatusCode)
	}

	// the lock route stays reachable; unlock and retry
	resp, err = http.Post(srv.URL+"/dds/ch0/lock", "application/json", strings.NewReader(`{"bool": false}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlock status = %d, want 200", resp.StatusCode)
	}
	resp, err = http.Post(srv.URL+"/dds/ch0/output", "application/json",
		strings.NewReader(`{"frequency": 8e7, "phase": 0, "amplitude": 1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unlocked output status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		F64 float64 `json:"f64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.F64 != 0 {
		t.Errorf("phase = %g, want 0", out.F64)
	}
}
