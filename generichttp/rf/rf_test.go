package rf_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"

	"github.com/iontrap/golabrf/dds"
	"github.com/iontrap/golabrf/generichttp/rf"
	"github.com/iontrap/golabrf/rtio"
)

// newServer serves a simulated channel over HTTP.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	sched := rtio.NewSim(time.Nanosecond)
	mock := dds.NewMock(sched)
	board := dds.NewBoard(mock, mock.IOUpdate())
	ch, err := dds.NewChannel(mock, sched, board, dds.Config{
		ChipSelect:    4,
		PLLN:          32,
		PLLCp:         7,
		PLLVCO:        5,
		RefClk:        125e6,
		TickPeriod:    time.Nanosecond,
		SyncDelaySeed: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	rf.NewHTTPSynth(ch).RT().Bind(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHTTPInitAndOutput(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/init", map[string]bool{"bool": false})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d, want 200", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/output", map[string]float64{
		"frequency": 80e6,
		"phase":     0.25,
		"amplitude": 1.0,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("output status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		F64 float64 `json:"f64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.F64 != 0.25 {
		t.Errorf("resulting phase = %g turns, want 0.25", out.F64)
	}
}

func TestHTTPOutputMu(t *testing.T) {
	srv := newServer(t)
	resp := postJSON(t, srv.URL+"/output-mu", map[string]int32{
		"ftw": 1 << 20,
		"pow": 0x1234,
		"asf": 0x3fff,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Int int `json:"int"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Int != 0x1234 {
		t.Errorf("resulting POW = %#x, want 0x1234", out.Int)
	}
}

func TestHTTPPhaseMode(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/phase-mode", map[string]string{"str": "tracking"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status = %d, want 200", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/phase-mode")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Str string `json:"str"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Str != "tracking" {
		t.Errorf("phase mode = %q, want tracking", out.Str)
	}

	resp = postJSON(t, srv.URL+"/phase-mode", map[string]string{"str": "sideways"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("bogus mode status = %d, want 500", resp.StatusCode)
	}
}

func TestHTTPAttenuationValidation(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/attenuation", map[string]float64{"f64": 10})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/attenuation", map[string]float64{"f64": 99})
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("out-of-range attenuation status = %d, want 500", resp.StatusCode)
	}
}

func TestHTTPTuneSyncDelay(t *testing.T) {
	srv := newServer(t)
	resp := postJSON(t, srv.URL+"/tune/sync-delay", map[string]int{"int": 15})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Delay  int `json:"delay"`
		Window int `json:"window"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Delay != 15 {
		t.Errorf("delay = %d, want the seed tap 15", out.Delay)
	}
}

func TestHTTPTuneIOUpdateDelay(t *testing.T) {
	srv := newServer(t)
	resp := postJSON(t, srv.URL+"/tune/io-update-delay", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Int int `json:"int"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Int != 0 {
		t.Errorf("delay = %d, want 0 for an aligned simulated chip", out.Int)
	}
}

func TestHTTPEndpointsListsCapabilities(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/endpoints")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var eps []string
	if err := json.NewDecoder(resp.Body).Decode(&eps); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"POST /init":                 false,
		"POST /output":               false,
		"POST /output-mu":            false,
		"GET /phase-mode":            false,
		"POST /phase-mode":           false,
		"POST /attenuation":          false,
		"POST /rf-switch":            false,
		"POST /tune/sync-delay":      false,
		"POST /tune/io-update-delay": false,
	}
	for _, ep := range eps {
		if _, ok := want[ep]; ok {
			want[ep] = true
		}
	}
	for ep, seen := range want {
		if !seen {
			t.Errorf("endpoint %q not exposed", ep)
		}
	}
}
