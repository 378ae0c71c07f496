// Package rf exposes control of RF synthesizer channels over HTTP
package rf

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.com/iontrap/golabrf/generichttp"
	"github.com/iontrap/golabrf/server"
)

// Synth is a basic interface for RF synthesizer channels
type Synth interface {
	// Init initializes the channel; blind skips presence and lock checks
	Init(blind bool) error

	// SetOutput writes frequency in Hz, phase in turns, and amplitude in
	// units of full scale, returning the resulting phase in turns
	SetOutput(frequency, phase, amplitude float64) (float64, error)
}

// RawSynth can be driven in machine units
type RawSynth interface {
	// SetOutputMu writes the frequency tuning word, phase offset word and
	// amplitude scale factor, returning the resulting phase offset word
	SetOutputMu(ftw, pow, asf int32) (int32, error)
}

// PhaseModer has a configurable default phase mode
type PhaseModer interface {
	// PhaseModeName returns the current default phase mode
	PhaseModeName() string

	// SetPhaseModeName sets the default phase mode by name
	SetPhaseModeName(name string) error
}

// Attenuator has a digital step attenuator
type Attenuator interface {
	// SetAtt sets the attenuation in dB
	SetAtt(dB float64) error
}

// Switch has an RF output switch
type Switch interface {
	// SetRFSwitch opens or closes the output switch
	SetRFSwitch(on bool) error
}

// SyncTuner can calibrate its input-clock sample delay
type SyncTuner interface {
	// TuneSyncDelay searches for a stable sample delay and window around
	// a seed tap
	TuneSyncDelay(seed int) (int, int, error)
}

// AlignmentTuner can calibrate its update-pulse alignment
type AlignmentTuner interface {
	// TuneIOUpdateDelay searches for a stable update-pulse delay
	TuneIOUpdateDelay() (int64, error)
}

type output struct {
	Frequency float64 `json:"frequency"`

	Phase float64 `json:"phase"`

	Amplitude float64 `json:"amplitude"`
}

type outputMu struct {
	FTW int32 `json:"ftw"`

	POW int32 `json:"pow"`

	ASF int32 `json:"asf"`
}

type syncResult struct {
	Delay int `json:"delay"`

	Window int `json:"window"`
}

// Init returns an HTTP handlerfunc that initializes the channel from
// json {'bool': blind}
func Init(s Synth) http.HandlerFunc {
	return generichttp.SetBool(s.Init)
}

// SetOutput returns an HTTP handlerfunc that writes frequency/phase/
// amplitude and replies with the resulting phase in turns
func SetOutput(s Synth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input output
		err := json.NewDecoder(r.Body).Decode(&input)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		turns, err := s.SetOutput(input.Frequency, input.Phase, input.Amplitude)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: turns}
		hp.EncodeAndRespond(w, r)
	}
}

// SetOutputMu returns an HTTP handlerfunc that writes machine-unit words
// and replies with the resulting phase offset word
func SetOutputMu(s RawSynth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input outputMu
		err := json.NewDecoder(r.Body).Decode(&input)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pow, err := s.SetOutputMu(input.FTW, input.POW, input.ASF)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := server.HumanPayload{T: types.Int, Int: int(pow)}
		hp.EncodeAndRespond(w, r)
	}
}

// GetPhaseMode returns the default phase mode as json {'str': name}
func GetPhaseMode(p PhaseModer) http.HandlerFunc {
	return generichttp.GetString(func() (string, error) {
		return p.PhaseModeName(), nil
	})
}

// SetPhaseMode sets the default phase mode from json {'str': name}
func SetPhaseMode(p PhaseModer) http.HandlerFunc {
	return generichttp.SetString(p.SetPhaseModeName)
}

// SetAtt sets the attenuation from json {'f64': dB}
func SetAtt(a Attenuator) http.HandlerFunc {
	return generichttp.SetFloat(a.SetAtt)
}

// SetRFSwitch sets the output switch from json {'bool': on}
func SetRFSwitch(s Switch) http.HandlerFunc {
	return generichttp.SetBool(s.SetRFSwitch)
}

// TuneSyncDelay runs the sample-delay search from json {'int': seed} and
// replies with {'delay': tap, 'window': size}.  The channel produces no
// useful output while the search runs.
func TuneSyncDelay(t SyncTuner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seed := server.IntT{}
		err := json.NewDecoder(r.Body).Decode(&seed)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		delay, window, err := t.TuneSyncDelay(seed.Int)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(syncResult{Delay: delay, Window: window})
	}
}

// TuneIOUpdateDelay runs the update-pulse alignment scan and replies with
// json {'int': delay}.  The probe is destructive; the channel must be
// re-set afterwards.
func TuneIOUpdateDelay(t AlignmentTuner) http.HandlerFunc {
	return generichttp.GetInt(func() (int, error) {
		delay, err := t.TuneIOUpdateDelay()
		return int(delay), err
	})
}

// HTTPSynth wraps a Synth in an HTTP route table
type HTTPSynth struct {
	// Ctl is the underlying synthesizer channel
	Ctl Synth

	// RouteTable maps method-paths to handlers
	RouteTable generichttp.RouteTable
}

// NewHTTPSynth returns a new HTTP wrapper around an existing synthesizer
// channel, exposing each optional capability the channel implements
func NewHTTPSynth(ctl Synth) HTTPSynth {
	h := HTTPSynth{Ctl: ctl}
	rt := generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodPost, Path: "/init"}:   Init(ctl),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/output"}: SetOutput(ctl),
	}
	if raw, ok := ctl.(RawSynth); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/output-mu"}] = SetOutputMu(raw)
	}
	if pm, ok := ctl.(PhaseModer); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/phase-mode"}] = GetPhaseMode(pm)
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/phase-mode"}] = SetPhaseMode(pm)
	}
	if att, ok := ctl.(Attenuator); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/attenuation"}] = SetAtt(att)
	}
	if sw, ok := ctl.(Switch); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/rf-switch"}] = SetRFSwitch(sw)
	}
	if st, ok := ctl.(SyncTuner); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/tune/sync-delay"}] = TuneSyncDelay(st)
	}
	if at, ok := ctl.(AlignmentTuner); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/tune/io-update-delay"}] = TuneIOUpdateDelay(at)
	}
	h.RouteTable = rt
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPSynth) RT() generichttp.RouteTable {
	return h.RouteTable
}
