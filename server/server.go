// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
)

// HumanPayload is a struct containing the basic types and a type field
// indicating which of them is populated.  It exists so handlers can reply
// with a single scalar as JSON without a bespoke struct per type.
type HumanPayload struct {
	// T holds the type of data actually contained
	T types.BasicKind

	// Bool holds a boolean
	Bool bool

	// Int holds an integer
	Int int

	// Float holds a double-precision float
	Float float64

	// String holds a string
	String string
}

// EncodeAndRespond writes the payload to w as JSON keyed by its type, e.g.
// {"f64": 3.14}.
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var (
		obj interface{}
	)
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.String:
		obj = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unknown payload type %v", hp.T), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		fstr := fmt.Sprintf("error encoding payload to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// FloatT is a struct with a single field for json {'f64': value}
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single field for json {'int': value}
type IntT struct {
	Int int `json:"int"`
}

// BoolT is a struct with a single field for json {'bool': value}
type BoolT struct {
	Bool bool `json:"bool"`
}

// StrT is a struct with a single field for json {'str': value}
type StrT struct {
	Str string `json:"str"`
}
