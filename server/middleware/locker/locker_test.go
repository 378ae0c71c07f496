package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCheckBouncesWhenLocked(t *testing.T) {
	l := New()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := l.Check(inner)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/output", nil))
	if w.Code != http.StatusOK {
		t.Errorf("unlocked status = %d, want 200", w.Code)
	}

	l.Lock()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/output", nil))
	if w.Code != http.StatusLocked {
		t.Errorf("locked status = %d, want 423", w.Code)
	}

	// the lock route itself stays reachable, or nobody could ever unlock
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lock", nil))
	if w.Code != http.StatusLocked {
		// pass-through: the inner handler answered
		if w.Code != http.StatusOK {
			t.Errorf("lock route status = %d, want 200", w.Code)
		}
	} else {
		t.Error("lock route was bounced while locked")
	}
}

func TestHTTPSetToggles(t *testing.T) {
	l := New()
	w := httptest.NewRecorder()
	l.HTTPSet(w, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool": true}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !l.Locked() {
		t.Error("locker not locked after HTTPSet true")
	}
	w = httptest.NewRecorder()
	l.HTTPSet(w, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool": false}`)))
	if l.Locked() {
		t.Error("locker still locked after HTTPSet false")
	}
}
