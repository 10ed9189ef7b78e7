package httpstatus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthzBeforeBootstrap(t *testing.T) {
	s := NewServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before bootstrap, got %d", rec.Code)
	}
}

func TestHealthzAfterUpdate(t *testing.T) {
	s := NewServer()
	s.Update(Status{Bootstrapped: true, EpochIndex: 7, LastTickAt: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after bootstrap, got %d", rec.Code)
	}
}
