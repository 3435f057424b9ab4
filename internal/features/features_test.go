package features

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProviderFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Success: true, Features: map[string]float64{"rsi_14": 55}})
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, time.Second)
	features, err := p.Fetch(context.Background(), "ES")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if features["rsi_14"] != 55 {
		t.Errorf("rsi_14 = %v, want 55", features["rsi_14"])
	}
}

func TestHTTPProviderFetchFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, time.Second)
	if _, err := p.Fetch(context.Background(), "ES"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestHTTPProviderFetchReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Success: false})
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, time.Second)
	if _, err := p.Fetch(context.Background(), "ES"); err == nil {
		t.Fatal("expected error when upstream reports success=false")
	}
}

func TestHTTPProviderFetchRetriesTransientFailure(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(apiResponse{Success: true, Features: map[string]float64{"rsi_14": 55}})
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, time.Second)
	features, err := p.Fetch(context.Background(), "ES")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if features["rsi_14"] != 55 {
		t.Errorf("rsi_14 = %v, want 55", features["rsi_14"])
	}
}

func TestStubProviderReturnsConfiguredValues(t *testing.T) {
	stub := &StubProvider{Features: map[string]float64{"volume": 1000}}
	features, err := stub.Fetch(context.Background(), "ES")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if features["volume"] != 1000 {
		t.Errorf("volume = %v, want 1000", features["volume"])
	}
}
