package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := New(Config{
		Timeout: 10 * time.Millisecond,
	})

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	_, err := client.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_NilContext(t *testing.T) {
	client := New(Config{})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := client.Do(nil, req); err == nil {
		t.Fatal("expected nil context error")
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := New(Config{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	if _, err := client.Do(ctx, req); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestClient_CustomTransport(t *testing.T) {
	var seen bool
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = true
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       http.NoBody,
			Request:    req,
		}, nil
	})

	client := New(Config{Transport: rt})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if !seen {
		t.Error("custom transport was not used")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
