package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	app "github.com/R3E-Network/quietmap/internal/app"
	"github.com/R3E-Network/quietmap/internal/app/httpapi"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	application, err := app.New(app.Stores{}, logger.Discard())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	server := httptest.NewServer(httpapi.NewHandler(application, logger.Discard()))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://localhost:4000/"})

	if client.baseURL != "http://localhost:4000" {
		t.Errorf("baseURL = %s, want trailing slash trimmed", client.baseURL)
	}
	if client.maxRetries != 2 {
		t.Errorf("default maxRetries = %d, want 2", client.maxRetries)
	}
	if client.backoff != 200*time.Millisecond {
		t.Errorf("default backoff = %s, want 200ms", client.backoff)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("default timeout = %s, want 30s", client.httpClient.Timeout)
	}
}

func TestClientRoundTrip(t *testing.T) {
	server := newGatewayServer(t)
	client := NewClient(ClientConfig{BaseURL: server.URL})
	ctx := context.Background()

	created, err := client.CreatePlace(ctx, map[string]any{"name": "Quiet Café", "latitude": 1, "longitude": 2})
	if err != nil {
		t.Fatalf("CreatePlace() error = %v", err)
	}
	for _, v := range []float64{30, 50} {
		if _, err := client.AddMeasurement(ctx, created.ID, v); err != nil {
			t.Fatalf("AddMeasurement() error = %v", err)
		}
	}

	places, err := client.GetPlaces(ctx)
	if err != nil {
		t.Fatalf("GetPlaces() error = %v", err)
	}
	if len(places) != 1 || places[0].AverageDecibel == nil || *places[0].AverageDecibel != 40 {
		t.Fatalf("unexpected places: %+v", places)
	}
}

func TestClientReturnsRPCError(t *testing.T) {
	server := newGatewayServer(t)
	client := NewClient(ClientConfig{BaseURL: server.URL})

	_, err := client.CreatePlace(context.Background(), map[string]any{"latitude": 1})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Status != http.StatusBadRequest || rpcErr.Code != "BAD_REQUEST" || len(rpcErr.Issues) != 2 {
		t.Fatalf("unexpected RPCError: %+v", rpcErr)
	}

	_, err = client.AddMeasurement(context.Background(), "123e4567-e89b-12d3-a456-426614174000", 40)
	if !errors.As(err, &rpcErr) || rpcErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestClientRetriesTransientQueries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"data": []any{}}})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 1, RetryBackoff: time.Millisecond})
	places, err := client.GetPlaces(context.Background())
	if err != nil {
		t.Fatalf("GetPlaces() error = %v", err)
	}
	if len(places) != 0 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", atomic.LoadInt32(&calls))
	}
}

func TestClientBackoffStopsOnContextDone(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 3, RetryBackoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.GetPlaces(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetPlaces() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("backoff ignored the context, took %s", elapsed)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("sent %d requests during backoff, want 1", got)
	}
}

func TestClientBackoffDoubles(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 2, RetryBackoff: 20 * time.Millisecond})
	if _, err := client.GetPlaces(context.Background()); err == nil {
		t.Fatal("expected error after retries")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(times) != 3 {
		t.Fatalf("calls = %d, want 3", len(times))
	}
	if gap := times[1].Sub(times[0]); gap < 20*time.Millisecond {
		t.Errorf("first retry after %s, want at least 20ms", gap)
	}
	if gap := times[2].Sub(times[1]); gap < 40*time.Millisecond {
		t.Errorf("second retry after %s, want at least 40ms", gap)
	}
}

func TestClientDoesNotRetryMutations(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 3})
	if _, err := client.AddMeasurement(context.Background(), "id", 1); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("mutation sent %d times, want 1", atomic.LoadInt32(&calls))
	}
}

func TestDecodeResponse_NonEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteString("upstream down")

	err := DecodeResponse(rec.Result(), nil)
	if err == nil {
		t.Fatal("expected error for non-envelope body")
	}
}
