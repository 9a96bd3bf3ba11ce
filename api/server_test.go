package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callistaenterprise/blog-test-aync-processes/models"
	"github.com/callistaenterprise/blog-test-aync-processes/store"
	"github.com/callistaenterprise/blog-test-aync-processes/tracing"
)

type publishCall struct {
	traceID string
	txID    uuid.UUID
	seq     int
}

type mockPublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (m *mockPublisher) PublishAsync(ctx context.Context, txID uuid.UUID, seq int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, publishCall{traceID: tracing.TraceID(ctx), txID: txID, seq: seq})
}

type mockRepo struct {
	mu      sync.Mutex
	records map[string]models.TransactionRecord
	err     error
}

func newMockRepo() *mockRepo { return &mockRepo{records: map[string]models.TransactionRecord{}} }

func (m *mockRepo) InsertTransaction(ctx context.Context, rec models.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records[rec.TransactionID] = rec
	return nil
}

func (m *mockRepo) GetTransaction(ctx context.Context, id string) (models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.TransactionRecord{}, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return rec, store.ErrNotFound
	}
	return rec, nil
}

func TestMain(m *testing.M) {
	tp := tracing.Init("api-test")
	defer func() { _ = tp.Shutdown(context.Background()) }()
	m.Run()
}

func TestDoSomethingPublishesFiveEvents(t *testing.T) {
	pub := &mockPublisher{}
	repo := newMockRepo()
	srv := NewServer(pub, repo)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dosomething", nil))

	res := w.Result()
	require.Equal(t, http.StatusOK, res.StatusCode)
	traceID := res.Header.Get(tracing.TraceIDHeader)
	require.NotEmpty(t, traceID)

	var tx models.Transaction
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tx))
	require.NotEqual(t, uuid.Nil, tx.TransactionID)

	require.Len(t, pub.calls, 5)
	for i, c := range pub.calls {
		assert.Equal(t, i+1, c.seq)
		assert.Equal(t, tx.TransactionID, c.txID)
		assert.Equal(t, traceID, c.traceID, "events carry the response trace id")
	}

	rec, ok := repo.records[tx.TransactionID.String()]
	require.True(t, ok)
	assert.Equal(t, traceID, rec.TraceID)
	assert.Equal(t, 5, rec.Events)
}

func TestDoSomethingWithoutJournal(t *testing.T) {
	pub := &mockPublisher{}
	srv := NewServer(pub, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dosomething", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Len(t, pub.calls, 5)
}

func TestDoSomethingJournalFailureStillPublishes(t *testing.T) {
	pub := &mockPublisher{}
	repo := newMockRepo()
	repo.err = errors.New("mongo down")
	srv := NewServer(pub, repo)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dosomething", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Len(t, pub.calls, 5)
}

func TestDoSomethingRejectsGet(t *testing.T) {
	pub := &mockPublisher{}
	srv := NewServer(pub, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dosomething", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Result().StatusCode)
	assert.Empty(t, pub.calls)
}

func TestConcurrentRequestsGetDistinctTraces(t *testing.T) {
	pub := &mockPublisher{}
	srv := NewServer(pub, nil)

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dosomething", nil))
			ids[i] = w.Result().Header.Get(tracing.TraceIDHeader)
		}(i)
	}
	wg.Wait()

	unique := map[string]bool{}
	for _, id := range ids {
		unique[id] = true
	}
	assert.Len(t, unique, 20)
	assert.Len(t, pub.calls, 100)
}

func TestActuatorHealth(t *testing.T) {
	srv := NewServer(&mockPublisher{}, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
	assert.NotEmpty(t, w.Result().Header.Get(tracing.TraceIDHeader), "every response carries a trace id")
}

func TestReadiness(t *testing.T) {
	ok := ReadyCheck{Name: "kafka", Check: func(context.Context) error { return nil }}
	down := ReadyCheck{Name: "mongo", Check: func(context.Context) error { return errors.New("down") }}

	w := httptest.NewRecorder()
	NewServer(&mockPublisher{}, nil, ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	w = httptest.NewRecorder()
	NewServer(&mockPublisher{}, nil, ok, down).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "mongo not ready")
}

func TestTransactionLookup(t *testing.T) {
	repo := newMockRepo()
	id := uuid.NewString()
	repo.records[id] = models.TransactionRecord{TransactionID: id, TraceID: "abc", Events: 5}
	srv := NewServer(&mockPublisher{}, repo)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/"+id, nil))
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	var rec models.TransactionRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "abc", rec.TraceID)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestTransactionLookupWithoutJournal(t *testing.T) {
	w := httptest.NewRecorder()
	NewServer(&mockPublisher{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode)
}

func TestEventFeed(t *testing.T) {
	srv := NewServer(&mockPublisher{}, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Hub().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev := models.NewEvent("trace", uuid.New(), 3, 0)
	srv.Hub().Broadcast(ev)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, ev, got)

	conn.Close()
	require.Eventually(t, func() bool { return srv.Hub().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsRoute(t *testing.T) {
	srv := NewServer(&mockPublisher{}, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "eventsource_")
}
