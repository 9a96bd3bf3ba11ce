package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
	"github.com/callistaenterprise/blog-test-aync-processes/metrics"
	"github.com/callistaenterprise/blog-test-aync-processes/models"
	"github.com/callistaenterprise/blog-test-aync-processes/store"
	"github.com/callistaenterprise/blog-test-aync-processes/tracing"
)

// Publisher abstracts the asynchronous Kafka publishing.
type Publisher interface {
	PublishAsync(ctx context.Context, txID uuid.UUID, seq int)
}

// Repository abstracts the transaction journal.
type Repository interface {
	InsertTransaction(ctx context.Context, rec models.TransactionRecord) error
	GetTransaction(ctx context.Context, id string) (models.TransactionRecord, error)
}

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	mux       *http.ServeMux
	handler   http.Handler
	hub       *Hub
	publisher Publisher
	repo      Repository
	checks    []ReadyCheck
}

// NewServer wires the routes. repo may be nil, in which case transactions
// are not journaled.
func NewServer(p Publisher, r Repository, checks ...ReadyCheck) *Server {
	s := &Server{mux: http.NewServeMux(), hub: NewHub(), publisher: p, repo: r, checks: checks}
	s.routes()
	s.handler = tracing.Middleware(s.mux, "eventsource")
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/dosomething", s.handleDoSomething)
	s.mux.HandleFunc("/actuator/health", s.handleActuatorHealth)
	s.mux.HandleFunc("/healthz", handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.Handle("/metrics", metrics.Handler)
	s.mux.HandleFunc("/transactions/", s.handleTransaction)
	s.mux.HandleFunc("/events/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

// Hub returns the websocket hub so publishers can feed it.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) handleDoSomething(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.IncRequest("/dosomething", strconv.Itoa(http.StatusMethodNotAllowed))
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	txID := uuid.New()

	if s.repo != nil {
		rec := models.TransactionRecord{
			TransactionID: txID.String(),
			TraceID:       tracing.TraceID(ctx),
			Events:        models.EventsPerTransaction,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.repo.InsertTransaction(ctx, rec); err != nil {
			logger.Error("journal transaction failed", err, logger.FieldKV("transaction_id", txID.String()))
		}
	}

	for seq := 1; seq <= models.EventsPerTransaction; seq++ {
		s.publisher.PublishAsync(ctx, txID, seq)
	}

	metrics.IncRequest("/dosomething", strconv.Itoa(http.StatusOK))
	writeJSON(w, http.StatusOK, models.Transaction{TransactionID: txID})
}

// handleActuatorHealth answers the health probe the integration suite polls.
func (s *Server) handleActuatorHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			logger.Error("readiness check failed", err, logger.FieldKV("check", c.Name))
			http.Error(w, c.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.repo == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/transactions/")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}
	rec, err := s.repo.GetTransaction(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("fetch transaction failed", err, logger.FieldKV("transaction_id", id))
		http.Error(w, "fetch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// handleWS streams published events to the client until it disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", err)
		return
	}
	s.hub.Add(conn)
	go func() {
		defer s.hub.Remove(conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response failed", err)
	}
}
