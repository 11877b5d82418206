package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/korjavin/zahlbot/models"
	"github.com/korjavin/zahlbot/resolver"
	"github.com/korjavin/zahlbot/store"
)

const (
	defaultSuggestCount = 10
	defaultBatchCount   = 20
	maxBatchCount       = 100
)

// Core is the resolution pipeline the server fronts.
type Core interface {
	Resolve(ctx context.Context, question string) (models.ResolutionResult, error)
	CurrentAnswer(ctx context.Context) (models.CurrentAnswer, bool, error)
	SuggestedQuestions(n int) ([]string, error)
	GenerateBatch(ctx context.Context, n int) error
}

// Subscriber hands out broadcast channels for the SSE stream.
type Subscriber interface {
	Subscribe() (uuid.UUID, <-chan models.Update)
	Unsubscribe(id uuid.UUID)
}

// Server is the HTTP front-end for the resolver
type Server struct {
	core        Core
	broadcaster Subscriber
	secret      string
	httpSrv     *http.Server
}

// New creates a server listening on addr
func New(addr, adminSecret string, core Core, broadcaster Subscriber) *Server {
	s := &Server{
		core:        core,
		broadcaster: broadcaster,
		secret:      adminSecret,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/current", s.handleCurrent)
	mux.HandleFunc("GET /api/suggest", s.handleSuggest)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/stream", s.handleStream)

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: withCORS(mux),
	}
	return s
}

// Start blocks serving HTTP until Shutdown is called
func (s *Server) Start() error {
	log.Printf("Listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleAsk resolves a question posted as {"question": "..."}
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// The resolution's side effects must outlive a disconnecting caller.
	result, err := s.core.Resolve(context.WithoutCancel(r.Context()), req.Question)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCurrent returns the current answer, seeding one if absent
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	answer, auto, err := s.core.CurrentAnswer(context.WithoutCancel(r.Context()))
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		models.CurrentAnswer
		Auto bool `json:"auto"`
	}{answer, auto})
}

// handleSuggest returns up to count random library questions
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	count := queryCount(r, "count", defaultSuggestCount)

	questions, err := s.core.SuggestedQuestions(count)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"questions": questions})
}

// handleGenerate runs batch generation, guarded by the shared secret
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.secret == "" || r.URL.Query().Get("secret") != s.secret {
		writeError(w, http.StatusForbidden, "invalid secret")
		return
	}

	count := queryCount(r, "count", defaultBatchCount)
	if count > maxBatchCount {
		count = maxBatchCount
	}

	if err := s.core.GenerateBatch(context.WithoutCancel(r.Context()), count); err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStream pushes number updates to the client over SSE
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id, updates := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				log.Printf("Error marshaling update: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeResolveError maps pipeline errors onto HTTP status codes
func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolver.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question must not be empty")
	case errors.Is(err, store.ErrEmptyLibrary):
		writeError(w, http.StatusConflict, "question library is empty, run batch generation first")
	case errors.Is(err, resolver.ErrOracleUnavailable):
		writeError(w, http.StatusBadGateway, "oracle is unavailable, try again later")
	default:
		log.Printf("Unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// queryCount parses a positive integer query parameter with a default
func queryCount(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// withCORS allows browser display clients from any origin
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
