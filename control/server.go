// Package control is the remote-control API of a running harness: it reports the mounted
// simulator endpoints, serves captured transactions, streams them live, and starts client-side
// conformance runs.
package control

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rfd-conformance/rfd-test-harness/feed"
	"github.com/rfd-conformance/rfd-test-harness/metrics"
	"github.com/rfd-conformance/rfd-test-harness/simulator"
	"github.com/rfd-conformance/rfd-test-harness/store"
)

// Config lists the components the API exposes. Nil components leave their routes out.
type Config struct {
	Application string
	Profile     string
	Registry    *simulator.Registry
	Store       store.Store
	Feed        *feed.Feed
	Metrics     *metrics.Collector
	Runner      *Runner
	// FilesDir is served under /files/ when set.
	FilesDir string
	Logger   *slog.Logger
}

type Status struct {
	Application string                   `json:"application"`
	Profile     string                   `json:"profile"`
	Endpoints   []simulator.EndpointInfo `json:"endpoints"`
	Tests       []string                 `json:"tests"`
}

type server struct {
	config Config
	logger *slog.Logger
}

func NewServer(config Config) http.Handler {
	s := &server{config: config, logger: config.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", s.getStatus).Methods("GET")
	if config.Store != nil {
		if config.Feed != nil {
			router.Handle("/transactions/stream", config.Feed).Methods("GET")
		}
		router.HandleFunc("/transactions", s.listTransactions).Methods("GET")
		router.HandleFunc("/transactions", s.resetTransactions).Methods("DELETE")
		router.HandleFunc("/transactions/{id}", s.getTransaction).Methods("GET")
	}
	if config.Runner != nil {
		router.HandleFunc("/runs", s.startRun).Methods("POST")
		router.HandleFunc("/runs", s.listRuns).Methods("GET")
		router.HandleFunc("/runs/{id}", s.getRun).Methods("GET")
	}
	if config.Metrics != nil {
		router.Handle("/metrics", config.Metrics.Handler()).Methods("GET")
	}
	if config.FilesDir != "" {
		router.PathPrefix("/files/").Handler(
			http.StripPrefix("/files/", http.FileServer(http.Dir(config.FilesDir)))).Methods("GET")
	}
	return router
}

func (s *server) getStatus(w http.ResponseWriter, _ *http.Request) {
	status := Status{
		Application: s.config.Application,
		Profile:     s.config.Profile,
		Endpoints:   []simulator.EndpointInfo{},
		Tests:       simulator.TestNames(),
	}
	if s.config.Registry != nil {
		status.Endpoints = s.config.Registry.Endpoints()
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *server) listTransactions(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := store.Query{
		Endpoint:    params.Get("endpoint"),
		Transaction: params.Get("transaction"),
	}
	if limit := params.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}
	records, err := s.config.Store.List(r.Context(), q)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, found, err := s.config.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *server) resetTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Store.Reset(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("Transaction store was reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) startRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	run, err := s.config.Runner.Start(req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrRunnerClosed) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err)
		return
	}
	w.Header().Set("Location", "/runs/"+run.ID)
	s.writeJSON(w, http.StatusCreated, run)
}

func (s *server) listRuns(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.config.Runner.List())
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.config.Runner.Get(mux.Vars(r)["id"])
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Control request failed", "error", err)
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
