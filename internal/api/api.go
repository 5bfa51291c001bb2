// Package api serves the decoder and the decode history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/gorilla/mux"

	"github.com/geekxflood/ndpsdecode/internal/capture"
	"github.com/geekxflood/ndpsdecode/internal/ndps"
	"github.com/geekxflood/ndpsdecode/internal/processor"
	"github.com/geekxflood/ndpsdecode/internal/storage"
)

// Decoder runs one input through the decoders.
type Decoder interface {
	Process(ctx context.Context, in processor.Input) (*processor.Result, error)
}

// RecordStore reads the decode history.
type RecordStore interface {
	QueryRecords(query *storage.RecordQuery) ([]*storage.Record, error)
	GetRecord(id int64) (*storage.Record, error)
	GetStats() (*storage.StorageStats, error)
}

// APIConfig holds configuration for the HTTP API
type APIConfig struct {
	ListenAddress string        `json:"listen_address"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	MaxBodyBytes  int64         `json:"max_body_bytes"`
	DefaultLimit  int           `json:"default_limit"`
}

// DefaultAPIConfig returns a default API configuration
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		ListenAddress: ":8080",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		MaxBodyBytes:  1024 * 1024,
		DefaultLimit:  100,
	}
}

// APIResponse is the envelope of every API reply.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// GrammarInfo names a decodable grammar.
type GrammarInfo struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
}

// recordView exposes the stored tree as JSON rather than a string.
type recordView struct {
	*storage.Record
	Tree json.RawMessage `json:"tree,omitempty"`
}

// Server is the HTTP API server.
type Server struct {
	config  *APIConfig
	logger  logging.Logger
	decoder Decoder
	records RecordStore
	router  *mux.Router
	server  *http.Server
	mu      sync.Mutex
}

// NewServer creates the API server. records may be nil when storage is off.
func NewServer(cfg config.Provider, logger logging.Logger, decoder Decoder, records RecordStore) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder cannot be nil")
	}

	apiConfig := DefaultAPIConfig()

	if addr, err := cfg.GetString("api.listen_address", apiConfig.ListenAddress); err == nil && addr != "" {
		apiConfig.ListenAddress = addr
	}

	if timeout, err := cfg.GetDuration("api.read_timeout", apiConfig.ReadTimeout); err == nil && timeout > 0 {
		apiConfig.ReadTimeout = timeout
	}

	if timeout, err := cfg.GetDuration("api.write_timeout", apiConfig.WriteTimeout); err == nil && timeout > 0 {
		apiConfig.WriteTimeout = timeout
	}

	if size, err := cfg.GetInt("api.max_body_bytes", int(apiConfig.MaxBodyBytes)); err == nil && size > 0 {
		apiConfig.MaxBodyBytes = int64(size)
	}

	if limit, err := cfg.GetInt("api.default_limit", apiConfig.DefaultLimit); err == nil && limit > 0 {
		apiConfig.DefaultLimit = limit
	}

	s := &Server{
		config:  apiConfig,
		logger:  logger.With("component", "api"),
		decoder: decoder,
		records: records,
	}
	s.router = s.setupRoutes()
	return s, nil
}

// GetConfig returns the API configuration
func (s *Server) GetConfig() *APIConfig {
	return s.config
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/decode/{grammar}", s.decodeHandler).Methods("POST")
	api.HandleFunc("/grammars", s.grammarsHandler).Methods("GET")
	api.HandleFunc("/syntaxes", s.syntaxesHandler).Methods("GET")
	api.HandleFunc("/syntaxes/{tag}", s.syntaxHandler).Methods("GET")
	api.HandleFunc("/records", s.listRecordsHandler).Methods("GET")
	api.HandleFunc("/records/stats", s.recordStatsHandler).Methods("GET")
	api.HandleFunc("/records/{id:[0-9]+}", s.getRecordHandler).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("API server already running")
	}

	s.server = &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
	}

	go func(srv *http.Server) {
		s.logger.Info("Starting API server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err.Error())
		}
	}(s.server)

	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info("Stopping API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

// decodeHandler decodes the request body. The body is raw bytes unless
// ?encoding=hex is given or the content type is text/plain.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	grammar := mux.Vars(r)["grammar"]
	if grammar != processor.GrammarAgentX {
		if _, err := ndps.ParseGrammar(grammar); err != nil {
			sendErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendErrorResponse(w, fmt.Sprintf("invalid offset %q", v), http.StatusBadRequest)
			return
		}
		offset = n
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendErrorResponse(w, fmt.Sprintf("request body exceeds %d bytes", s.config.MaxBodyBytes), http.StatusRequestEntityTooLarge)
			return
		}
		sendErrorResponse(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if isHexBody(r) {
		body, err = capture.ParseHex(body)
		if err != nil {
			sendErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "api:" + r.RemoteAddr
	}

	res, err := s.decoder.Process(r.Context(), processor.Input{
		Source:  source,
		Grammar: grammar,
		Data:    body,
		Offset:  offset,
	})
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	sendDataResponse(w, res)
}

func isHexBody(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("encoding")) {
	case "hex":
		return true
	case "raw":
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain")
}

func (s *Server) grammarsHandler(w http.ResponseWriter, r *http.Request) {
	grammars := make([]GrammarInfo, 0, len(ndps.Grammars())+1)
	for _, g := range ndps.Grammars() {
		grammars = append(grammars, GrammarInfo{Name: string(g), Protocol: "ndps"})
	}
	grammars = append(grammars, GrammarInfo{Name: processor.GrammarAgentX, Protocol: "agentx"})
	sendDataResponse(w, grammars)
}

func (s *Server) syntaxesHandler(w http.ResponseWriter, r *http.Request) {
	sendDataResponse(w, ndps.Syntaxes())
}

// syntaxHandler looks a syntax up by decimal or 0x-prefixed tag.
func (s *Server) syntaxHandler(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["tag"]
	tag, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		sendErrorResponse(w, fmt.Sprintf("invalid syntax tag %q", raw), http.StatusBadRequest)
		return
	}

	syntax, ok := ndps.LookupSyntax(uint32(tag))
	if !ok {
		sendErrorResponse(w, fmt.Sprintf("syntax 0x%02x is not registered", tag), http.StatusNotFound)
		return
	}
	sendDataResponse(w, syntax)
}

func (s *Server) listRecordsHandler(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		sendErrorResponse(w, "decode history is disabled", http.StatusServiceUnavailable)
		return
	}

	query, err := s.parseRecordQuery(r)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.records.QueryRecords(query)
	if err != nil {
		s.logger.Error("Failed to query records", "error", err.Error())
		sendErrorResponse(w, "failed to query records", http.StatusInternalServerError)
		return
	}

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, newRecordView(rec))
	}
	sendDataResponse(w, views)
}

func (s *Server) parseRecordQuery(r *http.Request) (*storage.RecordQuery, error) {
	q := r.URL.Query()
	query := &storage.RecordQuery{
		Source:    q.Get("source"),
		Grammar:   q.Get("grammar"),
		Outcome:   q.Get("outcome"),
		InputHash: q.Get("input_hash"),
		Limit:     s.config.DefaultLimit,
		OrderDesc: q.Get("order") == "desc",
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &query.Limit}, {"offset", &query.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", p.name, v)
		}
		*p.dst = n
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &query.StartTime}, {"until", &query.EndTime}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: want RFC 3339", p.name, v)
		}
		*p.dst = &t
	}

	return query, nil
}

func (s *Server) getRecordHandler(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		sendErrorResponse(w, "decode history is disabled", http.StatusServiceUnavailable)
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		sendErrorResponse(w, "invalid record id", http.StatusBadRequest)
		return
	}

	rec, err := s.records.GetRecord(id)
	if errors.Is(err, storage.ErrNotFound) {
		sendErrorResponse(w, fmt.Sprintf("record %d not found", id), http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to get record", "id", id, "error", err.Error())
		sendErrorResponse(w, "failed to get record", http.StatusInternalServerError)
		return
	}

	sendDataResponse(w, newRecordView(rec))
}

func (s *Server) recordStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		sendErrorResponse(w, "decode history is disabled", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.records.GetStats()
	if err != nil {
		s.logger.Error("Failed to get record stats", "error", err.Error())
		sendErrorResponse(w, "failed to get record stats", http.StatusInternalServerError)
		return
	}
	sendDataResponse(w, stats)
}

func newRecordView(rec *storage.Record) recordView {
	view := recordView{Record: rec}
	if rec.Tree != "" && json.Valid([]byte(rec.Tree)) {
		view.Tree = json.RawMessage(rec.Tree)
	}
	return view
}

func sendDataResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: "Success",
		Data:    data,
	})
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Message: message,
	})
}
