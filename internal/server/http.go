package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/btcsuite/btclog"
	"github.com/valyala/fastjson"

	"github.com/rpmchale/dash-table/internal/engine"
	"github.com/rpmchale/dash-table/internal/pkg/filterql"
)

// DefaultSearchLimit caps /api/search responses when no limit is given.
const DefaultSearchLimit = 100

// maxBodySize bounds POST /api/rows payloads.
const maxBodySize = 32 << 20

// FilterServer exposes the filter language and a Store over HTTP.
type FilterServer struct {
	store  *engine.Store
	log    btclog.Logger
	srv    *http.Server
	parser fastjson.ParserPool

	requests int64 // Monotonic counter for total requests
}

// NewFilterServer returns a server answering queries from store.
func NewFilterServer(store *engine.Store, log btclog.Logger) *FilterServer {
	if log == nil {
		log = btclog.Disabled
	}
	s := &FilterServer{
		store: store,
		log:   log,
	}
	s.srv = &http.Server{Handler: s.Handler()}
	return s
}

// Handler returns the API routes.
func (s *FilterServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/parse", s.handleParse)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/rows", s.handleRows)
	mux.HandleFunc("/api/histogram", s.handleHistogram)
	mux.HandleFunc("/api/stats", s.handleStats)
	return mux
}

// Start listens on addr and serves until Shutdown.
func (s *FilterServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *FilterServer) Serve(ln net.Listener) error {
	s.log.Infof("Listening on %s", ln.Addr())
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *FilterServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Requests returns the number of API requests served.
func (s *FilterServer) Requests() int64 {
	return atomic.LoadInt64(&s.requests)
}

type tokenResponse struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Text        string `json:"text"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Transformed bool   `json:"transformed,omitempty"`
}

type parseResponse struct {
	Query       string          `json:"query"`
	Canonical   string          `json:"canonical"`
	Fingerprint string          `json:"fingerprint"`
	Fields      []string        `json:"fields"`
	Tokens      []tokenResponse `json:"tokens"`
	Complete    bool            `json:"complete"`
}

type errorResponse struct {
	Error string `json:"error"`
	Pos   *int   `json:"pos,omitempty"`
}

type searchResponse struct {
	Query       string             `json:"query"`
	Canonical   string             `json:"canonical"`
	Fingerprint string             `json:"fingerprint"`
	Rows        []json.RawMessage  `json:"rows"`
	Stats       engine.SearchStats `json:"stats"`
}

// handleParse processes GET /api/parse requests.
func (s *FilterServer) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.requests, 1)

	query := r.URL.Query().Get("q")
	tokens, err := filterql.Tokenize(s.store.Compiler().Lexicon(), query)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	root, err := filterql.Parse(tokens)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	canonical := root.String()
	resp := parseResponse{
		Query:       query,
		Canonical:   canonical,
		Fingerprint: engine.Fingerprint(canonical),
		Fields:      filterql.Fields(root),
		Tokens:      make([]tokenResponse, 0, len(tokens)),
		Complete:    filterql.Complete(tokens),
	}
	if resp.Fields == nil {
		resp.Fields = []string{}
	}
	for _, t := range tokens {
		resp.Tokens = append(resp.Tokens, tokenResponse{
			Type:        t.Lexeme.Type.String(),
			Name:        t.Lexeme.Name(),
			Text:        t.Text,
			Start:       t.Start,
			End:         t.End,
			Transformed: t.Lexeme.Transformed,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSearch processes GET /api/search requests.
func (s *FilterServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.requests, 1)

	// Parse limit parameter (default 100)
	limit := DefaultSearchLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid limit %q", limitStr)})
			return
		}
		limit = parsed
	}

	query := r.URL.Query().Get("q")
	f, rows, stats, err := s.store.Search(query, limit)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	resp := searchResponse{
		Query:       query,
		Canonical:   f.Canonical,
		Fingerprint: f.Fingerprint,
		Rows:        make([]json.RawMessage, len(rows)),
		Stats:       stats,
	}
	for i, row := range rows {
		resp.Rows[i] = json.RawMessage(row)
	}
	s.log.Debugf("Search %q: %d of %d rows in %v", f.Canonical, stats.Matched, stats.Scanned, stats.Elapsed)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRows processes POST requests carrying a JSON object or an array of
// objects.
func (s *FilterServer) handleRows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.requests, 1)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.log.Errorf("Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		s.log.Warnf("JSON parse error: %v", err)
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	// Handle batch (Array) or single (Object)
	var items []*fastjson.Value
	if v.Type() == fastjson.TypeArray {
		items, _ = v.Array()
	} else {
		items = []*fastjson.Value{v}
	}
	for i, item := range items {
		if item.Type() != fastjson.TypeObject {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("row %d: %v", i, engine.ErrNotObject)})
			return
		}
	}

	rows := make([][]byte, len(items))
	for i, item := range items {
		rows[i] = item.MarshalTo(nil)
	}
	if err := s.store.Ingest(rows); err != nil {
		s.log.Errorf("Ingest failed: %v", err)
		http.Error(w, "Ingest failed", http.StatusInternalServerError)
		return
	}

	// Batch Sync WAL to disk once per request
	s.store.SyncWAL()

	s.writeJSON(w, http.StatusOK, map[string]int{"appended": len(rows)})
}

// handleStats reports table statistics.
func (s *FilterServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.requests, 1)

	s.writeJSON(w, http.StatusOK, s.store.Stats())
}

// handleHistogram counts the rows matching q by the value of field.
func (s *FilterServer) handleHistogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.requests, 1)

	field := r.URL.Query().Get("field")
	if field == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing field parameter"})
		return
	}
	points, err := s.store.Histogram(r.URL.Query().Get("q"), field)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

// writeQueryError answers 400 with the position of a lex or parse failure.
func (s *FilterServer) writeQueryError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var (
		lexErr   *filterql.LexError
		parseErr *filterql.ParseError
	)
	switch {
	case errors.As(err, &lexErr):
		resp.Error = lexErr.Reason
		resp.Pos = &lexErr.Pos
	case errors.As(err, &parseErr):
		resp.Error = parseErr.Reason
		resp.Pos = &parseErr.Pos
	}
	s.writeJSON(w, http.StatusBadRequest, resp)
}

func (s *FilterServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("JSON encode error: %v", err)
	}
}
