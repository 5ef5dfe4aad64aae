package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"lazytree/internal/archive"
	"lazytree/internal/explorer"
	"lazytree/internal/logging"
	"lazytree/internal/metrics"
	"lazytree/internal/model"
	"lazytree/internal/tree"
)

//go:embed static/*
var staticFS embed.FS

var errBadRequest = errors.New("bad request")

// Options configures the web server.
type Options struct {
	Addr        string
	CORSOrigins []string
	Logger      *zap.Logger
}

// Server exposes an Explorer over HTTP.
type Server struct {
	exp  *explorer.Explorer
	log  *zap.Logger
	opts Options
}

func NewServer(exp *explorer.Explorer, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8080"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{exp: exp, log: opts.Logger, opts: opts}
}

// Handler returns the complete handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Serve static files
	subFS, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(subFS)))
	mux.Handle("GET /metrics", metrics.Handler())

	// API Endpoints
	mux.HandleFunc("GET /api/tree", s.handleTree)
	mux.HandleFunc("GET /api/rows", s.handleRows)
	mux.HandleFunc("POST /api/expand", s.handleExpand)
	mux.HandleFunc("POST /api/collapse", s.handleCollapse)
	mux.HandleFunc("POST /api/extract", s.handleExtract)
	mux.HandleFunc("POST /api/add", s.handleAdd)
	mux.HandleFunc("POST /api/remove", s.handleRemove)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/filter", s.handleGetFilter)
	mux.HandleFunc("POST /api/filter", s.handleSetFilter)
	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("GET /api/help", handleHelp)

	var handler http.Handler = mux
	if len(s.opts.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
		}).Handler(handler)
	}
	handler = logging.Middleware(metrics.Middleware(handler))

	// Request logs and handler logs go to the server's logger
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r.WithContext(logging.NewContext(r.Context(), s.log)))
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type treeResponse struct {
	Version    string              `json:"version"`
	Busy       bool                `json:"busy"`
	Extracting bool                `json:"extracting"`
	Filter     tree.FilterSettings `json:"filter"`
	Tree       tree.Snapshot       `json:"tree"`
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, treeResponse{
		Version:    model.Version,
		Busy:       s.exp.Busy(),
		Extracting: s.exp.Extracting(),
		Filter:     s.exp.Filter(),
		Tree:       s.exp.Snapshot(),
	})
}

type rowResponse struct {
	ID        uint64 `json:"id,string"`
	Depth     int    `json:"depth"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	IsDir     bool   `json:"isDir"`
	Expanded  bool   `json:"expanded"`
	Lazy      bool   `json:"lazy"`
	Archive   bool   `json:"archive"`
	SystemDir bool   `json:"systemDir"`
	HasKids   bool   `json:"hasKids"`
	Size      int64  `json:"size"`
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	rows := s.exp.Rows()
	out := make([]rowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowResponse{
			ID:        row.ID,
			Depth:     row.Depth,
			Name:      row.Name,
			Path:      row.Path,
			IsDir:     row.IsDir,
			Expanded:  row.Expanded,
			Lazy:      row.Lazy,
			Archive:   row.Archive,
			SystemDir: row.SystemDir,
			HasKids:   row.HasKids,
			Size:      row.Size,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// node resolves the "id" or "path" query parameter.
func (s *Server) node(r *http.Request) (*tree.Node, error) {
	if id := r.URL.Query().Get("id"); id != "" {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", errBadRequest, id)
		}
		return s.exp.FindID(n)
	}
	if path := r.URL.Query().Get("path"); path != "" {
		return s.exp.Find(path)
	}
	return nil, fmt.Errorf("%w: id or path is required", errBadRequest)
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	n, err := s.node(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.exp.Expand(r.Context(), n); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "expanded"})
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	n, err := s.node(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.exp.Collapse(n)
	writeJSON(w, http.StatusOK, map[string]string{"status": "collapsed"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	n, err := s.node(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dest, err := s.exp.ExtractArchive(r.Context(), n)
	if err != nil {
		logging.WithContext(r.Context()).Warn("extraction failed", logging.Path(n.Path()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dest": dest})
}

type addRequest struct {
	Paths  []string `json:"paths"`
	Expand bool     `json:"expand"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		http.Error(w, "paths is required", http.StatusBadRequest)
		return
	}
	if err := s.exp.AddPaths(r.Context(), req.Paths, req.Expand); err != nil {
		writeError(w, err)
		return
	}
	logging.WithContext(r.Context()).Info("paths added", zap.Strings("paths", req.Paths))
	writeJSON(w, http.StatusOK, map[string]int{"added": len(req.Paths)})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	n, err := s.node(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.exp.Remove(n); err != nil {
		logging.WithContext(r.Context()).Info("remove refused", logging.Path(n.Path()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.exp.Clear(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	n, err := s.node(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.exp.Refresh(r.Context(), n); err != nil {
		logging.WithContext(r.Context()).Warn("refresh failed", logging.Path(n.Path()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.exp.Filter())
}

type filterRequest struct {
	Custom     *bool            `json:"custom"`
	CustomList *string          `json:"customList"`
	Categories *tree.Categories `json:"categories"`
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CustomList != nil {
		s.exp.SetCustomExtensions(*req.CustomList)
	}
	if req.Categories != nil {
		s.exp.SetDefaultCategories(*req.Categories)
	}
	if req.Custom != nil {
		s.exp.SetFilterMode(*req.Custom)
	}
	f := s.exp.Filter()
	logging.WithContext(r.Context()).Debug("filter changed",
		zap.Bool("custom", f.Custom),
		zap.String("custom_list", f.CustomList),
	)
	writeJSON(w, http.StatusOK, f)
}

type progressResponse struct {
	Busy       bool            `json:"busy"`
	Extracting bool            `json:"extracting"`
	Progress   []progressEntry `json:"progress"`
}

type progressEntry struct {
	archive.Progress
	Percent     float64 `json:"percent"`
	ElapsedText string  `json:"elapsedFormatted"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	resp := progressResponse{
		Busy:       s.exp.Busy(),
		Extracting: s.exp.Extracting(),
		Progress:   []progressEntry{},
	}
	for _, p := range s.exp.Progress() {
		resp.Progress = append(resp.Progress, progressEntry{Progress: p, Percent: p.Percent(), ElapsedText: p.ElapsedFormatted()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown")
	w.Write([]byte(model.Help()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, explorer.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, explorer.ErrExtractionInProgress):
		status = http.StatusConflict
	case errors.Is(err, explorer.ErrNotArchive), errors.Is(err, explorer.ErrProtected),
		errors.Is(err, archive.ErrUnsupportedFormat):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, explorer.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
