package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/flock"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/mapforge/mapleads/events"
	"github.com/mapforge/mapleads/history"
	"github.com/mapforge/mapleads/idgen"
	"github.com/mapforge/mapleads/internal/browser"
	"github.com/mapforge/mapleads/kit"
	"github.com/mapforge/mapleads/leadgen"
	"github.com/mapforge/mapleads/leads"
)

func main() {
	port := env("PORT", "8080")
	historyPath := env("HISTORY_DB", "db/history.db")
	configPath := env("CONFIG_FILE", "")
	lockPath := env("LOCK_FILE", "data/mapleads.lock")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logOut := os.Stdout
	if mcpTransport == "stdio" {
		// stdout belongs to the MCP stream in stdio mode.
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Single instance: one browser pool per machine.
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		slog.Error("lock dir", "error", err)
		os.Exit(1)
	}
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		slog.Error("instance lock", "error", err)
		os.Exit(1)
	}
	if !locked {
		slog.Error("another instance is already running", "lock", lockPath)
		os.Exit(1)
	}
	defer fl.Unlock()

	// Scraper config.
	var cfg *leadgen.Config
	if configPath != "" {
		cfg, err = leadgen.LoadConfigFile(configPath)
		if err != nil {
			slog.Error("load config", "path", configPath, "error", err)
			os.Exit(1)
		}
	} else {
		cfg = &leadgen.Config{}
		cfg.Browser.Headless = true
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		cfg.Browser.Headless = v != "0" && v != "false"
	}

	// Browser.
	mgr := browser.NewManager(browser.Config{
		Headless:     cfg.Browser.Headless,
		RemoteURL:    env("REMOTE_BROWSER", ""),
		UserAgent:    cfg.Browser.UserAgent,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		BlockedTypes: cfg.Browser.BlockedTypes,
		Logger:       logger,
	})
	defer mgr.Close()

	svc := leadgen.New(cfg, mgr, logger)

	// History DB.
	store, err := history.Open(historyPath)
	if err != nil {
		slog.Error("history db", "path", historyPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// MCP stdio mode: the process is the tool server, no HTTP.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "mapleads",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		store.RegisterMCP(mcpSrv)
		slog.Info("MCP stdio server starting")
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("MCP server", "error", err)
			os.Exit(1)
		}
		return
	}

	api := &apiServer{
		svc:    svc,
		store:  store,
		hub:    events.NewHub(),
		runCtx: ctx,
	}
	api.status.Store(runStatus{})

	// Router.
	r := chi.NewRouter()
	r.Use(requestContext)
	r.Use(requireAuth(os.Getenv("AUTH_PASSWORD")))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/searches", api.handleSearch)
	r.Post("/api/searches/bulk", api.handleBulkSearch)
	r.Get("/api/searches/status", api.handleStatus)

	r.Get("/api/history", api.handleHistoryList)
	r.Get("/api/history/{id}", api.handleHistoryGet)
	r.Delete("/api/history/{id}", api.handleHistoryDelete)
	r.Get("/api/history/{id}/export", api.handleHistoryExport)

	r.Get("/events", api.handleEvents)

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// runStatus is the last known state of the current (or most recent) run.
type runStatus struct {
	Running    bool    `json:"running"`
	RunID      string  `json:"run_id,omitempty"`
	Percent    int     `json:"percent"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
	Count      int     `json:"count"`
	SearchIDs  []int64 `json:"search_ids,omitempty"`
	StartedAt  int64   `json:"started_at,omitempty"`
	FinishedAt int64   `json:"finished_at,omitempty"`
}

type apiServer struct {
	svc    *leadgen.Service
	store  *history.Store
	hub    *events.Hub
	runCtx context.Context
	status atomic.Value // runStatus
}

// progress returns a sink that mirrors updates into the status value and the
// event hub.
func (a *apiServer) progress(runID string) leadgen.Progress {
	return leadgen.ProgressFunc(func(percent int, message string) {
		st := a.status.Load().(runStatus)
		if st.RunID == runID {
			st.Percent = percent
			st.Message = message
			a.status.Store(st)
		}
		a.hub.Publish(events.Progress(runID, percent, message))
	})
}

func (a *apiServer) beginRun(runID string) {
	a.status.Store(runStatus{
		Running:   true,
		RunID:     runID,
		StartedAt: time.Now().UnixMilli(),
	})
}

func (a *apiServer) endRun(runID string, count int, searchIDs []int64, err error) {
	st := a.status.Load().(runStatus)
	if st.RunID != runID {
		return
	}
	st.Running = false
	st.Count = count
	st.SearchIDs = searchIDs
	st.FinishedAt = time.Now().UnixMilli()
	if err != nil {
		st.Error = err.Error()
		a.hub.Publish(events.Progress(runID, st.Percent, "Error: "+err.Error()))
	} else {
		st.Percent = 100
		a.hub.Publish(events.Done(runID, map[string]any{"count": count, "search_ids": searchIDs}))
	}
	a.status.Store(st)
}

type searchRequest struct {
	Keyword    string       `json:"keyword"`
	City       string       `json:"city"`
	Country    string       `json:"country"`
	MaxResults int          `json:"max_results"`
	Dedupe     *bool        `json:"dedupe"`
	Filter     leads.Filter `json:"filter"`
}

func (a *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	q := leadgen.Query{Keyword: req.Keyword, City: req.City, Country: req.Country}
	if err := q.Validate(); err != nil {
		writeError(w, 400, err)
		return
	}
	if a.svc.Running() {
		writeError(w, 409, leadgen.ErrBusy)
		return
	}

	runID := idgen.New()
	a.beginRun(runID)
	go func() {
		batch, err := a.svc.Run(a.runCtx, q, req.MaxResults, a.progress(runID))
		if err != nil {
			a.endRun(runID, 0, nil, err)
			return
		}
		batch = postProcess(batch, req.Dedupe, req.Filter)

		var ids []int64
		if len(batch) > 0 {
			id, err := a.store.Save(a.runCtx, req.Keyword, req.City, req.Country, batch)
			if err != nil {
				slog.Warn("save search history", "error", err)
			} else {
				ids = []int64{id}
			}
		}
		a.endRun(runID, len(batch), ids, nil)
	}()

	writeJSON(w, 202, map[string]string{"run_id": runID, "query": q.String()})
}

type bulkRequest struct {
	Searches   []leadgen.Query `json:"searches"`
	MaxResults int             `json:"max_results"`
	Dedupe     *bool           `json:"dedupe"`
	Filter     leads.Filter    `json:"filter"`
}

func (a *apiServer) handleBulkSearch(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if len(req.Searches) == 0 {
		writeError(w, 400, leadgen.ErrNoQueries)
		return
	}
	if a.svc.Running() {
		writeError(w, 409, leadgen.ErrBusy)
		return
	}

	runID := idgen.New()
	a.beginRun(runID)
	go func() {
		batch, err := a.svc.RunBulk(a.runCtx, req.Searches, req.MaxResults, a.progress(runID))
		if err != nil {
			a.endRun(runID, 0, nil, err)
			return
		}
		batch = postProcess(batch, req.Dedupe, req.Filter)

		// One history entry per originating search, matching leads by the
		// keyword appearing in their tagged query.
		var ids []int64
		for _, q := range req.Searches {
			kw := strings.ToLower(q.Keyword)
			var subset []leads.Lead
			for _, l := range batch {
				if strings.Contains(strings.ToLower(l.SearchQuery), kw) {
					subset = append(subset, l)
				}
			}
			if len(subset) == 0 {
				continue
			}
			id, err := a.store.Save(a.runCtx, q.Keyword, q.City, q.Country, subset)
			if err != nil {
				slog.Warn("save bulk search history", "query", q.String(), "error", err)
				continue
			}
			ids = append(ids, id)
		}
		a.endRun(runID, len(batch), ids, nil)
	}()

	writeJSON(w, 202, map[string]any{"run_id": runID, "searches": len(req.Searches)})
}

func postProcess(batch []leads.Lead, dedupe *bool, f leads.Filter) []leads.Lead {
	if dedupe == nil || *dedupe {
		batch = leads.Dedup(batch)
	}
	return f.Apply(batch)
}

func (a *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, 200, a.status.Load().(runStatus))
}

func (a *apiServer) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.Recent(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if list == nil {
		list = []*history.Search{}
	}
	writeJSON(w, 200, list)
}

func (a *apiServer) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, 400, fmt.Errorf("invalid id"))
		return
	}
	detail, err := a.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if detail == nil {
		writeError(w, 404, fmt.Errorf("search %d not found", id))
		return
	}
	writeJSON(w, 200, detail)
}

func (a *apiServer) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, 400, fmt.Errorf("invalid id"))
		return
	}
	if err := a.store.Delete(r.Context(), id); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

func (a *apiServer) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, 400, fmt.Errorf("invalid id"))
		return
	}
	detail, err := a.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if detail == nil {
		writeError(w, 404, fmt.Errorf("search %d not found", id))
		return
	}
	filename := strings.ReplaceAll(fmt.Sprintf("leads_%s_%s.csv", detail.Keyword, detail.City), " ", "_")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := leads.WriteCSV(w, detail.Leads); err != nil {
		slog.Warn("csv export", "search_id", id, "error", err)
	}
}

// handleEvents streams progress events over SSE.
func (a *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, fmt.Errorf("streaming not supported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := a.hub.Subscribe()
	defer a.hub.Unsubscribe(ch)

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case evt := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", evt)
			flusher.Flush()
		}
	}
}

// requestContext tags every request with a transport, an ID and the caller
// address so downstream logs can correlate.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, idgen.New())
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth enforces AUTH_PASSWORD via Basic Auth. The password is hashed
// once at startup; with no password configured the API is open.
func requireAuth(password string) func(http.Handler) http.Handler {
	var hash []byte
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("hash auth password", "error", err)
			os.Exit(1)
		}
		hash = h
	}
	return func(next http.Handler) http.Handler {
		if hash == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pass, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="mapleads"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
