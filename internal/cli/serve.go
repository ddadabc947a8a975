package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/strathmore/pipescore/pkg/cache"
	pserrors "github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/layout"
	"github.com/strathmore/pipescore/pkg/repo"
	"github.com/strathmore/pipescore/pkg/score"
)

// serveCommand creates the serve command exposing the layout engine
// over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout engine over HTTP",
		Long: `Serve the layout engine over HTTP.

Endpoints:

  POST /layout                  stateless full layout of the posted score
  PUT  /documents/{id}          store a score document
  GET  /documents/{id}          retrieve a stored document
  DELETE /documents/{id}        remove a stored document
  POST /documents/{id}/layout   incremental layout pass for a stored document
  GET  /healthz                 liveness probe

Documents live in memory unless the config file points at MongoDB. A Redis
address in the config memoizes stateless layout responses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, configPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&configPath, "config", "", "engine config file (TOML)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr, configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	var store repo.Store
	if uri := cfg.Backend.MongoURI; uri != "" {
		ms, err := repo.NewMongoStore(ctx, repo.MongoConfig{URI: uri})
		if err != nil {
			return fmt.Errorf("connect mongodb: %w", err)
		}
		store = ms
		c.Logger.Info("using mongodb score repository")
	} else {
		store = repo.NewMemoryStore()
	}
	defer store.Close(context.Background())

	var results cache.Cache = cache.NewNullCache()
	if a := cfg.Backend.RedisAddr; a != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: a})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		results = rc
		c.Logger.Info("using redis result cache", "addr", a)
	}
	defer results.Close()

	srv := &server{
		logger:  c.Logger,
		cfg:     cfg,
		store:   store,
		results: results,
		keyer:   cache.NewDefaultKeyer(),
		coords:  make(map[string]*layout.Coordinator),
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

// server is the HTTP adapter over the layout coordinator and the score
// repository.
// maxDocumentBytes bounds request bodies; band scores are small, so
// anything larger is a client error.
const maxDocumentBytes = 32 << 20

type server struct {
	logger  *log.Logger
	cfg     Config
	store   repo.Store
	results cache.Cache
	keyer   cache.Keyer

	// coords holds one coordinator per stored document, preserving the
	// dirty tracker and entity cache across incremental requests. The
	// coordinator itself is single-writer; the mutex serializes access.
	mu     sync.Mutex
	coords map[string]*layout.Coordinator
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/layout", s.handleLayout)
	r.Route("/documents/{id}", func(r chi.Router) {
		r.Put("/", s.handlePutDocument)
		r.Get("/", s.handleGetDocument)
		r.Delete("/", s.handleDeleteDocument)
		r.Post("/layout", s.handleDocumentLayout)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLayout runs a stateless full layout pass over the posted score.
func (s *server) handleLayout(w http.ResponseWriter, r *http.Request) {
	doc, raw, err := readDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc.Settings = s.cfg.ApplySettings(doc.Settings)

	key := s.keyer.LayoutKey(cache.Hash(raw), cache.LayoutKeyOpts{
		PaperSize:     string(doc.Settings.PaperSize),
		Orientation:   string(doc.Settings.Orientation),
		SpacingFactor: doc.Settings.SpacingFactor,
		FontSize:      doc.Settings.FontSize,
	})
	if data, ok, err := s.results.Get(r.Context(), key); err == nil && ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	co := layout.NewCoordinator(layout.Config{
		Cache:          s.cfg.EntityCache(),
		Workers:        s.cfg.Workers,
		Tracker:        s.cfg.TrackerConfig(),
		AvoidTolerance: s.cfg.Page.AvoidTolerance,
	})
	res, err := co.CalculateDocumentLayout(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}

	if data, err := json.Marshal(res); err == nil {
		_ = s.results.Set(r.Context(), key, data, cache.TTLLayout)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	doc, _, err := readDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc.ID = chi.URLParam(r, "id")
	if err := s.store.SaveDocument(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": doc.ID})
}

func (s *server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.LoadDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	delete(s.coords, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// handleDocumentLayout runs an incremental pass for a stored document.
// The request body is the change set; the per-document coordinator
// keeps the entity cache and dirty tracker warm between calls.
func (s *server) handleDocumentLayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var change layout.ChangeSet
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		writeError(w, pserrors.Wrap(pserrors.ErrCodeInvalidInput, err, "decode change set"))
		return
	}

	doc, err := s.store.LoadDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	doc.Settings = s.cfg.ApplySettings(doc.Settings)

	s.mu.Lock()
	co, ok := s.coords[id]
	if !ok {
		co = layout.NewCoordinator(layout.Config{
			Cache:          s.cfg.EntityCache(),
			Workers:        s.cfg.Workers,
			Tracker:        s.cfg.TrackerConfig(),
			AvoidTolerance: s.cfg.Page.AvoidTolerance,
		})
		s.coords[id] = co
		// First contact: lay out the whole document.
		change.GlobalSettings = true
	}

	res, err := co.OnScoreChanged(r.Context(), doc, change)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("incremental pass",
		"document", id,
		"systems", len(res.UpdatedSystems),
		"pages", len(res.UpdatedPages))

	// Persist the revised page assignment and fan the change out to
	// any repository subscribers.
	if err := s.store.SaveDocument(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}
	_ = s.store.NotifyChange(r.Context(), repo.ChangeNotification{DocumentID: id, Change: change})

	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// HTTP Helpers
// =============================================================================

func readDocument(r *http.Request) (*score.Document, []byte, error) {
	raw, err := readBody(r)
	if err != nil {
		return nil, nil, err
	}
	doc, err := score.UnmarshalDocument(raw)
	if err != nil {
		return nil, nil, err
	}
	return doc, raw, nil
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		return nil, pserrors.Wrap(pserrors.ErrCodeInvalidInput, err, "read request body")
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps structured error codes to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch pserrors.GetCode(err) {
	case pserrors.ErrCodeDocumentNotFound, pserrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case pserrors.ErrCodeInvalidInput, pserrors.ErrCodeInvalidDocument,
		pserrors.ErrCodeInvalidFormat, pserrors.ErrCodeStructuralIntegrity:
		status = http.StatusBadRequest
	case pserrors.ErrCodeCanceled:
		status = 499 // client closed request
	}
	writeJSON(w, status, map[string]string{
		"error": pserrors.UserMessage(err),
		"code":  string(pserrors.GetCode(err)),
	})
}
