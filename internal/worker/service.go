// Package worker provides the HTTP service for quickpen.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/quickpen-app/quickpen/internal/auth"
	"github.com/quickpen-app/quickpen/internal/config"
	gormstore "github.com/quickpen-app/quickpen/internal/db/gorm"
	"github.com/quickpen-app/quickpen/internal/events"
	"github.com/quickpen-app/quickpen/internal/sprint"
	"github.com/quickpen-app/quickpen/internal/worker/sse"
	"github.com/quickpen-app/quickpen/pkg/models"
)

const tokenPruneInterval = time.Hour

// Service is the quickpen worker. It owns the store, the auth layer, the
// per-user sprint sessions, and the HTTP surface.
type Service struct {
	version string
	config  *config.Config

	store       *gormstore.Store
	sprintStore *gormstore.SprintStore
	userStore   *gormstore.UserStore

	auth     *auth.Service
	sessions *sprint.Manager
	bus      *events.Bus

	sseBroadcaster *sse.Broadcaster
	router         *chi.Mux
	httpServer     *http.Server

	ctx       context.Context
	cancel    context.CancelFunc
	ready     atomic.Bool
	startTime time.Time

	unsubscribe []func()
}

// NewService wires the full service from configuration.
func NewService(version string, cfg *config.Config) (*Service, error) {
	store, err := gormstore.NewStore(gormstore.Config{
		Driver:      cfg.DBDriver,
		Path:        config.DBPath(),
		PostgresDSN: cfg.PostgresDSN,
		MaxConns:    cfg.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	sprintStore := gormstore.NewSprintStore(store)
	userStore := gormstore.NewUserStore(store)

	authSvc := auth.NewService(userStore, time.Duration(cfg.SessionTTLHours)*time.Hour)
	bus := events.NewBus()
	sessions := sprint.NewManager(sprintStore, bus)

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        version,
		config:         cfg,
		store:          store,
		sprintStore:    sprintStore,
		userStore:      userStore,
		auth:           authSvc,
		sessions:       sessions,
		bus:            bus,
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}

	svc.unsubscribe = append(svc.unsubscribe,
		bus.Subscribe(events.SprintCompleted, svc.onSprintCompleted))

	svc.setupRoutes()
	return svc, nil
}

// onSprintCompleted pushes completed sprints to the owner's event streams.
func (s *Service) onSprintCompleted(payload interface{}) {
	sp, ok := payload.(*models.Sprint)
	if !ok {
		log.Warn().Msg("Unexpected sprint_completed payload type")
		return
	}
	s.sseBroadcaster.Broadcast(sp.UserID, string(events.SprintCompleted), sp)
}

// setupRoutes registers all HTTP routes.
func (s *Service) setupRoutes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.auth.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/ready", s.handleReady)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/signin", s.handleSignIn)
			r.Post("/anonymous", s.handleSignInAnonymously)
			r.Post("/signout", s.handleSignOut)
			r.With(auth.RequireUser).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireReady)
			r.Use(auth.RequireUser)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", s.handleSessionState)
				r.Post("/start", s.handleSessionStart)
				r.Post("/content", s.handleSessionContent)
				r.Post("/pause", s.handleSessionPause)
				r.Post("/resume", s.handleSessionResume)
				r.Post("/end-early", s.handleSessionEndEarly)
				r.Post("/complete", s.handleSessionComplete)
				r.Post("/discard", s.handleSessionDiscard)
			})

			r.Route("/sprints", func(r chi.Router) {
				r.Get("/", s.handleListSprints)
				r.Post("/", s.handleCreateSprint)
				r.Get("/tags", s.handleListTags)
				r.Get("/export", s.handleExport)
				r.Route("/{sprintID}", func(r chi.Router) {
					r.Get("/", s.handleGetSprint)
					r.Post("/tags", s.handleAddTag)
					r.Delete("/tags/{tag}", s.handleRemoveTag)
				})
			})

			r.Get("/progress", s.handleProgress)
			r.Get("/highscores", s.handleHighScores)
			r.Get("/events", s.handleEvents)
		})
	})
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Service) Run() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneTokensLoop()

	s.ready.Store(true)
	log.Info().Int("port", s.config.Port).Str("version", s.version).Msg("quickpen worker listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-s.ctx.Done():
		return nil
	}
}

// Shutdown stops the server and releases all resources.
func (s *Service) Shutdown() {
	s.ready.Store(false)
	s.cancel()

	for _, unsub := range s.unsubscribe {
		unsub()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
	}

	s.sessions.Shutdown()

	if err := s.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Store close error")
	}

	log.Info().Dur("uptime", time.Since(s.startTime)).Msg("quickpen worker stopped")
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

func (s *Service) pruneTokensLoop() {
	ticker := time.NewTicker(tokenPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.auth.PruneExpiredTokens(s.ctx); err != nil {
				log.Warn().Err(err).Msg("Token prune failed")
			}
		}
	}
}

// requireReady blocks requests until the service finished starting up.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service not ready")
			return
		}
		next.ServeHTTP(w, r)
	})
}
