package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/soochol/dbadmin/internal/config"
	"github.com/soochol/dbadmin/internal/dbadmin/ports"
	"github.com/soochol/dbadmin/internal/eventbus"
	"github.com/soochol/dbadmin/internal/navigation"
	"github.com/soochol/dbadmin/internal/repository"
	"github.com/soochol/dbadmin/internal/services"
)

type Server struct {
	manager         *services.RegistryManager
	history         *navigation.History
	engines         config.EngineCatalog
	bus             *eventbus.Bus
	trackingRepo    repository.TrackingRepository
	dataAccess      ports.DataAccess
	limiter         *services.MutationLimiter
	scheduler       *services.RefreshScheduler
	metrics         http.Handler
	apiKeyHash      []byte
	syncConcurrency int
}

func NewServer(manager *services.RegistryManager, history *navigation.History, engines config.EngineCatalog) *Server {
	return &Server{
		manager: manager,
		history: history,
		engines: engines,
	}
}

// SetEventBus enables the state change stream.
func (s *Server) SetEventBus(bus *eventbus.Bus) {
	s.bus = bus
}

// SetTrackingRepository exposes recorded tracking events.
func (s *Server) SetTrackingRepository(repo repository.TrackingRepository) {
	s.trackingRepo = repo
}

// SetDataAccess serves the embedded data-access service under /api/database.
func (s *Server) SetDataAccess(da ports.DataAccess) {
	s.dataAccess = da
}

// SetAPIKeyHash requires a matching X-API-Key on /api/database.
func (s *Server) SetAPIKeyHash(hash string) {
	s.apiKeyHash = []byte(hash)
}

func (s *Server) SetMutationLimiter(l *services.MutationLimiter) {
	s.limiter = l
}

func (s *Server) SetScheduler(sched *services.RefreshScheduler) {
	s.scheduler = sched
}

// SetMetricsHandler mounts h at /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metrics = h
}

// SetSyncConcurrency bounds POST /api/admin/databases/sync.
func (s *Server) SetSyncConcurrency(n int) {
	s.syncConcurrency = n
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", apiKeyHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/admin", func(r chi.Router) {
			r.Get("/state", s.getState)
			r.Get("/state/events", s.streamState)
			r.Get("/location", s.getLocation)
			r.Get("/engines", s.listEngines)
			r.Get("/tracking", s.listTracking)
			r.Get("/stats", s.getStats)
			r.Route("/databases", func(r chi.Router) {
				r.Use(s.requireAPIKey)
				r.Post("/fetch", s.fetchDatabases)
				r.Post("/sample", s.addSampleDataset)
				r.Post("/sync", s.syncAll)
				r.Post("/{id}/sync", s.syncDatabase)
				r.Delete("/{id}", s.deleteDatabase)
			})
			r.Route("/draft", func(r chi.Router) {
				r.Use(s.requireAPIKey)
				r.Post("/", s.initializeDraft)
				r.Post("/reset", s.resetDraft)
				r.Put("/engine", s.selectEngine)
				r.Post("/save", s.saveDraft)
			})
		})
		if s.dataAccess != nil {
			r.Route("/database", func(r chi.Router) {
				r.Use(s.requireAPIKey)
				r.Get("/", s.restList)
				r.Post("/", s.restCreate)
				r.Post("/sample_dataset", s.restAddSample)
				r.Get("/{id}", s.restGet)
				r.Put("/{id}", s.restUpdate)
				r.Delete("/{id}", s.restDelete)
				r.Post("/{id}/sync_metadata", s.restSync)
			})
		}
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
