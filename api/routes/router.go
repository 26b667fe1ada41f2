package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mantongash/cartsync/api/controllers"
	"github.com/mantongash/cartsync/api/middleware"
	"github.com/mantongash/cartsync/internal/collection"
	"github.com/mantongash/cartsync/pkg/config"
	"github.com/mantongash/cartsync/pkg/logger"
)

// NewRouter assembles the collection API.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readinessDeps map[string]controllers.Pinger,
	collectionService collection.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps))
	})

	r.Route("/api/v1/{category}", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.CollectionGet(collectionService, logg))
		r.Post("/add", controllers.CollectionAdd(collectionService, logg))
		r.Delete("/remove/{productRef}", controllers.CollectionRemove(collectionService, logg))
		r.Put("/update", controllers.CollectionUpdate(collectionService, logg))
		r.Delete("/clear", controllers.CollectionClear(collectionService, logg))
	})

	return r
}
