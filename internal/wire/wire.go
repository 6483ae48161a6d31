package wire

import (
	"net/http"

	"notary-booking/internal/adaptor"
	"notary-booking/internal/crm"
	"notary-booking/internal/data/repository"
	"notary-booking/internal/usecase"
	"notary-booking/pkg/cache"
	"notary-booking/pkg/middleware"
	"notary-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds the wired HTTP surface plus the services background jobs need.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

func Wiring(repo *repository.Repository, config *utils.Config, dispatcher crm.Dispatcher, crmClient crm.Client, deduper *cache.Deduper, logger *zap.Logger) *App {
	service := usecase.NewService(repo, config, dispatcher, crmClient, logger)
	handler := adaptor.NewHandler(service, repo, deduper, config, logger)

	router := setupRouter(handler, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	wireWebhook(r, handler.Webhook)
	wireBooking(r, handler, config, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
