package http

import (
	"net/http"

	"github.com/finlane/ledger-service/internal/delivery/http/handlers"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(txnHandler *handlers.TransactionHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", txnHandler.Create)
		r.Get("/", txnHandler.List)
		r.Get("/count", txnHandler.Count)
		r.Get("/export", txnHandler.Export)
		r.Get("/{orderID}", txnHandler.Get)
		r.Post("/{orderID}/payments", txnHandler.ApplyPayment)
		r.Post("/{id}/status", txnHandler.Transition)
	})

	r.Post("/internal/sweep", txnHandler.Sweep)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
