package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"sangha-backend/internal/handlers"
	"sangha-backend/internal/metrics"
	"sangha-backend/internal/middleware"
	"sangha-backend/internal/websocket"
)

// New wires the HTTP surface. The returned stop func releases the write limiter.
func New(
	practitionerHandler *handlers.PractitionerHandler,
	circleHandler *handlers.CircleHandler,
	presenceHandler *handlers.PresenceHandler,
	settingsHandler *handlers.SettingsHandler,
	wsHub *websocket.Hub,
	writeLimitPerMin int,
	frontendURL string,
) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))
	r.Use(metrics.InstrumentHandler)

	writeLimiter := middleware.NewRateLimiter(writeLimitPerMin, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Practitioner Routes ────
		r.Route("/practitioners", func(r chi.Router) {
			r.Get("/", practitionerHandler.FindByEmail)
			r.With(writeLimiter.Middleware).Post("/", practitionerHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", practitionerHandler.Get)
				r.Get("/spirit-bank", practitionerHandler.SpiritBank)
				r.Get("/companions", practitionerHandler.Companions)
				r.Get("/companions/session", practitionerHandler.CompanionSessions)
				r.Get("/companions/matched", practitionerHandler.MatchedCompanions)
				r.Get("/circles/{circleID}/receipt", circleHandler.Receipt)

				r.Group(func(r chi.Router) {
					r.Use(writeLimiter.Middleware)
					r.Put("/involved", practitionerHandler.UpdateInvolved)
					r.Post("/sessions/start", practitionerHandler.StartSession)
					r.Post("/sessions/end", practitionerHandler.EndSession)
					r.Post("/circles", circleHandler.Create)
					r.Post("/circles/{circleID}/join", circleHandler.Join)
					r.Post("/circles/{circleID}/register", circleHandler.Register)
					r.Post("/donate/{toID}", practitionerHandler.Donate)
				})
			})
		})

		// ──── Circle Routes ────
		r.Route("/circles", func(r chi.Router) {
			r.Get("/", circleHandler.List)
			r.Get("/active", circleHandler.Active)
		})

		r.Get("/companions", practitionerHandler.RecentCompanions)

		// ──── Settings ────
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.With(writeLimiter.Middleware).Post("/intention", settingsHandler.AddIntention)
		})

		// ──── Presence ────
		r.Get("/presence", presenceHandler.Stats)
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r, writeLimiter.Stop
}
