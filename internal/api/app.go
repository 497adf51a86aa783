package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/camhive/live-core/internal/gate"
	"github.com/camhive/live-core/internal/presence"
	"github.com/camhive/live-core/internal/session"
	"github.com/camhive/live-core/internal/signal"
	"github.com/camhive/live-core/internal/thumbnail"
)

// AppOptions is options of the application
type AppOptions struct {
	Presence   *presence.Store
	Registry   *session.Registry
	Gate       *gate.Gate
	Relay      *signal.Relay
	Thumbnails thumbnail.Queue

	// Authenticator may be preset by tests; when nil it is built from the
	// configuration.
	Authenticator *Authenticator

	router *chi.Mux
}

// App is application for API
type App struct {
	AppOptions
}

// NewApp creates a new API application
func NewApp(options AppOptions) *App {
	options.router = chi.NewRouter()

	if options.Authenticator == nil {
		options.Authenticator = NewAuthenticator(
			viper.GetString("auth_service.addr"),
			[]byte(viper.GetString("auth_service.cookie_secret")),
		)
		options.Authenticator.AuthFailFunc = authFailedFunc
	}

	app := &App{
		options,
	}
	return app
}

// Router is function for construct http router
func (app *App) Router() http.Handler {
	app.router.Use(middleware.Recoverer)

	// Открытые маршруты: каталог и здоровье
	app.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	app.router.Handle("/metrics", promhttp.Handler())
	app.router.Get("/presence/live", PresenceLiveHandler(app.Presence))
	app.router.Get("/presence/counts", PresenceCountsHandler(app.Presence))

	// Broadcaster mutations need a verified account.
	app.router.Group(func(r chi.Router) {
		r.Use(app.Authenticator.Middleware())

		r.Patch("/presence", PresenceUpdateHandler(app.Presence))
		r.Post("/presence/heartbeat", HeartbeatHandler(app.Presence))
		r.Patch("/presence/thumbnail", ThumbnailUpdateHandler(app.Thumbnails))
		r.Post("/sessions", SessionStartHandler(app.Registry))
		r.Post("/tips", TipHandler(app.Gate))
	})

	// Viewer routes work for guests: the anonymous preview needs no
	// account, only the sticky guest cookie.
	app.router.Group(func(r chi.Router) {
		r.Use(app.Authenticator.GuestMiddleware())

		r.Post("/sessions/join", SessionJoinHandler(app.Registry, app.Gate))
		r.Delete("/sessions/{id}", SessionEndHandler(app.Registry))
		r.Post("/sessions/{id}/participants/{participantID}/leave", SessionLeaveHandler(app.Registry, app.Gate))
		r.Get("/sessions/active", SessionActiveHandler(app.Registry))
		r.Post("/signals", SignalSendHandler(app.Relay))
		r.Get("/signals", SignalPullHandler(app.Relay, app.Gate))
	})

	return app.router
}

func authFailedFunc(w http.ResponseWriter, r *http.Request, err error) {
	w.WriteHeader(http.StatusUnauthorized)
}
