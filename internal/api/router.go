// Package api serves the sitelog HTTP interface.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/sadopc/sitelog/internal/auth"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/session"
	"github.com/sadopc/sitelog/internal/store"
)

const (
	cookieName  = "sitelog"
	cookieSID   = "sid"
	cookieUID   = "uid"
	cookieEmail = "email"

	defaultMaxBody = 25 << 20
	defaultTimeout = 30 * time.Second
)

type Options struct {
	Service  *service.Service
	Sessions *session.Resolver
	Auth     *auth.Manager
	Logger   *slog.Logger

	CookieSecret   string
	SecureCookies  bool
	TokenTTL       time.Duration
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

type API struct {
	svc      *service.Service
	sessions *session.Resolver
	auth     *auth.Manager
	cookies  *sessions.CookieStore
	log      *slog.Logger
	tokenTTL time.Duration
	maxBody  int64
	timeout  time.Duration
}

func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultTimeout
	}

	cookies := sessions.NewCookieStore([]byte(opts.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	return &API{
		svc:      opts.Service,
		sessions: opts.Sessions,
		auth:     opts.Auth,
		cookies:  cookies,
		log:      opts.Logger,
		tokenTTL: opts.TokenTTL,
		maxBody:  opts.MaxBodyBytes,
		timeout:  opts.RequestTimeout,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.timeout))
	r.Use(a.requestLogger)

	r.Get("/health", a.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", a.handleSignup)
		r.Post("/login", a.handleLogin)
		r.Post("/reset-password", a.handleResetPassword)
		r.Post("/logout", a.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)
		r.Get("/me", a.handleMe)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", a.handleListProjects)
			r.With(requireRole(store.RoleLeader, store.RoleAdmin)).Post("/", a.handleCreateProject)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetProject)
				r.Get("/progress", a.handleProjectProgress)
				r.Get("/progress.csv", a.handleProjectProgressCSV)
				r.Get("/payments", a.handleProjectPayments)
				r.Get("/payments.csv", a.handleProjectPaymentsCSV)
				r.With(requireRole(store.RoleAdmin)).Put("/windows", a.handleSetWindows)
				r.With(requireRole(store.RoleAdmin)).Post("/recompute", a.handleRecompute)
			})
		})

		r.Route("/progress", func(r chi.Router) {
			r.Use(requireRole(store.RoleLeader))
			r.Post("/", a.handleSubmitProgress)
			r.Put("/{id}", a.handleEditProgress)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(requireRole(store.RoleLeader)).Post("/", a.handleSubmitPayment)
			r.Get("/{id}", a.handleGetPayment)
			r.With(requireRole(store.RoleChecker, store.RoleOwner, store.RoleAdmin)).Put("/{id}/status", a.handleSetPaymentStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(store.RoleAdmin))
			r.Get("/dashboard", a.handleDashboard)
			r.Get("/leaders", a.handleLeaderStats)
			r.Get("/users", a.handleListUsers)
			r.Delete("/users/{email}", a.handleDeleteUser)
			r.Get("/vehicles", a.handleListVehicles)
			r.Post("/vehicles", a.handleCreateVehicle)
			r.Delete("/vehicles/{id}", a.handleDeleteVehicle)
			r.Get("/drivers", a.handleListDrivers)
			r.Post("/drivers", a.handleCreateDriver)
			r.Delete("/drivers/{id}", a.handleDeleteDriver)
			r.Get("/backup", a.handleBackup)
		})
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
