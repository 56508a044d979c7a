package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/susu3304/lodestar-web/internal/config"
	"github.com/susu3304/lodestar-web/internal/lodestar"
	"github.com/susu3304/lodestar-web/internal/logger"
	"github.com/susu3304/lodestar-web/internal/session"
)

type API struct {
	router   *mux.Router
	config   *config.Config
	client   *lodestar.Client
	sessions *session.Holder
	issuer   *session.Issuer
	server   *http.Server
}

func New(cfg *config.Config, client *lodestar.Client, sessions *session.Holder) *API {
	api := &API{
		router:   mux.NewRouter(),
		config:   cfg,
		client:   client,
		sessions: sessions,
		issuer:   session.NewIssuer(cfg.JWTSecret),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.NotFoundHandler = http.HandlerFunc(a.handleNotFound)
	a.router.MethodNotAllowedHandler = http.HandlerFunc(a.handleMethodNotAllowed)

	// Session
	a.router.HandleFunc("/api/auto-login", a.handleAutoLogin).Methods("POST")

	// Location and product lookups
	a.router.HandleFunc("/api/counties", a.lookup(countiesLookup)).Methods("GET")
	a.router.HandleFunc("/api/townships", a.lookup(townshipsLookup)).Methods("GET")
	a.router.HandleFunc("/api/geocode-check", a.lookup(geocodeLookup)).Methods("GET")
	a.router.HandleFunc("/api/questions", a.lookup(questionsLookup)).Methods("GET", "POST")
	a.router.HandleFunc("/api/endorsements", a.lookup(endorsementsLookup)).Methods("GET")
	a.router.HandleFunc("/api/sub-agents", a.lookup(subAgentsLookup)).Methods("GET")
	a.router.HandleFunc("/api/appraisal-modifiers", a.lookup(appraisalModifiersLookup)).Methods("GET")
	a.router.HandleFunc("/api/property-tax", a.lookup(propertyTaxLookup)).Methods("GET")
	a.router.HandleFunc("/api/search-results", a.lookup(searchResultsLookup)).Methods("GET")

	// Calculations
	a.router.HandleFunc("/api/closing-costs", a.handleClosingCosts).Methods("POST")
	a.router.HandleFunc("/api/closing-costs/summary", a.handleClosingCostSummary).Methods("POST")

	// Web interface
	a.router.HandleFunc("/", a.handleWebInterface).Methods("GET")
	a.router.PathPrefix("/static/").Handler(staticHandler()).Methods("GET")
}

// Handler returns the router wrapped with request logging and CORS.
func (a *API) Handler() http.Handler {
	// When AllowedOrigins is "*", AllowCredentials must stay false.
	corsOptions := cors.Options{
		AllowedOrigins:   a.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}

	return cors.New(corsOptions).Handler(requestLogger(a.router))
}

func (a *API) Start() error {
	a.server = &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.L.Info("API server listening", "addr", "http://"+a.config.WebBind, "client", a.client.Tenant(),
		"credentials_configured", a.config.CredentialsConfigured())
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
