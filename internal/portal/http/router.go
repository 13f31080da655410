package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nexusbq/portal/internal/portal/event"
	"github.com/nexusbq/portal/internal/portal/service"
	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/pkg/httpx"
	"github.com/nexusbq/portal/pkg/jwtx"
	"github.com/nexusbq/portal/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	InviteService  *service.InviteService
	FocusService   *service.FocusService
	AccountService *service.AccountService
	Bus            *event.Bus
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerInvites()
	r.registerFocus()
	r.registerAccounts()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerInvites() {
	authn := httpx.AuthnMiddleware(r.verifier)

	// Generating and listing require a session; minting is quota-gated in
	// the service, not here.
	r.Mux.Handle("POST /v1/invites",
		httpx.Chain(&InviteGenerateHandler{InviteService: r.InviteService},
			authn,
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/invites",
		httpx.Chain(&InviteListHandler{InviteService: r.InviteService},
			authn,
			httpx.RateLimitByAccount(httpx.LenientLimit),
		),
	)

	// Validate and redeem are the unauthenticated signup path; strict IP
	// limits blunt code guessing.
	r.Mux.Handle("POST /v1/invites/validate",
		httpx.Chain(&InviteValidateHandler{InviteService: r.InviteService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/invites/redeem",
		httpx.Chain(&InviteRedeemHandler{InviteService: r.InviteService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerFocus() {
	authn := httpx.AuthnMiddleware(r.verifier)

	r.Mux.Handle("POST /v1/focus/start",
		httpx.Chain(&FocusStartHandler{FocusService: r.FocusService},
			authn,
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/focus/stop",
		httpx.Chain(&FocusStopHandler{FocusService: r.FocusService},
			authn,
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccounts() {
	authn := httpx.AuthnMiddleware(r.verifier)

	r.Mux.Handle("GET /v1/accounts/{id}",
		httpx.Chain(&AccountHandler{AccountService: r.AccountService, Store: r.store},
			authn,
			httpx.RateLimitByAccount(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/accounts/{id}/events",
		httpx.Chain(&AccountEventsHandler{Bus: r.Bus, Store: r.store},
			authn,
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", &LivezHandler{Version: r.buildVersion, StartTime: r.startTime})
	r.Mux.Handle("GET /readyz", &ReadyzHandler{Store: r.store})
}
