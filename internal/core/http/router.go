package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessionkit/internal/core/service"
	"github.com/aussiebroadwan/sessionkit/internal/core/store"
	"github.com/aussiebroadwan/sessionkit/pkg/httpx"
	"github.com/aussiebroadwan/sessionkit/pkg/jwtx"
	"github.com/aussiebroadwan/sessionkit/pkg/slogx"

	_ "github.com/aussiebroadwan/sessionkit/api/core" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	root        *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	versions     []string
	apiKeyHashes []string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store              store.Store
	SessionService     *service.SessionService
	KeyRotationService *service.KeyRotationService
}

type RouterOptions struct {
	Keys         *jwtx.KeySet
	Store        store.Store
	Logger       *slog.Logger
	BuildVersion string

	// Versions default to DefaultVersions.
	Versions []string

	// APIKeyHashes are Argon2id hashes of the accepted api-key values. Empty
	// means the core is open.
	APIKeyHashes []string
}

func NewRouter(opts RouterOptions) *Router {
	versions := opts.Versions
	if len(versions) == 0 {
		versions = DefaultVersions
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		root:         http.NewServeMux(),
		keys:         opts.Keys,
		versions:     versions,
		apiKeyHashes: opts.APIKeyHashes,
		buildVersion: opts.BuildVersion,
		startTime:    time.Now(),
		store:        opts.Store,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		RequireVersion(r.versions),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerKeys()
	r.registerSystem()

	// /swagger/ would overlap the tenant scoped patterns on Mux.
	r.root.Handle("/swagger/", httpSwagger.Handler())
	r.root.Handle("/", r.Mux)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			sessionkit core
//	@version		4.0
//	@description	Reference session core. Stores sessions, rotates refresh tokens, detects refresh token theft and signs access tokens.
//	@description
//	@description	Session endpoints reply 200 with a status of OK, UNAUTHORISED, TRY_REFRESH_TOKEN or TOKEN_THEFT_DETECTED. Times are Unix milliseconds.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/sessionkit
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:3567
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	APIKey
//	@in							header
//	@name						api-key
//	@description				One of the keys whose Argon2id hash the core was configured with.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.root, r.middlewares...).ServeHTTP(w, req)
}

// secured wraps h for the authenticated API.
func (r *Router) secured(h http.Handler, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.RequireAPIKey(r.apiKeyHashes),
		httpx.RateLimitByAPIKey(limit),
		httpx.RequireJSON,
	)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Sessions: r.SessionService}

	create := r.secured(http.HandlerFunc(h.HandleCreate), httpx.SessionLimit)
	refresh := r.secured(http.HandlerFunc(h.HandleRefresh), httpx.SessionLimit)
	verify := r.secured(http.HandlerFunc(h.HandleVerify), httpx.SessionLimit)
	regenerate := r.secured(http.HandlerFunc(h.HandleRegenerate), httpx.SessionLimit)
	remove := r.secured(http.HandlerFunc(h.HandleRemove), httpx.SessionLimit)
	get := r.secured(http.HandlerFunc(h.HandleGet), httpx.SessionLimit)
	list := r.secured(http.HandlerFunc(h.HandleListForUser), httpx.SessionLimit)
	getData := r.secured(http.HandlerFunc(h.HandleGetData), httpx.SessionLimit)
	putData := r.secured(http.HandlerFunc(h.HandleUpdateData), httpx.SessionLimit)
	putJWT := r.secured(http.HandlerFunc(h.HandleUpdateJWTData), httpx.SessionLimit)

	r.Mux.Handle("POST /{tenant}/recipe/session", create)
	r.Mux.Handle("POST /recipe/session/refresh", refresh)
	r.Mux.Handle("POST /recipe/session/verify", verify)
	r.Mux.Handle("POST /recipe/session/regenerate", regenerate)
	r.Mux.Handle("POST /recipe/session/remove", remove)
	r.Mux.Handle("GET /recipe/session", get)
	r.Mux.Handle("GET /{tenant}/recipe/session/user", list)
	r.Mux.Handle("GET /recipe/session/data", getData)
	r.Mux.Handle("PUT /recipe/session/data", putData)
	r.Mux.Handle("PUT /recipe/jwt/data", putJWT)
}

func (r *Router) registerKeys() {
	h := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}

	// Rotation accepts an empty body, so it skips the content type check.
	rotate := httpx.Chain(http.HandlerFunc(h.HandleRotate),
		httpx.RequireAPIKey(r.apiKeyHashes),
		httpx.RateLimitByAPIKey(httpx.AdminLimit),
	)
	list := r.secured(http.HandlerFunc(h.HandleListKeys), httpx.AdminLimit)
	retire := httpx.Chain(http.HandlerFunc(h.HandleRetireKey),
		httpx.RequireAPIKey(r.apiKeyHashes),
		httpx.RateLimitByAPIKey(httpx.AdminLimit),
	)

	r.Mux.Handle("POST /recipe/keys/rotate", rotate)
	r.Mux.Handle("GET /recipe/keys", list)
	r.Mux.Handle("POST /recipe/keys/{kid}/retire", retire)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /apiversion",
		httpx.Chain(APIVersionHandler(r.versions),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
