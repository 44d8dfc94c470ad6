package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"vaultgraph.org/internal/authz"
	"vaultgraph.org/internal/obs"
	"vaultgraph.org/internal/stream"
)

// ReadyProbe reports readiness; with a DB configured it pings it.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the authorization service.
type API struct {
	mux        *http.ServeMux
	svc        *authz.Service
	verifier   *authz.Verifier
	events     *stream.Stream
	readyProbe ReadyProbe
	version    string
}

// Option configures the API.
type Option func(*API)

// WithEvents enables the live decision event endpoint.
func WithEvents(s *stream.Stream) Option {
	return func(a *API) { a.events = s }
}

// WithReadyProbe sets the readiness probe backing /readyz.
func WithReadyProbe(rp ReadyProbe) Option {
	return func(a *API) { a.readyProbe = rp }
}

func New(svc *authz.Service, verifier *authz.Verifier, version string, opts ...Option) *API {
	a := &API{
		mux:      http.NewServeMux(),
		svc:      svc,
		verifier: verifier,
		version:  version,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authorization API
	a.mux.HandleFunc("POST /v1/evaluate", a.Evaluate)
	a.mux.HandleFunc("POST /v1/relationships/write", a.WriteRelationships)
	a.mux.HandleFunc("POST /v1/relationships/delete", a.DeleteRelationships)
	a.mux.HandleFunc("GET /v1/relationships", a.ListRelationships)
	a.mux.HandleFunc("POST /v1/expand", a.Expand)
	a.mux.HandleFunc("GET /v1/resources", a.ListResources)
	a.mux.HandleFunc("GET /v1/subjects", a.ListSubjects)
	a.mux.HandleFunc("GET /v1/events", a.Events)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- health handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vaultgraph-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "vaultgraph-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
