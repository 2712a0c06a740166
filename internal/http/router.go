package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Harsha29-kns/hackforge-backend/internal/realtime"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/allocator"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/auth"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/registration"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/team"
	"github.com/Harsha29-kns/hackforge-backend/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	teams    *team.Service
	reg      *registration.Service
	alloc    *allocator.Service
	coord    *realtime.Coordinator
	registry *realtime.Registry
	bcast    *realtime.Broadcaster
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter
	wsWrite  time.Duration
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault   = time.Minute
	rateWindowRealtime  = 30 * time.Second
	rateLimitRegister   = 5
	rateLimitAdminLogin = 12
	rateLimitPublicRead = 120
	rateLimitTeamWrite  = 60
	rateLimitAdminWrite = 240
	rateLimitWebsocket  = 30
	healthCheckTimeout  = 2 * time.Second
	sseHeartbeat        = 25 * time.Second
)

// Deps carries everything the Router needs.
type Deps struct {
	Logger   *slog.Logger
	Auth     auth.Service
	Teams    *team.Service
	Reg      *registration.Service
	Alloc    *allocator.Service
	Coord    *realtime.Coordinator
	Registry *realtime.Registry
	Bcast    *realtime.Broadcaster
	Hub      *ws.Hub
	Limiter  RateLimiter
	WSWrite  time.Duration
	DBHealth func(context.Context) error
}

// NewRouter assembles routes with dependencies.
func NewRouter(deps Deps) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   deps.Logger,
		auth:     deps.Auth,
		teams:    deps.Teams,
		reg:      deps.Reg,
		alloc:    deps.Alloc,
		coord:    deps.Coord,
		registry: deps.Registry,
		bcast:    deps.Bcast,
		hub:      deps.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  deps.Limiter,
		wsWrite:  deps.WSWrite,
		dbHealth: deps.DBHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/admin", r.audit("/auth/admin", r.withRateLimit("/auth/admin", rateLimitAdminLogin, rateWindowDefault, rateLimitKeyIP, r.handleAdminLogin)))
	r.mux.HandleFunc("/ws", r.withRateLimit("/ws", rateLimitWebsocket, rateWindowRealtime, rateLimitKeyIP, r.handleWS))
	r.mux.HandleFunc("/events", r.handleEvents)
	r.mux.HandleFunc("/domains", r.audit("/domains", r.withRateLimit("/domains", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handleDomains)))
	r.mux.HandleFunc("/hack/register", r.audit("/hack/register", r.withRateLimit("/hack/register", rateLimitRegister, rateWindowDefault, rateLimitKeyIP, r.handleRegister)))
	r.mux.HandleFunc("/hack/teams/count", r.audit("/hack/teams/count", r.withRateLimit("/hack/teams/count", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handleTeamCount)))
	r.mux.HandleFunc("/hack/students", r.audit("/hack/students", r.handlerAdminRate("/hack/students", rateLimitAdminWrite, rateWindowDefault, r.handleStudents)))
	r.mux.HandleFunc("/hack/team/", r.audit("/hack/team/", r.withRateLimit("/hack/team/", rateLimitTeamWrite, rateWindowDefault, rateLimitKeyIP, r.handleTeamSubroutes)))
	r.mux.HandleFunc("/hack/sector/", r.audit("/hack/sector/", r.handlerAdminRate("/hack/sector/", rateLimitAdminWrite, rateWindowDefault, r.handleSector)))
	r.mux.HandleFunc("/hack/issues", r.audit("/hack/issues", r.handlerAdminRate("/hack/issues", rateLimitAdminWrite, rateWindowDefault, r.handleIssues)))
	r.mux.HandleFunc("/judge/", r.audit("/judge/", r.withRateLimit("/judge/", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handleJudge)))
	r.mux.HandleFunc("/admin/reset-domains", r.audit("/admin/reset-domains", r.handlerAdminRate("/admin/reset-domains", rateLimitAdminWrite, rateWindowDefault, r.handleResetDomains)))
	r.mux.HandleFunc("/admin/clear-sessions", r.audit("/admin/clear-sessions", r.handlerAdminRate("/admin/clear-sessions", rateLimitAdminWrite, rateWindowDefault, r.handleClearSessions)))
	r.mux.HandleFunc("/admin/sessions", r.audit("/admin/sessions", r.handlerAdminRate("/admin/sessions", rateLimitAdminWrite, rateWindowDefault, r.handleSessions)))
}

func (r *Router) handleAdminLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	token, err := r.auth.Login(payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid admin credential")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (r *Router) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger, r.wsWrite)
	go r.coord.HandleConnection(client)
}

// handleEvents streams hub broadcasts over Server-Sent Events for clients
// that cannot hold a websocket, such as the projector view.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.hub.Register(client)
	defer func() {
		r.hub.Unregister(client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleDomains(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	views, err := r.alloc.ListViews(req.Context())
	if err != nil {
		r.internalError(w, "domain list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var input registration.RegisterInput
	if !decodeJSON(w, req, &input) {
		return
	}
	created, err := r.reg.Register(req.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrFull), errors.Is(err, registration.ErrClosed):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, registration.ErrDuplicateName):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, registration.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			r.internalError(w, "registration failed", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) handleTeamCount(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	status, err := r.reg.Status(req.Context())
	if err != nil {
		r.internalError(w, "registration status failed", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (r *Router) handleStudents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	page := queryInt(req, "page", 1)
	limit := queryInt(req, "limit", 0)
	roster, err := r.teams.List(req.Context(), page, limit)
	if err != nil {
		r.internalError(w, "team list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// handleTeamSubroutes dispatches everything under /hack/team/ by path shape.
func (r *Router) handleTeamSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/hack/team/")
	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		r.notFound(w)
		return
	}

	if segments[0] == "login" {
		if len(segments) != 2 || req.Method != http.MethodGet {
			r.notFound(w)
			return
		}
		r.handleTeamLogin(w, req, segments[1])
		return
	}

	teamID := segments[0]
	rest := segments[1:]
	switch {
	case len(rest) == 0:
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		r.handleTeamByID(w, req, teamID)
	case len(rest) == 1 && rest[0] == "verify":
		r.adminPost(w, req, func() { r.handleVerify(w, req, teamID) })
	case len(rest) == 2 && rest[0] == "review":
		r.adminPost(w, req, func() { r.handleReview(w, req, teamID, rest[1]) })
	case len(rest) == 2 && rest[0] == "game":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		r.handleGame(w, req, teamID, rest[1])
	case len(rest) == 1 && rest[0] == "score":
		r.adminPost(w, req, func() { r.handleInternalScore(w, req, teamID) })
	case len(rest) == 1 && rest[0] == "attendance":
		r.adminPost(w, req, func() { r.handleAttendance(w, req, teamID) })
	case len(rest) == 1 && rest[0] == "sector":
		r.adminPost(w, req, func() { r.handleSetSector(w, req, teamID) })
	case len(rest) == 1 && rest[0] == "domain":
		r.adminPost(w, req, func() { r.handleUpdateDomain(w, req, teamID) })
	case len(rest) == 1 && rest[0] == "issues":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		r.handleAddIssue(w, req, teamID)
	case len(rest) == 3 && rest[0] == "issues" && rest[2] == "resolve":
		r.adminPost(w, req, func() { r.handleResolveIssue(w, req, teamID, rest[1]) })
	default:
		r.notFound(w)
	}
}

// adminPost gates a subroute handler on POST plus a valid admin token.
func (r *Router) adminPost(w http.ResponseWriter, req *http.Request, handle func()) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if _, _, ok := r.ensureAdmin(w, req); !ok {
		return
	}
	handle()
}

func (r *Router) handleTeamLogin(w http.ResponseWriter, req *http.Request, credential string) {
	found, err := r.teams.LoginByCredential(req.Context(), credential)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no verified team matches this credential")
			return
		}
		r.internalError(w, "credential login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *Router) handleTeamByID(w http.ResponseWriter, req *http.Request, teamID string) {
	found, err := r.teams.GetByID(req.Context(), teamID)
	if err != nil {
		r.teamError(w, "team lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *Router) handleVerify(w http.ResponseWriter, req *http.Request, teamID string) {
	credential, err := r.teams.Verify(req.Context(), teamID)
	if err != nil {
		r.teamError(w, "verification failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"credential": credential})
}

func (r *Router) handleReview(w http.ResponseWriter, req *http.Request, teamID, round string) {
	var payload struct {
		Notes string `json:"notes"`
		Score int    `json:"score"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	var (
		updated any
		err     error
	)
	switch round {
	case "first":
		updated, err = r.teams.SubmitFirstReview(req.Context(), teamID, payload.Notes, payload.Score)
	case "second":
		updated, err = r.teams.SubmitSecondReview(req.Context(), teamID, payload.Notes, payload.Score)
	default:
		r.notFound(w)
		return
	}
	if err != nil {
		r.teamError(w, "review submit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleGame(w http.ResponseWriter, req *http.Request, teamID, game string) {
	var payload struct {
		Score int `json:"score"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	var (
		updated any
		err     error
	)
	switch game {
	case "memory":
		updated, err = r.teams.SubmitMemoryGame(req.Context(), teamID, payload.Score)
	case "puzzle":
		updated, err = r.teams.SubmitNumberPuzzle(req.Context(), teamID, payload.Score)
	case "bar":
		updated, err = r.teams.SubmitStopTheBar(req.Context(), teamID, payload.Score)
	default:
		r.notFound(w)
		return
	}
	if err != nil {
		r.teamError(w, "game submit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleInternalScore(w http.ResponseWriter, req *http.Request, teamID string) {
	var payload struct {
		Score int `json:"score"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	updated, err := r.teams.SubmitInternalScore(req.Context(), teamID, payload.Score)
	if err != nil {
		r.teamError(w, "internal score failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleAttendance(w http.ResponseWriter, req *http.Request, teamID string) {
	var payload struct {
		Round    int               `json:"round"`
		Statuses map[string]string `json:"statuses"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	updated, err := r.teams.SubmitAttendance(req.Context(), teamID, payload.Round, payload.Statuses)
	if err != nil {
		r.teamError(w, "attendance update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleSetSector(w http.ResponseWriter, req *http.Request, teamID string) {
	var payload struct {
		Sector string `json:"sector"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	updated, err := r.teams.SetSector(req.Context(), teamID, payload.Sector)
	if err != nil {
		r.teamError(w, "sector update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleUpdateDomain(w http.ResponseWriter, req *http.Request, teamID string) {
	var payload struct {
		Domain string `json:"domain"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	updated, err := r.teams.UpdateDomain(req.Context(), teamID, payload.Domain)
	if err != nil {
		r.teamError(w, "domain override failed", err)
		return
	}
	r.bcast.DomainsUpdated()
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleAddIssue(w http.ResponseWriter, req *http.Request, teamID string) {
	var payload struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	updated, err := r.teams.AddIssue(req.Context(), teamID, payload.Text)
	if err != nil {
		r.teamError(w, "issue report failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (r *Router) handleResolveIssue(w http.ResponseWriter, req *http.Request, teamID, issueID string) {
	updated, err := r.teams.ResolveIssue(req.Context(), teamID, issueID)
	if err != nil {
		r.teamError(w, "issue resolve failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleSector(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	sector := strings.Trim(strings.TrimPrefix(req.URL.Path, "/hack/sector/"), "/")
	if sector == "" {
		r.notFound(w)
		return
	}
	list, err := r.teams.BySector(req.Context(), sector)
	if err != nil {
		r.internalError(w, "sector list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (r *Router) handleIssues(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	list, err := r.teams.ListIssues(req.Context())
	if err != nil {
		r.internalError(w, "issue list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (r *Router) handleJudge(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(req.URL.Path, "/judge/"), "/")
	segments := strings.Split(trimmed, "/")
	if len(segments) != 2 || segments[1] != "teams" {
		r.notFound(w)
		return
	}
	list, err := r.teams.TeamsForJudge(req.Context(), segments[0])
	if err != nil {
		if errors.Is(err, team.ErrInvalidInput) {
			writeError(w, http.StatusNotFound, "unknown judge")
			return
		}
		r.internalError(w, "judge roster failed", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (r *Router) handleResetDomains(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if err := r.alloc.ResetAll(req.Context()); err != nil {
		r.internalError(w, "domain reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (r *Router) handleClearSessions(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	cleared := r.registry.Clear()
	r.logger.Info("all sessions cleared", "count", cleared)
	r.coord.AnnouncePresence()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func (r *Router) handleSessions(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": r.registry.Count(),
		"teams": r.registry.ActiveTeams(),
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// teamError maps service errors from team operations onto HTTP statuses.
func (r *Router) teamError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "team not found")
	case errors.Is(err, team.ErrInvalidInput), errors.Is(err, team.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, team.ErrReviewClosed), errors.Is(err, team.ErrGameClosed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, team.ErrAlreadyPlayed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		r.internalError(w, msg, err)
	}
}

func (r *Router) internalError(w http.ResponseWriter, msg string, err error) {
	r.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(req *http.Request, name string, fallback int) int {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = info.Role
			fields = append(fields, "subject", info.Subject)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
