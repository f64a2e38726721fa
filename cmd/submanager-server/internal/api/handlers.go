// Package api provides HTTP handlers for the subscription manager REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/coregx/submanager"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler holds dependencies for API handlers.
type Handler struct {
	subscriptions *submanager.SubscriptionManager
	users         *submanager.UserManager
	authenticator *submanager.Authenticator
	logger        submanager.Logger
	metrics       *Metrics
	checks        map[string]HealthCheck
}

// NewHandler creates a new API handler.
func NewHandler(
	subscriptions *submanager.SubscriptionManager,
	users *submanager.UserManager,
	authenticator *submanager.Authenticator,
	logger submanager.Logger,
	metrics *Metrics,
) *Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		subscriptions: subscriptions,
		users:         users,
		authenticator: authenticator,
		logger:        logger,
		metrics:       metrics,
		checks:        make(map[string]HealthCheck),
	}
}

// AddHealthCheck registers a dependency checked by GET /health.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Routes builds the router with every endpoint.
func (h *Handler) Routes() http.Handler {
	router := httprouter.New()

	h.handle(router, http.MethodGet, "/topics", h.handleListTopics)
	h.handle(router, http.MethodPost, "/topics", h.handleCreateTopic)
	h.handle(router, http.MethodGet, "/topics/:id", h.handleGetTopic)
	h.handle(router, http.MethodPut, "/topics/:id", h.handleUpdateTopic)
	h.handle(router, http.MethodDelete, "/topics/:id", h.handleDeleteTopic)

	h.handle(router, http.MethodGet, "/subscriptions", h.handleListSubscriptions)
	h.handle(router, http.MethodPost, "/subscriptions", h.handleCreateSubscription)
	h.handle(router, http.MethodGet, "/subscriptions/:id", h.handleGetSubscription)
	h.handle(router, http.MethodPut, "/subscriptions/:id", h.handleUpdateSubscription)
	h.handle(router, http.MethodDelete, "/subscriptions/:id", h.handleDeleteSubscription)

	h.handle(router, http.MethodGet, "/users", h.handleListUsers)
	h.handle(router, http.MethodPost, "/users", h.handleCreateUser)
	h.handle(router, http.MethodGet, "/users/:id", h.handleGetUser)
	h.handle(router, http.MethodPut, "/users/:id", h.handleUpdateUser)
	h.handle(router, http.MethodDelete, "/users/:id", h.handleDeleteUser)

	router.GET("/health", h.metrics.instrument("/health", h.handleHealth))
	router.Handler(http.MethodGet, "/metrics", h.metrics.Handler())

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.respondStatus(w, http.StatusNotFound, "The requested URL was not found on the server")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.respondStatus(w, http.StatusMethodNotAllowed, "The method is not allowed for the requested URL")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		h.logger.Errorf("%s %s panicked: %v", r.Method, r.URL.Path, v)
		h.respondStatus(w, http.StatusInternalServerError, "The server has encountered an error during the request")
	}

	return loggingMiddleware(router, h.logger)
}

// authedHandle is an endpoint that runs on behalf of an authenticated caller.
type authedHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller)

func (h *Handler) handle(router *httprouter.Router, method, route string, next authedHandle) {
	router.Handle(method, route, h.metrics.instrument(route, h.authenticate(next)))
}

// authenticate resolves basic-auth credentials before calling next.
func (h *Handler) authenticate(next authedHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		username, password, ok := r.BasicAuth()
		if !ok {
			h.respondError(w, r, submanager.ErrInvalidCredentials)
			return
		}

		caller, err := h.authenticator.Authenticate(r.Context(), username, password)
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		next(w, r, ps, caller)
	}
}

// Topics

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller submanager.Caller) {
	topics, err := h.subscriptions.ListTopics(r.Context(), caller)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, topics)
}

func (h *Handler) handleCreateTopic(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller submanager.Caller) {
	var req submanager.TopicRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	topic, err := h.subscriptions.CreateTopic(r.Context(), caller, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, topic)
}

func (h *Handler) handleGetTopic(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	topic, err := h.subscriptions.GetTopic(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, topic)
}

func (h *Handler) handleUpdateTopic(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req submanager.TopicRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	topic, err := h.subscriptions.UpdateTopic(r.Context(), caller, id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, topic)
}

func (h *Handler) handleDeleteTopic(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.subscriptions.DeleteTopic(r.Context(), caller, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Subscriptions

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller submanager.Caller) {
	var filter submanager.SubscriptionFilter

	query := r.URL.Query()
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, r, submanager.NewError(submanager.ErrCodeValidation,
				fmt.Sprintf("active must be a boolean, got %q", raw)))
			return
		}
		filter.Active = &active
	}
	filter.Queue = query.Get("queue")

	subscriptions, err := h.subscriptions.ListSubscriptions(r.Context(), caller, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, subscriptions)
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller submanager.Caller) {
	var req submanager.SubscriptionRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	subscription, err := h.subscriptions.CreateSubscription(r.Context(), caller, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, subscription)
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	subscription, err := h.subscriptions.GetSubscription(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, subscription)
}

func (h *Handler) handleUpdateSubscription(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var upd submanager.SubscriptionUpdate
	if err := decode(r, &upd); err != nil {
		h.respondError(w, r, err)
		return
	}

	subscription, err := h.subscriptions.UpdateSubscription(r.Context(), caller, id, upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, subscription)
}

func (h *Handler) handleDeleteSubscription(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.subscriptions.DeleteSubscription(r.Context(), caller, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Users

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller submanager.Caller) {
	users, err := h.users.ListUsers(r.Context(), caller)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller submanager.Caller) {
	var req submanager.UserRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), caller, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.users.GetUser(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var upd submanager.UserUpdate
	if err := decode(r, &upd); err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), caller, id, upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller submanager.Caller) {
	id, err := pathID(ps)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.users.DeleteUser(r.Context(), caller, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// handleHealth handles GET /health. It does not require authentication.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()}
	status := http.StatusOK
	if len(h.checks) > 0 {
		health.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warnf("Health check %s failed: %v", name, err)
			health.Checks[name] = err.Error()
			health.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		health.Checks[name] = "ok"
	}

	h.respondJSON(w, status, health)
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return submanager.NewErrorWithCause(submanager.ErrCodeValidation, "invalid JSON body", err)
	}
	return nil
}

// pathID parses the :id route parameter.
func pathID(ps httprouter.Params) (int64, error) {
	raw := ps.ByName("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, submanager.NewError(submanager.ErrCodeValidation, fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger submanager.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
