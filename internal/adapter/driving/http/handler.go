// Package httphandler implements the REST API driving adapter.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/application"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// Version is reported by the JSON catalogue.
const Version = "1.0.0"

// Options carries the settings the handler needs beyond its services.
type Options struct {
	// AdminToken guards the admin routes. Empty disables them.
	AdminToken string

	// Development exposes internal error detail in responses.
	Development bool

	// RateLimitMax and RateLimitWindow are reported by the catalogue.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Ping reports store health. Nil means always healthy.
	Ping func(ctx context.Context) error

	// Metrics is mounted on /metrics when non-nil.
	Metrics http.Handler
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	enrich *application.EnrichService
	gate   *application.AccessGate
	keys   *application.KeyService
	usage  *application.UsageRecorder
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	docsPage []byte
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	enrich *application.EnrichService,
	gate *application.AccessGate,
	keys *application.KeyService,
	usage *application.UsageRecorder,
	opts Options,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		enrich:   enrich,
		gate:     gate,
		keys:     keys,
		usage:    usage,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		docsPage: renderDocsPage(),
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request ID, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/enrich/email",
		h.requireKey(h.rateLimit(h.recordUsage(model.OperationEnrichEmail, http.HandlerFunc(h.EnrichEmail)))))
	mux.Handle("POST /api/v1/enrich/domain",
		h.requireKey(h.rateLimit(h.recordUsage(model.OperationEnrichDomain, http.HandlerFunc(h.EnrichDomain)))))
	mux.Handle("GET /api/v1/dashboard/stats", h.requireKey(h.rateLimit(http.HandlerFunc(h.DashboardStats))))

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /api/v1/docs", h.rateLimit(http.HandlerFunc(h.Catalogue)))
	mux.Handle("GET /docs", h.rateLimit(http.HandlerFunc(h.Docs)))

	mux.Handle("POST /api/v1/admin/keys", h.requireAdmin(http.HandlerFunc(h.CreateKey)))
	mux.Handle("GET /api/v1/admin/keys", h.requireAdmin(http.HandlerFunc(h.ListKeys)))
	mux.Handle("DELETE /api/v1/admin/keys/{id}", h.requireAdmin(http.HandlerFunc(h.RevokeKey)))
	mux.Handle("GET /api/v1/admin/stats", h.requireAdmin(http.HandlerFunc(h.GlobalStats)))

	if h.opts.Metrics != nil {
		mux.Handle("GET /metrics", h.opts.Metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// EnrichEmail enriches the email address in the request body.
func (h *Handler) EnrichEmail(w http.ResponseWriter, r *http.Request) {
	var req EnrichEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		h.fail(w, r, fmt.Errorf("%w: email is required", application.ErrBadRequest))
		return
	}

	result, err := h.enrich.EnrichEmail(r.Context(), req.Email, req.Source)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// EnrichDomain enriches the domain in the request body.
func (h *Handler) EnrichDomain(w http.ResponseWriter, r *http.Request) {
	var req EnrichDomainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Domain) == "" {
		h.fail(w, r, fmt.Errorf("%w: domain is required", application.ErrBadRequest))
		return
	}

	result, err := h.enrich.EnrichDomain(r.Context(), req.Domain, req.Source)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// DashboardStats returns usage statistics for the calling account.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	if acct == nil {
		h.fail(w, r, application.ErrMissingKey)
		return
	}
	h.writeStats(w, r, &acct.ID)
}

// GlobalStats returns usage statistics across all accounts.
func (h *Handler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r, nil)
}

func (h *Handler) writeStats(w http.ResponseWriter, r *http.Request, accountID *int64) {
	days, err := parseDays(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stats, err := h.keys.Stats(r.Context(), accountID, days)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toStatsResponse(stats, application.ClampDays(days)))
}

// CreateKey issues a new API key. The plaintext key appears only in this response.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	issued, err := h.keys.Create(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := toKeyResponse(issued.Account)
	resp.APIKey = issued.Plaintext

	h.logger.Info("api key created", "account_id", issued.Account.ID, "name", issued.Account.Name)
	writeSuccess(w, http.StatusCreated, resp)
}

// ListKeys returns every account without secrets.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.keys.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]KeyResponse, 0, len(accounts))
	for _, acct := range accounts {
		resp = append(resp, toKeyResponse(acct))
	}

	writeSuccess(w, http.StatusOK, resp)
}

// RevokeKey deactivates the account with the given ID.
func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid key id", application.ErrBadRequest))
		return
	}

	if err := h.keys.Revoke(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("api key revoked", "account_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.opts.Ping != nil {
		if err := h.opts.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, HealthResponse{
		Status: status,
		Time:   formatTime(h.now()),
	})
}

// Catalogue returns the JSON endpoint catalogue.
func (h *Handler) Catalogue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildCatalogue(Version, h.enrich.Sources(), h.opts.RateLimitMax, h.opts.RateLimitWindow))
}

// Docs serves the rendered API reference.
func (h *Handler) Docs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.docsPage)
}

// fail writes err as an error response. Server-side failures are logged and
// their detail is hidden outside development.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := application.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	if kind == application.KindCanceled {
		h.logger.Info("client closed request",
			"path", r.URL.Path,
			"request_id", requestID(r.Context()),
		)
		writeError(w, status, kind, "request canceled")
		return
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"kind", kind,
			"request_id", requestID(r.Context()),
			"error", err,
		)
		if !h.opts.Development {
			message = genericMessage(kind)
		}
	}

	writeError(w, status, kind, message)
}

func genericMessage(kind application.ErrorKind) string {
	if kind == application.KindStoreUnavailable {
		return "storage temporarily unavailable"
	}
	return "internal server error"
}

// decodeJSON decodes the request body into v, rejecting bodies over the size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", application.ErrBadRequest)
		}
		return fmt.Errorf("%w: invalid request body", application.ErrBadRequest)
	}
	return nil
}

func parseDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return application.DefaultStatsDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: days must be an integer", application.ErrBadRequest)
	}
	return days, nil
}
