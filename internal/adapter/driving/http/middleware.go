package httphandler

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/leadenrich/internal/application"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

const (
	headerAPIKey    = "X-API-Key"
	headerRequestID = "X-Request-ID"

	// maxBodyBytes caps request bodies on every JSON route.
	maxBodyBytes = 64 << 10
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAccount
)

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// requestIDMiddleware propagates the caller's X-Request-ID or assigns a new
// one, and echoes it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", requestID(r.Context()),
		)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"path", r.URL.Path,
					"request_id", requestID(r.Context()),
				)
				writeError(w, http.StatusInternalServerError, application.KindInternal, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requireKey authenticates the X-API-Key header and stores the account on
// the request context.
func (h *Handler) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, err := h.gate.Authenticate(r.Context(), r.Header.Get(headerAPIKey))
		if err != nil {
			h.fail(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxAccount, acct)))
	})
}

func accountFrom(ctx context.Context) *model.Account {
	acct, _ := ctx.Value(ctxAccount).(*model.Account)
	return acct
}

// rateLimit counts the request against the caller's account, or against the
// remote address when the route is anonymous.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := application.AddrLimitKey(remoteIP(r))
		if acct := accountFrom(r.Context()); acct != nil {
			key = application.AccountLimitKey(acct.ID)
		}

		decision, err := h.gate.Allow(r.Context(), key)
		if decision.Limit > 0 {
			setRateLimitHeaders(w, decision)
		}
		if err != nil {
			retry := decision.RetryAfter(h.now())
			w.Header().Set("Retry-After", strconv.Itoa(int((retry+time.Second-1)/time.Second)))
			h.fail(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d model.RateDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// remoteIP returns the host part of RemoteAddr. Forwarding headers are not
// trusted.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// recordUsage appends a usage record for operation once the wrapped handler
// has written its response. Only authenticated requests are recorded.
func (h *Handler) recordUsage(operation string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			h.fail(w, r, application.ErrBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		acct := accountFrom(r.Context())
		if acct == nil {
			return
		}

		rec := model.UsageRecord{
			AccountID:      &acct.ID,
			Endpoint:       operation,
			ResponseStatus: sw.status,
			CreatedAt:      h.now(),
		}
		if len(body) <= maxBodyBytes && json.Valid(body) {
			rec.RequestData = body
		}
		h.usage.Record(rec)
	})
}

// requireAdmin checks the bearer token against the configured admin token.
// Admin routes are refused outright when no token is configured.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.AdminToken == "" {
			writeError(w, http.StatusUnauthorized, application.KindUnauthorized, "admin API disabled")
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, application.KindUnauthorized, "invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
