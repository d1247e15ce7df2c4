package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/tenancy"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware captures audit events for mutating requests. It wraps the
// ResponseWriter to capture the status code, then appends an
// AuditEventRecord after the handler completes.
func Middleware(store *ledger.AuditStore, cfg *AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !isAuditedEndpoint(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == "rejected" && !cfg.LogDenied {
				return
			}

			ctx := r.Context()
			actor := "anonymous"
			if id, ok := authz.IdentityFromContext(ctx); ok {
				actor = id.User
			}

			event := &ledger.AuditEventRecord{
				ID:           uuid.NewString(),
				Company:      tenancy.CompanyFromContext(ctx),
				EventType:    "http",
				Actor:        actor,
				DocumentType: extractDocumentType(r.URL.Path),
				DocumentID:   extractDocumentID(r.URL.Path),
				Action:       extractAction(r.Method, r.URL.Path),
				Outcome:      outcome,
				RequestID:    middleware.GetReqID(ctx),
				StatusCode:   capture.statusCode,
				CreatedAt:    startTime,
				NewValue: ledger.JSONAny{
					"method":   r.Method,
					"path":     r.URL.Path,
					"duration": time.Since(startTime).String(),
				},
			}

			// Best-effort write: the request already succeeded or failed on
			// its own merits.
			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event",
					"error", err, "requestID", event.RequestID)
			}
		})
	}
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusForbidden:
		return "rejected"
	default:
		return "failure"
	}
}
