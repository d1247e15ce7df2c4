package jobs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sigeso/sst-registry/pkg/api"
	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/tenancy"
)

// EnqueueJobHandler handles POST /reparaciones. The body names the scope to
// repair; the company comes from tenant resolution. Re-posting the same
// scope for a company while a job is pending returns the pending job.
func EnqueueJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Scope string `json:"alcance"`
		}
		if err := api.DecodeJSON(r, &in); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if in.Scope == "" {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "alcance is required"})
			return
		}

		company := tenancy.CompanyFromContext(r.Context())
		job, err := store.Enqueue(&RepairJob{
			ID:             uuid.NewString(),
			Company:        company,
			Scope:          in.Scope,
			RequestedBy:    authz.ActorFromContext(r.Context()),
			RequestedAt:    time.Now(),
			IdempotencyKey: company + "/" + in.Scope,
		})
		if err != nil {
			api.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		api.WriteJSON(w, http.StatusAccepted, jobToResponse(job))
	}
}

// GetJobHandler handles GET /reparaciones/{jobId}.
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		job, err := store.Get(jobID)
		if err != nil {
			api.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if job == nil {
			api.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "job " + jobID + " not found"})
			return
		}
		api.WriteJSON(w, http.StatusOK, jobToResponse(job))
	}
}

// ListJobsHandler handles GET /reparaciones.
// Query params: alcance, estado, solicitante, pageSize, pageToken.
func ListJobsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := JobListFilter{
			Company:     tenancy.CompanyFromContext(r.Context()),
			Scope:       r.URL.Query().Get("alcance"),
			State:       r.URL.Query().Get("estado"),
			RequestedBy: r.URL.Query().Get("solicitante"),
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := store.List(filter, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			api.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		jobs := make([]jobResponse, len(records))
		for i := range records {
			jobs[i] = jobToResponse(&records[i])
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"items":         jobs,
			"nextPageToken": nextToken,
			"total":         total,
		})
	}
}

// CancelJobHandler handles POST /reparaciones/{jobId}:cancel.
func CancelJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if err := store.Cancel(jobID); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "canceled",
			"jobId":  jobID,
		})
	}
}

// jobResponse is the API shape for a repair job.
type jobResponse struct {
	ID              string `json:"id"`
	Company         string `json:"empresa"`
	Scope           string `json:"alcance"`
	RequestedBy     string `json:"solicitante"`
	RequestedAt     string `json:"fecha_solicitud"`
	State           string `json:"estado"`
	Message         string `json:"mensaje,omitempty"`
	StartedAt       string `json:"fecha_inicio,omitempty"`
	FinishedAt      string `json:"fecha_fin,omitempty"`
	AttemptCount    int    `json:"intentos"`
	LastError       string `json:"ultimo_error,omitempty"`
	RecordsRepaired int    `json:"registros_reparados,omitempty"`
	DurationMs      int64  `json:"duracion_ms,omitempty"`
}

func jobToResponse(job *RepairJob) jobResponse {
	resp := jobResponse{
		ID:              job.ID,
		Company:         job.Company,
		Scope:           job.Scope,
		RequestedBy:     job.RequestedBy,
		RequestedAt:     job.RequestedAt.Format(time.RFC3339),
		State:           string(job.State),
		Message:         job.Message,
		AttemptCount:    job.AttemptCount,
		LastError:       job.LastError,
		RecordsRepaired: job.RecordsRepaired,
		DurationMs:      job.DurationMs,
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
