package jobs

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the repair job API.
func Router(store *JobStore) chi.Router {
	r := chi.NewRouter()

	r.Post("/", EnqueueJobHandler(store))
	r.Get("/", ListJobsHandler(store))
	r.Get("/{jobId}", GetJobHandler(store))
	r.Post("/{jobId}:cancel", CancelJobHandler(store))

	return r
}
