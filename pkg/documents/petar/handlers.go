package petar

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sigeso/sst-registry/pkg/api"
	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/tenancy"
)

// NewRouter returns the HTTP routes for PETAR permits.
func NewRouter(svc *Service) http.Handler {
	r := chi.NewRouter()

	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		var in CreateInput
		if err := api.DecodeJSON(req, &in); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		doc, err := svc.Create(req.Context(),
			tenancy.CompanyFromContext(req.Context()),
			authz.ActorFromContext(req.Context()), in)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, doc)
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		recs, err := svc.List(req.Context(),
			tenancy.CompanyFromContext(req.Context()),
			req.URL.Query().Get("estado"))
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": recs, "total": len(recs)})
	})

	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		doc, err := svc.Get(req.Context(),
			tenancy.CompanyFromContext(req.Context()), chi.URLParam(req, "id"))
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, doc)
	})

	r.Put("/{id}", func(w http.ResponseWriter, req *http.Request) {
		var in UpdateInput
		if err := api.DecodeJSON(req, &in); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		doc, err := svc.Update(req.Context(),
			tenancy.CompanyFromContext(req.Context()), chi.URLParam(req, "id"),
			authz.ActorFromContext(req.Context()), in)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, doc)
	})

	r.Post("/{id}/transiciones", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Estado string `json:"estado"`
		}
		if err := api.DecodeJSON(req, &in); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		id, _ := authz.IdentityFromContext(req.Context())
		doc, err := svc.Transition(req.Context(),
			tenancy.CompanyFromContext(req.Context()), chi.URLParam(req, "id"),
			lifecycle.State(in.Estado), id)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, doc)
	})

	r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := svc.Delete(req.Context(),
			tenancy.CompanyFromContext(req.Context()), chi.URLParam(req, "id")); err != nil {
			api.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
