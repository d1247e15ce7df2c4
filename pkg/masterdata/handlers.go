package masterdata

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sigeso/sst-registry/pkg/api"
	"github.com/sigeso/sst-registry/pkg/tenancy"
)

// Invalidator drops cached master-data entries after a write. Satisfied by
// snapshot.StoreResolver.
type Invalidator interface {
	Invalidate(kind, id string)
}

// NewRouter returns the HTTP routes for master data. Writes invalidate the
// resolver cache so documents created afterwards see the new display fields.
func NewRouter(store *Store, inv Invalidator) http.Handler {
	r := chi.NewRouter()

	r.Get("/trabajadores", func(w http.ResponseWriter, req *http.Request) {
		workers, err := store.ListWorkers(tenancy.CompanyFromContext(req.Context()))
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": workers, "total": len(workers)})
	})

	r.Post("/trabajadores", func(w http.ResponseWriter, req *http.Request) {
		var in WorkerRecord
		if err := api.DecodeJSON(req, &in); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		in.Company = tenancy.CompanyFromContext(req.Context())
		if err := store.SaveWorker(&in); err != nil {
			api.WriteError(w, err)
			return
		}
		if inv != nil {
			inv.Invalidate("worker", in.ID)
		}
		api.WriteJSON(w, http.StatusCreated, in)
	})

	r.Get("/trabajadores/{id}", func(w http.ResponseWriter, req *http.Request) {
		worker, err := store.GetWorker(chi.URLParam(req, "id"))
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, worker)
	})

	r.Post("/epp", func(w http.ResponseWriter, req *http.Request) {
		var in PPEItemRecord
		if err := api.DecodeJSON(req, &in); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		in.Company = tenancy.CompanyFromContext(req.Context())
		if err := store.SavePPEItem(&in); err != nil {
			api.WriteError(w, err)
			return
		}
		if inv != nil {
			inv.Invalidate("ppe", in.ID)
		}
		api.WriteJSON(w, http.StatusCreated, in)
	})

	r.Get("/epp/{id}", func(w http.ResponseWriter, req *http.Request) {
		item, err := store.GetPPEItem(chi.URLParam(req, "id"))
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, item)
	})

	r.Post("/empresas", func(w http.ResponseWriter, req *http.Request) {
		var in CompanyRecord
		if err := api.DecodeJSON(req, &in); err != nil {
			api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := store.SaveCompany(&in); err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, in)
	})

	r.Get("/empresas/{slug}", func(w http.ResponseWriter, req *http.Request) {
		company, err := store.GetCompanyBySlug(chi.URLParam(req, "slug"))
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, company)
	})

	return r
}
