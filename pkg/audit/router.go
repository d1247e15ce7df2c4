package audit

import (
	"github.com/go-chi/chi/v5"

	"github.com/sigeso/sst-registry/pkg/ledger"
)

// Router creates a chi.Router for the audit API.
func Router(store *ledger.AuditStore) chi.Router {
	r := chi.NewRouter()

	r.Get("/eventos", ListEventsHandler(store))
	r.Get("/documentos/{tipo}/{id}", ListDocumentEventsHandler(store))

	return r
}
