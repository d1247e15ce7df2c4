package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sigeso/sst-registry/pkg/api"
	"github.com/sigeso/sst-registry/pkg/ledger"
)

// ListEventsHandler handles GET /auditoria/eventos.
// Query params: tipo, pageSize, pageToken.
func ListEventsHandler(store *ledger.AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, nextToken, total, err := store.ListAll(
			api.PageSize(r, 20),
			r.URL.Query().Get("pageToken"),
			r.URL.Query().Get("tipo"))
		if err != nil {
			api.WriteError(w, err)
			return
		}

		events := make([]eventResponse, len(records))
		for i := range records {
			events[i] = toResponse(&records[i])
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"items":         events,
			"nextPageToken": nextToken,
			"total":         total,
		})
	}
}

// ListDocumentEventsHandler handles GET /auditoria/documentos/{tipo}/{id}.
func ListDocumentEventsHandler(store *ledger.AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, nextToken, total, err := store.ListByDocument(
			chi.URLParam(r, "tipo"),
			chi.URLParam(r, "id"),
			api.PageSize(r, 20),
			r.URL.Query().Get("pageToken"))
		if err != nil {
			api.WriteError(w, err)
			return
		}

		events := make([]eventResponse, len(records))
		for i := range records {
			events[i] = toResponse(&records[i])
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"items":         events,
			"nextPageToken": nextToken,
			"total":         total,
		})
	}
}

// eventResponse is the API shape for an audit event.
type eventResponse struct {
	ID           string         `json:"id"`
	Company      string         `json:"empresa"`
	EventType    string         `json:"tipo_evento"`
	Actor        string         `json:"actor"`
	DocumentType string         `json:"tipo_documento,omitempty"`
	DocumentID   string         `json:"documento_id,omitempty"`
	DocumentCode string         `json:"codigo,omitempty"`
	Action       string         `json:"accion,omitempty"`
	Outcome      string         `json:"resultado"`
	Reason       string         `json:"motivo,omitempty"`
	OldValue     map[string]any `json:"valor_anterior,omitempty"`
	NewValue     map[string]any `json:"valor_nuevo,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	StatusCode   int            `json:"status_code,omitempty"`
	CreatedAt    string         `json:"fecha"`
}

func toResponse(rec *ledger.AuditEventRecord) eventResponse {
	return eventResponse{
		ID:           rec.ID,
		Company:      rec.Company,
		EventType:    rec.EventType,
		Actor:        rec.Actor,
		DocumentType: rec.DocumentType,
		DocumentID:   rec.DocumentID,
		DocumentCode: rec.DocumentCode,
		Action:       rec.Action,
		Outcome:      rec.Outcome,
		Reason:       rec.Reason,
		OldValue:     map[string]any(rec.OldValue),
		NewValue:     map[string]any(rec.NewValue),
		RequestID:    rec.RequestID,
		StatusCode:   rec.StatusCode,
		CreatedAt:    rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
