package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/hass-bridge/internal/store"
)

type commandView struct {
	ID            string `json:"id"`
	IssuerID      string `json:"issuer_id,omitempty"`
	IssuerName    string `json:"issuer_name,omitempty"`
	Phrase        string `json:"phrase"`
	EntityID      string `json:"entity_id"`
	Command       string `json:"command"`
	Status        int    `json:"status"`
	Succeeded     bool   `json:"succeeded"`
	Error         string `json:"error,omitempty"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

func (r *router) handleCommands(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "command log is not configured"})
		return
	}
	query := req.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}
	failedOnly := false
	if raw := strings.TrimSpace(query.Get("failed")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed must be a boolean"})
			return
		}
		failedOnly = parsed
	}

	records, err := r.deps.Store.ListCommandLog(req.Context(), store.ListCommandLogInput{
		EntityID:   strings.TrimSpace(query.Get("entity_id")),
		IssuerID:   strings.TrimSpace(query.Get("issuer_id")),
		FailedOnly: failedOnly,
		Limit:      limit,
	})
	if err != nil {
		r.deps.Logger.Error("failed to list command log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	items := make([]commandView, 0, len(records))
	for _, record := range records {
		items = append(items, commandView{
			ID:            record.ID,
			IssuerID:      record.IssuerID,
			IssuerName:    record.IssuerName,
			Phrase:        record.Phrase,
			EntityID:      record.EntityID,
			Command:       record.Command,
			Status:        record.Status,
			Succeeded:     record.Succeeded,
			Error:         record.Error,
			CreatedAtUnix: record.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}
