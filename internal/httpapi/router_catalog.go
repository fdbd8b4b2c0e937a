package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dwizi/hass-bridge/internal/names"
	"github.com/dwizi/hass-bridge/internal/store"
)

type refreshView struct {
	Trigger       string `json:"trigger"`
	Entities      int    `json:"entities"`
	Error         string `json:"error,omitempty"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

func (r *router) handleCatalog(w http.ResponseWriter, req *http.Request) {
	if r.deps.Catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "catalog is not configured"})
		return
	}
	snapshot := r.deps.Catalog.Snapshot()
	categories := map[string]int{}
	for _, entity := range snapshot.Entities() {
		categories[entity.Category]++
	}
	payload := map[string]any{
		"entities":   snapshot.Len(),
		"categories": categories,
	}
	if refreshedAt := snapshot.RefreshedAt(); !refreshedAt.IsZero() {
		payload["refreshed_at_unix"] = refreshedAt.Unix()
	}
	if r.deps.Store != nil {
		latest, err := r.deps.Store.LatestCatalogRefresh(req.Context())
		switch {
		case err == nil:
			payload["last_refresh"] = refreshView{
				Trigger:       latest.Trigger,
				Entities:      latest.Entities,
				Error:         latest.Error,
				CreatedAtUnix: latest.CreatedAt.Unix(),
			}
		case errors.Is(err, store.ErrNoCatalogRefresh):
		default:
			r.deps.Logger.Error("failed to load latest catalog refresh", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

type resolutionView struct {
	Phrase     string          `json:"phrase"`
	Source     string          `json:"source,omitempty"`
	EntityIDs  []string        `json:"entity_ids"`
	Candidates []candidateView `json:"candidates,omitempty"`
}

type candidateView struct {
	EntityID string `json:"entity_id"`
	Label    string `json:"label"`
}

// handleResolve previews what a switch command would target without sending
// anything to Home Assistant.
func (r *router) handleResolve(w http.ResponseWriter, req *http.Request) {
	query := strings.TrimSpace(req.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	if r.deps.Resolver == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "resolver is not configured"})
		return
	}
	phrases, err := names.ExpandNumericSuffix(query)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	items := make([]resolutionView, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		resolution := r.deps.Resolver.ResolveTarget(phrase)
		view := resolutionView{
			Phrase:    phrase,
			Source:    resolution.Source,
			EntityIDs: resolution.EntityIDs,
		}
		if view.EntityIDs == nil {
			view.EntityIDs = []string{}
		}
		for _, candidate := range resolution.Candidates {
			view.Candidates = append(view.Candidates, candidateView{EntityID: candidate.ID, Label: candidate.Label})
		}
		items = append(items, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"items": items,
		"count": len(items),
	})
}
