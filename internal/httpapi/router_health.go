package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady requires a reachable store and a catalog that has loaded at
// least one entity; before that every name lookup would miss.
func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store != nil {
		if err := r.deps.Store.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	if r.deps.Catalog == nil || r.deps.Catalog.Snapshot().Len() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "entity catalog is empty"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	writeJSON(w, http.StatusOK, r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter))
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":              "hass-bridge",
		"environment":       r.deps.Config.Environment,
		"home_assistant":    r.deps.Config.HABaseURL,
		"webhook_id":        r.deps.Config.HAWebhookID,
		"discord_channel":   r.deps.Config.DiscordChannelID,
		"directory_path":    r.deps.Config.DirectoryPath,
		"refresh_schedule":  r.deps.Config.CatalogRefreshCron,
		"allowed_user_ids":  len(r.deps.Config.AllowedUserIDs),
		"directory_watched": r.deps.Config.WatchDirectory,
	})
}
