package api

import (
	"net/http"

	"calnotify/internal/metrics"
	"calnotify/internal/models"
	"calnotify/internal/service"
)

// GET /api/notifications/preferences
func (s *HTTPServer) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_preferences")
	uid := userID(r)

	prefs, err := s.prefs.Get(r.Context(), uid)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to get preferences")
		return
	}
	sounds, err := s.sounds.ListAvailable(r.Context(), uid)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to get preferences")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"preferences":     prefs,
		"availableSounds": sounds,
	})
}

// PUT /api/notifications/preferences
func (s *HTTPServer) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_preferences")

	var upd models.PreferencesUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeServiceError(w, &s.logger, err, "failed to update preferences")
		return
	}

	prefs, err := s.prefs.Update(r.Context(), userID(r), upd)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to update preferences")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Preferences updated successfully.",
		"preferences": prefs,
	})
}

// GET /api/notifications/sounds
func (s *HTTPServer) handleListSounds(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_sounds")

	sounds, err := s.sounds.ListAvailable(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to get sounds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sounds": sounds})
}

// DELETE /api/notifications/sounds/{id}
func (s *HTTPServer) handleDeleteSound(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_sound")

	id, err := service.ParseSoundRef(muxVar(r, "id"))
	if err == nil {
		err = s.sounds.DeleteCustom(r.Context(), userID(r), id)
	}
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to delete sound")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sound deleted."})
}
