package api

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/models"
)

// respondJSON writes response as the standard envelope, stamping an
// ETag so downstream caches can revalidate.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("api: failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", generateETag(data))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respondError writes an error envelope with the given HTTP status and
// machine-readable code. err is logged but never echoed to the client.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Err(err).Str("code", code).Msg("api: request failed")
	}
	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message},
	})
}

func generateETag(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf(`"%x"`, h.Sum64())
}

// getIntParam reads a query parameter as an int, falling back to
// defaultValue when absent or unparsable.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
