package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

// HealthHandler reports liveness and upload volume capacity.
type HealthHandler struct {
	uploadDir string
}

func NewHealthHandler(uploadDir string) *HealthHandler {
	return &HealthHandler{uploadDir: uploadDir}
}

type volumeUsage struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Uploads   *volumeUsage `json:"uploads,omitempty"`
}

// Welcome answers the API root.
func (h *HealthHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Welcome to Nukta API"})
}

// Health reports that the process is serving and how full the upload volume is.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "OK", Timestamp: time.Now().UTC()}

	usage, err := disk.UsageWithContext(r.Context(), h.uploadDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", h.uploadDir).Msg("Failed to read upload volume usage")
	} else {
		resp.Uploads = &volumeUsage{Total: usage.Total, Free: usage.Free, UsedPercent: usage.UsedPercent}
	}

	writeJSON(w, http.StatusOK, resp)
}
