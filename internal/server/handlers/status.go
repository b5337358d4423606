package handlers

import (
	"net/http"
	"time"

	"github.com/ohcupload/ohcupload/internal/core"
)

// StatusSource exposes the uploader state reported by /status.
type StatusSource interface {
	Active() bool
	Running() bool
	LastRun() *core.RunSummary
}

// QuotaSource exposes the live quota snapshot.
type QuotaSource interface {
	Snapshot() core.QuotaState
}

// QuotaView is the JSON form of the quota snapshot.
type QuotaView struct {
	UploadsThisWindow int        `json:"uploads_this_window"`
	HourlyCap         int        `json:"hourly_cap"`
	WindowStart       time.Time  `json:"window_start"`
	LastSubmissionAt  *time.Time `json:"last_submission_at,omitempty"`
	CooldownActive    bool       `json:"cooldown_active"`
}

// StatusResponse is returned by /status.
type StatusResponse struct {
	Active  bool             `json:"active"`
	Running bool             `json:"running"`
	Quota   QuotaView        `json:"quota"`
	LastRun *core.RunSummary `json:"last_run,omitempty"`
}

// StatusHandler reports uploader readiness, quota use and the last batch.
type StatusHandler struct {
	Source    StatusSource
	Quota     QuotaSource
	HourlyCap int
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{}
	if h.Source != nil {
		resp.Active = h.Source.Active()
		resp.Running = h.Source.Running()
		resp.LastRun = h.Source.LastRun()
	}
	if h.Quota != nil {
		snap := h.Quota.Snapshot()
		resp.Quota = QuotaView{
			UploadsThisWindow: snap.UploadsThisWindow,
			HourlyCap:         h.HourlyCap,
			WindowStart:       snap.WindowStart,
			CooldownActive:    snap.CooldownActive,
		}
		if !snap.LastSubmissionAt.IsZero() {
			last := snap.LastSubmissionAt
			resp.Quota.LastSubmissionAt = &last
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
