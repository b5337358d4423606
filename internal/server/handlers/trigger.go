package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ohcupload/ohcupload/internal/core"
	"github.com/ohcupload/ohcupload/internal/core/engine"
	apperrors "github.com/ohcupload/ohcupload/internal/errors"
)

// Trigger starts an upload batch. With wait set the call blocks until the
// batch finishes and returns its summary; otherwise it returns once the batch
// has been handed off.
type Trigger interface {
	Trigger(ctx context.Context, wait bool) (*core.RunSummary, error)
}

// TriggerResponse is returned when a batch was started in the background.
type TriggerResponse struct {
	Status string `json:"status"`
}

// TriggerHandler maps a connectivity event from the host to one batch.
type TriggerHandler struct {
	Trigger Trigger
}

func (h *TriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	if h.Trigger == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("trigger not configured"))
		return
	}

	summary, err := h.Trigger.Trigger(r.Context(), wait)
	switch {
	case errors.Is(err, engine.ErrInactive):
		respondWithError(w, r, apperrors.WrapServiceUnavailable(r.Context(), err, "uploader is inactive"))
		return
	case errors.Is(err, engine.ErrRunInProgress):
		respondWithError(w, r, apperrors.WrapConflict(r.Context(), err, "upload batch already in progress"))
		return
	case err != nil:
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "upload batch failed"))
		return
	}

	if summary == nil {
		writeJSON(w, http.StatusAccepted, TriggerResponse{Status: "started"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
