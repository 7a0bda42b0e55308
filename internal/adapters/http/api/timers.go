package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/internal/domain/timer"
	"github.com/okian/dripcue/internal/domain/types"
)

// TimersHandler manages countdowns.
type TimersHandler struct {
	deps Dependencies
}

// NewTimersHandler creates a new timers handler.
func NewTimersHandler(deps Dependencies) *TimersHandler {
	return &TimersHandler{deps: deps}
}

// HandleList handles GET /timers requests.
func (h *TimersHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	entries, now := h.deps.Timers()
	out := types.TimerList{Timers: make([]types.Timer, 0, len(entries)), MaxActive: h.deps.MaxActiveTimers()}
	for _, e := range entries {
		out.Timers = append(out.Timers, types.NewTimer(e, now))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /timers requests.
func (h *TimersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req types.CreateTimerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.DropFactor == 0 {
		req.DropFactor = int(rate.DropFactor20)
	}
	p, ok := req.Prescription()
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: volume and duration must be valid", ErrBadRequest))
		return
	}

	e, err := h.deps.StartTimerFromCalculation(r.Context(), p, req.Label)
	switch {
	case errors.Is(err, timer.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded",
			fmt.Errorf("%w: at most %d timers can run at once", ErrCapacity, h.deps.MaxActiveTimers()))
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	_, now := h.deps.Timers()
	writeJSON(w, http.StatusCreated, types.NewTimer(e, now))
}

// HandleDelete handles DELETE /timers/{id} requests. Deleting an unknown id
// succeeds.
func (h *TimersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.deps.DeleteTimer(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
