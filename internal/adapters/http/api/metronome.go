package api

import (
	"errors"
	"net/http"

	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/internal/domain/types"
)

// MetronomeHandler drives the beat scheduler.
type MetronomeHandler struct {
	deps Dependencies
}

// NewMetronomeHandler creates a new metronome handler.
func NewMetronomeHandler(deps Dependencies) *MetronomeHandler {
	return &MetronomeHandler{deps: deps}
}

// HandleState handles GET /metronome requests.
func (h *MetronomeHandler) HandleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.MetronomeState())
}

// HandleStart handles POST /metronome/start requests.
func (h *MetronomeHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req types.MetronomeStartRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	var err error
	if req.IntervalMs > 0 {
		err = h.deps.StartMetronomeInterval(req.IntervalMs)
	} else {
		p, ok := req.Prescription()
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "invalid_input", errors.New("volume, duration and drop factor must be valid"))
			return
		}
		_, err = h.deps.StartMetronome(p)
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.MetronomeState())
}

// HandleStop handles POST /metronome/stop requests.
func (h *MetronomeHandler) HandleStop(w http.ResponseWriter, _ *http.Request) {
	h.deps.StopMetronome()
	writeJSON(w, http.StatusOK, h.deps.MetronomeState())
}

// HandleInterval handles PUT /metronome/interval requests.
func (h *MetronomeHandler) HandleInterval(w http.ResponseWriter, r *http.Request) {
	var req types.IntervalRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	switch err := h.deps.SetMetronomeInterval(req.IntervalMs); {
	case errors.Is(err, beat.ErrNotRunning):
		writeError(w, http.StatusConflict, "not_running", err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.MetronomeState())
}

// HandleSound handles PUT /metronome/sound requests.
func (h *MetronomeHandler) HandleSound(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.deps.SetSoundEnabled)
}

// HandleVibration handles PUT /metronome/vibration requests.
func (h *MetronomeHandler) HandleVibration(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.deps.SetVibrationEnabled)
}

func (h *MetronomeHandler) toggle(w http.ResponseWriter, r *http.Request, set func(bool)) {
	var req types.ToggleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	set(req.Enabled)
	writeJSON(w, http.StatusOK, h.deps.MetronomeState())
}
