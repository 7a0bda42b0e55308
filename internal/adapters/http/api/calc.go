package api

import (
	"errors"
	"net/http"

	"github.com/okian/dripcue/internal/domain/types"
)

// CalcHandler serves the drip-rate calculator.
type CalcHandler struct {
	deps Dependencies
}

// NewCalcHandler creates a new calculator handler.
func NewCalcHandler(deps Dependencies) *CalcHandler {
	return &CalcHandler{deps: deps}
}

// HandleCalc handles POST /calc requests. An input with no cadence is a 422
// so clients can tell "fix the form" from a malformed request.
func (h *CalcHandler) HandleCalc(w http.ResponseWriter, r *http.Request) {
	var req types.CalcRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, ok := req.Prescription()
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", errors.New("volume, duration and drop factor must be valid"))
		return
	}
	c, ok := h.deps.Calculate(p)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", errors.New("no cadence for this prescription"))
		return
	}
	writeJSON(w, http.StatusOK, types.NewCalcResponse(p, c, req.VolumeMl.String()))
}
