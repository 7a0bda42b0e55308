// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/internal/domain/timer"
	"github.com/okian/dripcue/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Calculate(p rate.Prescription) (rate.Cadence, bool)

	StartMetronome(p rate.Prescription) (rate.Cadence, error)
	StartMetronomeInterval(intervalMs float64) error
	StopMetronome()
	SetMetronomeInterval(intervalMs float64) error
	SetSoundEnabled(on bool)
	SetVibrationEnabled(on bool)
	MetronomeState() types.MetronomeState

	StartTimerFromCalculation(ctx context.Context, p rate.Prescription, label string) (timer.Entry, error)
	Timers() ([]timer.Entry, time.Time)
	DeleteTimer(ctx context.Context, id string) bool
	MaxActiveTimers() int
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	calcHandler      *CalcHandler
	metronomeHandler *MetronomeHandler
	timersHandler    *TimersHandler
	pulse            http.Handler
}

// NewServer creates a new API server with all handlers. pulse serves the
// beat stream for browsers and may be nil.
func NewServer(deps Dependencies, statsProvider StatsProvider, pulse http.Handler) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		calcHandler:      NewCalcHandler(deps),
		metronomeHandler: NewMetronomeHandler(deps),
		timersHandler:    NewTimersHandler(deps),
		pulse:            pulse,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /calc", MetricsMiddleware(s.calcHandler.HandleCalc, "calc"))

	mux.HandleFunc("GET /metronome", MetricsMiddleware(s.metronomeHandler.HandleState, "metronome"))
	mux.HandleFunc("POST /metronome/start", MetricsMiddleware(s.metronomeHandler.HandleStart, "metronome_start"))
	mux.HandleFunc("POST /metronome/stop", MetricsMiddleware(s.metronomeHandler.HandleStop, "metronome_stop"))
	mux.HandleFunc("PUT /metronome/interval", MetricsMiddleware(s.metronomeHandler.HandleInterval, "metronome_interval"))
	mux.HandleFunc("PUT /metronome/sound", MetricsMiddleware(s.metronomeHandler.HandleSound, "metronome_sound"))
	mux.HandleFunc("PUT /metronome/vibration", MetricsMiddleware(s.metronomeHandler.HandleVibration, "metronome_vibration"))

	mux.HandleFunc("GET /timers", MetricsMiddleware(s.timersHandler.HandleList, "timers"))
	mux.HandleFunc("POST /timers", MetricsMiddleware(s.timersHandler.HandleCreate, "timers_create"))
	mux.HandleFunc("DELETE /timers/{id}", MetricsMiddleware(s.timersHandler.HandleDelete, "timers_delete"))

	if s.pulse != nil {
		mux.Handle("GET /pulse", s.pulse)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
