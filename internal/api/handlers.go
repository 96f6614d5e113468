package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/optoma-core/internal/projector"
)

// healthCheckTimeout bounds each component check in the status handler.
const healthCheckTimeout = 3 * time.Second

// stateResponse is the response body for GET /projector.
type stateResponse struct {
	ProjectorID string               `json:"projector_id"`
	Power       projector.PowerState `json:"power"`
	Available   bool                 `json:"available"`
	Stale       bool                 `json:"stale"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Fields      map[string]string    `json:"fields"`
	Info        projector.DeviceInfo `json:"info"`
	LastError   string               `json:"last_error,omitempty"`
}

// handleGetState returns the current projector snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctrl.Snapshot()
	resp := stateResponse{
		ProjectorID: s.projectorID,
		Power:       snap.Power,
		Available:   snap.Available,
		Stale:       snap.Stale,
		UpdatedAt:   snap.UpdatedAt,
		Fields:      snap.Fields,
		Info:        snap.Info,
	}
	resp.LastError = snap.LastError
	writeJSON(w, http.StatusOK, resp)
}

// controlResponse describes one entry of the control table, annotated
// with the current value when known.
type controlResponse struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Kind    projector.Kind     `json:"kind"`
	Value   string             `json:"value,omitempty"`
	Options []projector.Option `json:"options,omitempty"`
	Min     int                `json:"min,omitempty"`
	Max     int                `json:"max,omitempty"`
	Step    int                `json:"step,omitempty"`
	Unit    string             `json:"unit,omitempty"`
}

// handleListControls returns the control table with current values.
func (s *Server) handleListControls(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctrl.Snapshot()

	controls := make([]controlResponse, 0, len(projector.Controls))
	for _, c := range projector.Controls {
		resp := controlResponse{
			ID:      c.ID,
			Name:    c.Name,
			Kind:    c.Kind,
			Options: c.Options,
			Min:     c.Min,
			Max:     c.Max,
			Step:    c.Step,
			Unit:    c.Unit,
		}
		if value, ok := snap.Field(c.StateKey); ok {
			resp.Value = value
		}
		controls = append(controls, resp)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"controls": controls,
		"count":    len(controls),
	})
}

// setControlRequest is the request body for POST /projector/controls/{id}.
// An absent value presses button and toggle controls.
type setControlRequest struct {
	Value string `json:"value"`
}

// handleSetControl applies a value to a control, or presses it when no
// value is given.
func (s *Server) handleSetControl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setControlRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	var err error
	if req.Value == "" {
		if ctl, lookupErr := projector.ControlByID(id); lookupErr == nil &&
			(ctl.Kind == projector.KindButton || ctl.Kind == projector.KindToggle) {
			err = s.ctrl.PressButton(r.Context(), id)
		} else {
			err = s.ctrl.SetControl(r.Context(), id, req.Value)
		}
	} else {
		err = s.ctrl.SetControl(r.Context(), id, req.Value)
	}
	if err != nil {
		s.writeControllerError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"control": id,
		"value":   req.Value,
		"status":  "accepted",
	})
}

// powerRequest is the request body for POST /projector/power.
type powerRequest struct {
	Action string `json:"action"`
}

// handlePower turns the projector on or off.
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var err error
	switch strings.ToLower(req.Action) {
	case "on":
		err = s.ctrl.PowerOn(r.Context())
	case "off":
		err = s.ctrl.PowerOff(r.Context())
	default:
		writeBadRequest(w, "action must be \"on\" or \"off\"")
		return
	}
	if err != nil {
		s.writeControllerError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"action": strings.ToLower(req.Action),
		"status": "accepted",
	})
}

// handleRefresh requests an immediate poll.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

// handleHistory returns recent state history entries.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "state history not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.Recent(r.Context(), s.projectorID, limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeInternalError(w, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleStatus reports per-component health.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.health))
	healthy := true

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			healthy = false
		} else {
			components[name] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// writeControllerError maps controller errors to HTTP responses.
func (s *Server) writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, projector.ErrUnknownControl):
		writeNotFound(w, err.Error())
	case errors.Is(err, projector.ErrInvalidValue):
		writeBadRequest(w, err.Error())
	case errors.Is(err, projector.ErrBlockedByTransition):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, projector.ErrTransport),
		errors.Is(err, projector.ErrTransportTimeout),
		errors.Is(err, projector.ErrGateTimeout),
		errors.Is(err, projector.ErrFallback):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		s.logger.Error("controller error", "error", err)
		writeInternalError(w, "command failed")
	}
}
