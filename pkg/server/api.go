package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
	"github.com/NERVsystems/ecotripmcp/pkg/tools"
)

// APIHandler exposes the calculator as plain JSON over HTTP for clients
// that do not speak MCP.
type APIHandler struct {
	calc   *tools.Calculator
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewAPIHandler serves /api/modes, /api/estimate and /api/distance.
func NewAPIHandler(calc *tools.Calculator, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &APIHandler{
		calc:   calc,
		logger: logger.With("component", "api"),
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("/api/modes", h.handleModes)
	h.mux.HandleFunc("/api/estimate", h.handleEstimate)
	h.mux.HandleFunc("/api/distance", h.handleDistance)
	return h
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		h.writeError(w, r, core.NewError(core.ErrInvalidRequest, "method not allowed"), http.StatusMethodNotAllowed)
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *APIHandler) handleModes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.calc.ListModes())
}

func (h *APIHandler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	in, err := parseTripQuery(r.URL.Query())
	if err != nil {
		h.writeMCPError(w, r, err)
		return
	}

	footprint, err := h.calc.Calculate(r.Context(), in)
	if err != nil {
		h.writeMCPError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, footprint)
}

func (h *APIHandler) handleDistance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	km, err := h.calc.LookupDistance(r.Context(), from, to)
	if err != nil {
		h.writeMCPError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, tools.TripDistance{
		From:       from,
		To:         to,
		DistanceKm: km,
		Display:    fmt.Sprintf("%.1f km", km),
		Source:     h.calc.DistanceSource(),
	})
}

// parseTripQuery reads the calculate_carbon_footprint arguments from a
// query string. Absent numeric parameters stay nil so the calculator applies
// its defaults.
func parseTripQuery(q url.Values) (tools.TripInput, error) {
	in := tools.TripInput{
		From: q.Get("from"),
		To:   q.Get("to"),
		Mode: q.Get("mode"),
	}

	if v := q.Get("passengers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, core.NewValidationError(core.ErrInvalidParameter,
				fmt.Sprintf("passengers must be a whole number, got %q", v)).WithQuery("passengers")
		}
		in.Passengers = &n
	}

	if v := q.Get("round_trip"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return in, core.NewValidationError(core.ErrInvalidParameter,
				fmt.Sprintf("round_trip must be true or false, got %q", v)).WithQuery("round_trip")
		}
		in.RoundTrip = b
	}

	if v := q.Get("distance_km"); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, core.NewValidationError(core.ErrInvalidParameter,
				fmt.Sprintf("distance_km must be a number, got %q", v)).WithQuery("distance_km")
		}
		in.DistanceKm = &km
	}

	return in, nil
}

func (h *APIHandler) writeMCPError(w http.ResponseWriter, r *http.Request, err error) {
	var mcpErr *core.MCPError
	if !errors.As(err, &mcpErr) {
		mcpErr = core.NewError(core.ErrInternalError, err.Error())
	}
	h.writeError(w, r, mcpErr, mcpErr.HTTPStatus())
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, mcpErr *core.MCPError, status int) {
	h.logger.Warn("api request failed",
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
		"code", mcpErr.Code,
		"status", status,
		"error", mcpErr.Message)
	h.writeJSON(w, r, status, map[string]any{"error": mcpErr})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode api response", "path", r.URL.Path, "error", err)
	}
}
