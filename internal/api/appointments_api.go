package api

import (
	"encoding/json"
	"net/http"

	"medslots/internal/availability"
	"medslots/internal/metrics"
	"medslots/internal/model"
)

// AppointmentRequest is the request body for POST /api/v1/appointments.
type AppointmentRequest struct {
	SpecialistID string `json:"specialist_id"`
	Start        string `json:"start"` // ISO-8601
	End          string `json:"end"`   // ISO-8601
	Status       string `json:"status,omitempty"`
}

// handleAppointments records or lists ledger entries.
// GET  /api/v1/appointments?specialist_id=
// POST /api/v1/appointments
func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("appointments")

	switch r.Method {
	case http.MethodGet:
		specialistID := r.URL.Query().Get("specialist_id")
		if specialistID == "" {
			writeError(w, http.StatusBadRequest, "specialist_id is required")
			return
		}
		list, err := s.appointments.ListAppointments(r.Context(), specialistID)
		if err != nil {
			s.logger.Error().Err(err).Msg("list appointments")
			writeError(w, http.StatusInternalServerError, "failed to list appointments")
			return
		}
		if list == nil {
			list = []model.ExistingAppointment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": list})

	case http.MethodPost:
		var req AppointmentRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.SpecialistID == "" {
			writeError(w, http.StatusBadRequest, "specialist_id is required")
			return
		}
		start, err := availability.ParseTimestamp(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start format; expected ISO-8601")
			return
		}
		end, err := availability.ParseTimestamp(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end format; expected ISO-8601")
			return
		}
		if !end.After(start) {
			writeError(w, http.StatusBadRequest, "end must be after start")
			return
		}

		appt := &model.ExistingAppointment{
			SpecialistID: req.SpecialistID,
			Start:        start.UTC(),
			End:          end.UTC(),
			Status:       req.Status,
		}
		if err := s.appointments.InsertAppointment(r.Context(), appt); err != nil {
			s.logger.Error().Err(err).Msg("insert appointment")
			writeError(w, http.StatusInternalServerError, "failed to record appointment")
			return
		}
		writeJSON(w, http.StatusCreated, appt)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
