package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"medslots/internal/availability"
	"medslots/internal/export"
	"medslots/internal/metrics"
	"medslots/internal/model"
	"medslots/internal/slots"
	"medslots/internal/store"
)

const (
	// MaxAvailabilityDaysRange is the maximum number of days allowed in one request.
	MaxAvailabilityDaysRange = 90
)

// GenerateRequest is the request body for POST /api/v1/slots/generate.
type GenerateRequest struct {
	ClinicID        string `json:"clinic_id"`
	SpecialistID    string `json:"specialist_id"`
	ServiceOptionID string `json:"service_option_id"`
	From            string `json:"from"` // ISO-8601
	To              string `json:"to"`   // ISO-8601
}

// SlotsResponse lists slots from one source.
type SlotsResponse struct {
	Source string                   `json:"source"`
	Slots  []model.AvailabilitySlot `json:"slots"`
	Period *Period                  `json:"period,omitempty"`
}

// Period echoes the queried range.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// handleGenerate generates slots into the canonical collection.
// POST /api/v1/slots/generate
func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("generate")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req GenerateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ClinicID == "" || req.SpecialistID == "" || req.ServiceOptionID == "" {
		writeError(w, http.StatusBadRequest, "clinic_id, specialist_id and service_option_id are required")
		return
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Generate(r.Context(), slots.Request{
		ClinicID:        req.ClinicID,
		SpecialistID:    req.SpecialistID,
		ServiceOptionID: req.ServiceOptionID,
		From:            from,
		To:              to,
	})
	switch {
	case errors.Is(err, availability.ErrSettingsNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("generate slots")
		writeError(w, http.StatusInternalServerError, "failed to generate slots")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSlots returns every slot for a specialist, clinic and service option.
// GET /api/v1/slots?specialist_id=&clinic_id=&service_option_id=[&source=]
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	ids, err := requiredIDs(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := sourceParam(q)
	result, err := s.service.SlotsFromSource(r.Context(), source, ids.SpecialistID, ids.ClinicID, ids.ServiceOptionID)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{Source: source, Slots: nonNil(result)})
}

// handleAvailability returns slots with start >= from and end <= to.
// GET /api/v1/availability?clinic_id=&specialist_id=&service_option_id=&from=&to=[&source=]
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	source, query, ok := s.availabilityQuery(w, r)
	if !ok {
		return
	}

	result, err := s.service.Query(r.Context(), source, query)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		Source: source,
		Slots:  nonNil(result),
		Period: &Period{From: query.From, To: query.To},
	})
}

// handleExport renders the availability query as an xlsx attachment.
// GET /api/v1/availability/export?...same parameters as /api/v1/availability
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	source, query, ok := s.availabilityQuery(w, r)
	if !ok {
		return
	}

	result, err := s.service.Query(r.Context(), source, query)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	book, err := export.WriteSlots(result, s.cfg.Location)
	if err != nil {
		s.logger.Error().Err(err).Msg("build availability export")
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}
	defer book.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
	w.WriteHeader(http.StatusOK)
	if err := book.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("write availability export")
	}
}

// handleSources lists the registered slot sources.
// GET /api/v1/sources
func (s *HTTPServer) handleSources(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sources")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sources": s.service.SourceNames()})
}

func (s *HTTPServer) availabilityQuery(w http.ResponseWriter, r *http.Request) (string, store.Query, bool) {
	q := r.URL.Query()
	ids, err := requiredIDs(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", store.Query{}, false
	}

	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", store.Query{}, false
	}

	ids.From = from
	ids.To = to
	return sourceParam(q), ids, true
}

func (s *HTTPServer) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, availability.ErrUnknownSource) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error().Err(err).Msg("query availability")
	writeError(w, http.StatusInternalServerError, "failed to query availability")
}

func requiredIDs(q url.Values) (store.Query, error) {
	ids := store.Query{
		ClinicID:        q.Get("clinic_id"),
		SpecialistID:    q.Get("specialist_id"),
		ServiceOptionID: q.Get("service_option_id"),
	}
	if ids.ClinicID == "" || ids.SpecialistID == "" || ids.ServiceOptionID == "" {
		return ids, fmt.Errorf("clinic_id, specialist_id and service_option_id are required")
	}
	return ids, nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to are required")
	}
	from, err := availability.ParseTimestamp(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from format; expected ISO-8601")
	}
	to, err := availability.ParseTimestamp(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to format; expected ISO-8601")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be before or equal to to")
	}
	if err := availability.ValidateRange(from, to, MaxAvailabilityDaysRange); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range exceeds maximum of %d days", MaxAvailabilityDaysRange)
	}
	return from, to, nil
}

func sourceParam(q url.Values) string {
	if src := q.Get("source"); src != "" {
		return src
	}
	return availability.EngineSource
}

func nonNil(in []model.AvailabilitySlot) []model.AvailabilitySlot {
	if in == nil {
		return []model.AvailabilitySlot{}
	}
	return in
}
