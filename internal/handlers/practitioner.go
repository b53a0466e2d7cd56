package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sangha-backend/internal/models"
	"sangha-backend/internal/services"
)

type PractitionerHandler struct {
	practitioners *services.PractitionerService
}

func NewPractitionerHandler(practitioners *services.PractitionerService) *PractitionerHandler {
	return &PractitionerHandler{practitioners: practitioners}
}

// Create registers a practitioner. The body is optional; an empty body gets a generated id.
func (h *PractitionerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePractitionerRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	report, created, err := h.practitioners.CreatePractitioner(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, report)
}

func (h *PractitionerHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.practitioners.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PractitionerHandler) UpdateInvolved(w http.ResponseWriter, r *http.Request) {
	var req models.InvolvedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.practitioners.UpdateInvolved(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PractitionerHandler) SpiritBank(w http.ResponseWriter, r *http.Request) {
	log, err := h.practitioners.SpiritBankHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *PractitionerHandler) Companions(w http.ResponseWriter, r *http.Request) {
	report, err := h.practitioners.Companions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PractitionerHandler) CompanionSessions(w http.ResponseWriter, r *http.Request) {
	report, err := h.practitioners.CompanionSessions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PractitionerHandler) MatchedCompanions(w http.ResponseWriter, r *http.Request) {
	matches, err := h.practitioners.MatchedCompanions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// FindByEmail answers GET /practitioners?email=...
func (h *PractitionerHandler) FindByEmail(w http.ResponseWriter, r *http.Request) {
	report, err := h.practitioners.FindByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PractitionerHandler) RecentCompanions(w http.ResponseWriter, r *http.Request) {
	report, err := h.practitioners.RecentCompanions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PractitionerHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.practitioners.StartSession(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *PractitionerHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req models.EndSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.practitioners.EndSession(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PractitionerHandler) Donate(w http.ResponseWriter, r *http.Request) {
	var req models.DonateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	remaining, err := h.practitioners.Donate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "toID"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"spirit_bank_points": remaining})
}

func decodeOptional(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
