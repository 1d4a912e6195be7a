package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/store"
)

const defaultPatientLimit = 100

// PatientHandlers provides HTTP handlers for patient records.
type PatientHandlers struct {
	patients store.PatientStore
	log      *zerolog.Logger
}

// NewPatientHandlers creates a new patient handlers instance.
func NewPatientHandlers(patients store.PatientStore, logger *zerolog.Logger) *PatientHandlers {
	return &PatientHandlers{
		patients: patients,
		log:      logger,
	}
}

// CreatePatientRequest represents the create patient request body.
type CreatePatientRequest struct {
	Number    string `json:"nummer" binding:"required,max=64"`
	FirstName string `json:"firstName" binding:"required,max=128"`
	LastName  string `json:"lastName" binding:"required,max=128"`
}

// UpdatePatientRequest holds the patient fields to change. Empty fields are kept.
type UpdatePatientRequest struct {
	Number    string `json:"nummer" binding:"max=64"`
	FirstName string `json:"firstName" binding:"max=128"`
	LastName  string `json:"lastName" binding:"max=128"`
}

// CreatePatientResponse mirrors the create acknowledgement.
type CreatePatientResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// UpdatePatientResponse returns the patient after the update.
type UpdatePatientResponse struct {
	Message string          `json:"message"`
	Patient PatientResponse `json:"patient"`
}

// CreatePatient handles patient creation.
// POST /patient
func (h *PatientHandlers) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create patient request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request"})
		return
	}

	patient := &store.Patient{
		Number:    strings.TrimSpace(req.Number),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	if err := h.patients.CreatePatient(c.Request.Context(), patient); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "patient already exists"})
			return
		}
		h.log.Error().Err(err).Msg("failed to create patient")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "failed to create patient"})
		return
	}

	h.log.Info().Str("patient_id", patient.ID).Msg("patient created")
	c.JSON(http.StatusOK, CreatePatientResponse{ID: patient.ID, Message: "Patient created successfully"})
}

// ListPatients returns up to ?limit patients (default 100).
// GET /patient
func (h *PatientHandlers) ListPatients(c *gin.Context) {
	limit := defaultPatientLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid input"})
			return
		}
		limit = n
	}

	patients, err := h.patients.ListPatients(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list patients")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "failed to get patients"})
		return
	}

	response := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		response = append(response, patientResponse(p))
	}
	c.JSON(http.StatusOK, response)
}

// GetPatient returns one patient.
// GET /patient/:id
func (h *PatientHandlers) GetPatient(c *gin.Context) {
	patient, err := h.patients.GetPatientByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to get patient")
		return
	}
	c.JSON(http.StatusOK, patientResponse(patient))
}

// UpdatePatient changes the number or names of a patient.
// PUT /patient/:id
func (h *PatientHandlers) UpdatePatient(c *gin.Context) {
	var req UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request"})
		return
	}

	patient, err := h.patients.GetPatientByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to get patient")
		return
	}
	if v := strings.TrimSpace(req.Number); v != "" {
		patient.Number = v
	}
	if v := strings.TrimSpace(req.FirstName); v != "" {
		patient.FirstName = v
	}
	if v := strings.TrimSpace(req.LastName); v != "" {
		patient.LastName = v
	}

	if err := h.patients.UpdatePatient(c.Request.Context(), patient); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Patient number already in use"})
			return
		}
		h.storeError(c, err, "failed to update patient")
		return
	}

	h.log.Info().Str("patient_id", patient.ID).Msg("patient updated")
	c.JSON(http.StatusOK, UpdatePatientResponse{Message: "Patient updated successfully", Patient: patientResponse(patient)})
}

// DeletePatient removes a patient; rooms about it are kept without one.
// DELETE /patient/:id
func (h *PatientHandlers) DeletePatient(c *gin.Context) {
	id := c.Param("id")
	if err := h.patients.DeletePatient(c.Request.Context(), id); err != nil {
		h.storeError(c, err, "failed to delete patient")
		return
	}
	h.log.Info().Str("patient_id", id).Msg("patient deleted")
	c.JSON(http.StatusOK, ErrorResponse{Message: "Patient deleted successfully"})
}

func (h *PatientHandlers) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Patient not found"})
		return
	}
	h.log.Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
}
