package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sat-lms-api/internal/models"
	"github.com/noah-isme/sat-lms-api/internal/service"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
	"github.com/noah-isme/sat-lms-api/pkg/response"
)

// FeeHandler handles monthly fee and defaulter gating endpoints.
type FeeHandler struct {
	fees *service.FeeService
}

// NewFeeHandler creates a new fee handler.
func NewFeeHandler(fees *service.FeeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// List godoc
// @Summary List fee records
// @Description List fee records with pagination and filtering. Students only see their own records.
// @Tags Fees
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param student_id query string false "Student filter"
// @Param status query string false "Status filter"
// @Param month query int false "Month filter"
// @Param year query int false "Year filter"
// @Param overdue query bool false "Overdue filter"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := h.parseFilter(c)
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	fees, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// Generate godoc
// @Summary Generate monthly fees
// @Description Create one pending fee row per active student for a month. Re-running a month only fills gaps.
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.GenerateFeesRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/generate [post]
func (h *FeeHandler) Generate(c *gin.Context) {
	var req service.GenerateFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.fees.GenerateMonthlyFees(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SubmitProof godoc
// @Summary Submit payment proof
// @Description Attach a payment proof to the calling student's fee record
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.SubmitProofRequest true "Proof payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /fees/{id}/submit-proof [put]
func (h *FeeHandler) SubmitProof(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	fee, err := h.fees.SubmitProof(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Review godoc
// @Summary Review payment proof
// @Description Approve or reject a submitted payment proof
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.ReviewFeeRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /fees/{id}/review [put]
func (h *FeeHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReviewFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	fee, err := h.fees.Review(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// BlockDefaulters godoc
// @Summary Block course defaulters
// @Description Block every active enrollment of a course whose student has an overdue pending fee
// @Tags Fees
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/block-defaulters [put]
func (h *FeeHandler) BlockDefaulters(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.fees.BulkBlockDefaulters(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export fee records
// @Description Download the filtered fee list as CSV
// @Tags Fees
// @Produce text/csv
// @Param status query string false "Status filter"
// @Param month query int false "Month filter"
// @Param year query int false "Year filter"
// @Success 200 {string} string "CSV document"
// @Router /fees/export [get]
func (h *FeeHandler) Export(c *gin.Context) {
	data, filename, err := h.fees.ExportCSV(c.Request.Context(), h.parseFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

func (h *FeeHandler) parseFilter(c *gin.Context) models.FeeFilter {
	var filter models.FeeFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.StudentID = c.Query("student_id")
	if status := c.Query("status"); status != "" {
		filter.Status = models.FeeStatus(status)
	}
	if month, err := strconv.Atoi(c.Query("month")); err == nil {
		filter.Month = month
	}
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = year
	}
	if overdue := c.Query("overdue"); overdue != "" {
		if val, err := strconv.ParseBool(overdue); err == nil {
			filter.Overdue = &val
		}
	}
	return filter
}
