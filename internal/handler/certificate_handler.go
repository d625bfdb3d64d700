package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sat-lms-api/internal/models"
	"github.com/noah-isme/sat-lms-api/internal/service"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
	"github.com/noah-isme/sat-lms-api/pkg/response"
)

// CertificateHandler handles certificate issuance and verification endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler creates a new certificate handler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// List godoc
// @Summary List certificates
// @Description List certificates with pagination and filtering
// @Tags Certificates
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param student_id query string false "Student filter"
// @Param course_id query string false "Course filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	var filter models.CertificateFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.StudentID = c.Query("student_id")
	filter.CourseID = c.Query("course_id")
	if status := c.Query("status"); status != "" {
		filter.Status = models.CertificateStatus(status)
	}

	certificates, pagination, err := h.certificates.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificates, pagination)
}

// Get godoc
// @Summary Get certificate
// @Description Get certificate detail
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	certificate, err := h.certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}

// Issue godoc
// @Summary Issue certificate
// @Description Issue a completion certificate for a student and course. Returns the existing certificate when one is already issued.
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body service.IssueCertificateRequest true "Issue payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /certificates/issue [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.IssueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.IssuedBy = &claims.UserID

	certificate, err := h.certificates.Issue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, certificate)
}

// Generate godoc
// @Summary Generate own certificate
// @Description Issue the calling student's certificate for a completed course
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body service.GenerateCertificateRequest true "Generate payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /certificates/generate [post]
func (h *CertificateHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.GenerateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	certificate, err := h.certificates.Generate(c.Request.Context(), claims.UserID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, certificate)
}

// Revoke godoc
// @Summary Revoke certificate
// @Description Revoke an issued certificate with a reason
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body service.RevokeCertificateRequest true "Revoke payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/{id}/revoke [put]
func (h *CertificateHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RevokeCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	certificate, err := h.certificates.Revoke(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}

// Restore godoc
// @Summary Restore certificate
// @Description Restore a revoked certificate to issued state
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/{id}/restore [put]
func (h *CertificateHandler) Restore(c *gin.Context) {
	certificate, err := h.certificates.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}

// Verify godoc
// @Summary Verify certificate
// @Description Publicly verify a certificate by number or verification code
// @Tags Certificates
// @Produce json
// @Param code path string true "Certificate number or verification code"
// @Success 200 {object} response.Envelope
// @Router /certificates/verify/{code} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	verification, err := h.certificates.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verification, nil)
}

// Download godoc
// @Summary Certificate download token
// @Description Return a signed token for downloading the rendered certificate PDF
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id}/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	certificate, err := h.certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role == models.RoleStudent && certificate.StudentID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	download, err := h.certificates.DownloadURL(c.Request.Context(), certificate.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// ServeDownload godoc
// @Summary Download certificate PDF
// @Description Redeem a signed token and stream the certificate PDF
// @Tags Certificates
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file "PDF document"
// @Failure 403 {object} response.Envelope
// @Router /certificates/download/{token} [get]
func (h *CertificateHandler) ServeDownload(c *gin.Context) {
	path, filename, err := h.certificates.ResolveDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filename)
}
