package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/jobshare/internal/http/middleware"
	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/service"
)

type Handler struct {
	partnerships *service.PartnershipService
	shares       *service.ShareService
	jobs         *service.JobService
	chains       *service.ChainService
	log          zerolog.Logger
}

func NewHandler(
	partnerships *service.PartnershipService,
	shares *service.ShareService,
	jobs *service.JobService,
	chains *service.ChainService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		partnerships: partnerships,
		shares:       shares,
		jobs:         jobs,
		chains:       chains,
		log:          log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/partnerships", h.listPartners)
	protected.GET("/partnerships/requests", h.listPartnershipRequests)
	protected.POST("/partnerships/requests", h.requestPartnership)
	protected.POST("/partnerships/requests/:id/respond", h.respondPartnership)
	protected.PUT("/partnerships/:partnerId/settings", h.updatePartnerSettings)
	protected.GET("/directory", h.searchDirectory)

	protected.POST("/jobs", h.createJob)
	protected.GET("/jobs/:id", h.getJob)
	protected.PATCH("/jobs/:id/zip", h.updateJobZip)
	protected.POST("/jobs/:id/status", h.updateJobStatus)
	protected.GET("/jobs/:id/chain", h.getChain)
	protected.PATCH("/jobs/:id/chain/invoice", h.correctInvoice)
	protected.GET("/jobs/:id/chain/export", h.exportChain)
	protected.GET("/jobs/:id/share-requests", h.listJobShareRequests)

	protected.GET("/share-requests", h.listShareRequests)
	protected.POST("/share-requests", h.createShareRequest)
	protected.POST("/share-requests/:id/respond", h.respondShareRequest)
}

type partnershipRequestBody struct {
	TargetCompanyID string `json:"target_company_id" binding:"required"`
	Message         string `json:"message"`
}

func (h *Handler) requestPartnership(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req partnershipRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	targetID, err := uuid.Parse(strings.TrimSpace(req.TargetCompanyID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_company_id"})
		return
	}

	created, err := h.partnerships.RequestPartnership(c.Request.Context(), principal, targetID, req.Message)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPartnershipRequestResponse(*created))
}

type respondPartnershipBody struct {
	Accept *bool `json:"accept" binding:"required"`
}

func (h *Handler) respondPartnership(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req respondPartnershipBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.partnerships.RespondToPartnershipRequest(c.Request.Context(), principal, requestID, *req.Accept); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listPartners(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	partners, err := h.partnerships.ListPartners(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners})
}

func (h *Handler) listPartnershipRequests(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	reqs, err := h.partnerships.ListPendingRequests(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]partnershipRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toPartnershipRequestResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

type partnerSettingsBody struct {
	AutoAssignmentEnabled bool                       `json:"auto_assignment_enabled"`
	Zones                 []model.AutoAssignmentZone `json:"zones"`
	RequiresAcceptance    *bool                      `json:"requires_acceptance" binding:"required"`
	NotifyOnShare         bool                       `json:"notify_on_share"`
	NotifyOnStatusChange  bool                       `json:"notify_on_status_change"`
}

func (h *Handler) updatePartnerSettings(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	partnerID, ok := pathID(c, "partnerId")
	if !ok {
		return
	}
	var req partnerSettingsBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.partnerships.UpdatePartnerSettings(c.Request.Context(), principal, partnerID, service.PartnerSettingsInput{
		AutoAssignmentEnabled: req.AutoAssignmentEnabled,
		Zones:                 req.Zones,
		RequiresAcceptance:    *req.RequiresAcceptance,
		NotifyOnShare:         req.NotifyOnShare,
		NotifyOnStatusChange:  req.NotifyOnStatusChange,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) searchDirectory(c *gin.Context) {
	companies, err := h.partnerships.SearchDirectory(c.Request.Context(), c.Query("zip"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]directoryEntryResponse, 0, len(companies))
	for _, company := range companies {
		out = append(out, directoryEntryResponse{ID: company.ID, Name: company.Name, Zip: company.Zip})
	}
	c.JSON(http.StatusOK, gin.H{"companies": out})
}

type createJobBody struct {
	JobNumber string `json:"job_number" binding:"required"`
	Zip       string `json:"zip" binding:"required"`
}

func (h *Handler) createJob(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createJobBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), principal, service.CreateJobInput{
		JobNumber: req.JobNumber,
		Zip:       req.Zip,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJobResponse(job))
}

func (h *Handler) getJob(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(c.Request.Context(), principal, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type updateZipBody struct {
	Zip string `json:"zip" binding:"required"`
}

func (h *Handler) updateJobZip(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateZipBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.UpdateJobZip(c.Request.Context(), principal, jobID, req.Zip)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type updateStatusBody struct {
	Status        string   `json:"status" binding:"required"`
	DeclineReason string   `json:"decline_reason"`
	ServiceDate   string   `json:"service_date"`
	AffidavitRefs []string `json:"affidavit_refs"`
}

func (h *Handler) updateJobStatus(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateStatusBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.UpdateStatusInput{
		JobID:         jobID,
		Status:        model.JobStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		DeclineReason: req.DeclineReason,
		AffidavitRefs: req.AffidavitRefs,
	}
	if strings.TrimSpace(req.ServiceDate) != "" {
		serviceDate, err := parseDate(req.ServiceDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service_date"})
			return
		}
		input.ServiceDate = &serviceDate
	}

	job, result, err := h.jobs.UpdateSharedJobStatus(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":         toJobResponse(job),
		"propagation": toPropagationResponse(result),
	})
}

func (h *Handler) getChain(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.chains.GetVisibleChain(c.Request.Context(), principal, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type correctInvoiceBody struct {
	Level  *int    `json:"level" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

func (h *Handler) correctInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req correctInvoiceBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.chains.CorrectInvoiceAmount(c.Request.Context(), principal, jobID, *req.Level, req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) exportChain(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	format := service.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "xlsx"))))

	result, err := h.chains.ExportVisibleChain(c.Request.Context(), principal, jobID, format)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Type", result.ContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

type createShareRequestBody struct {
	JobID           string  `json:"job_id" binding:"required"`
	TargetCompanyID string  `json:"target_company_id" binding:"required"`
	TargetUserID    string  `json:"target_user_id"`
	ProposedFee     float64 `json:"proposed_fee" binding:"required"`
	ExpiresInHours  *int    `json:"expires_in_hours"`
}

func (h *Handler) createShareRequest(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createShareRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := uuid.Parse(strings.TrimSpace(req.JobID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job_id"})
		return
	}
	targetID, err := uuid.Parse(strings.TrimSpace(req.TargetCompanyID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_company_id"})
		return
	}
	input := service.CreateShareRequestInput{
		JobID:           jobID,
		TargetCompanyID: targetID,
		ProposedFee:     req.ProposedFee,
		ExpiresInHours:  req.ExpiresInHours,
	}
	if raw := strings.TrimSpace(req.TargetUserID); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_user_id"})
			return
		}
		input.TargetUserID = &userID
	}

	created, err := h.shares.CreateShareRequest(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toShareRequestResponse(*created))
}

type respondShareRequestBody struct {
	Accept        *bool    `json:"accept" binding:"required"`
	CounterFee    *float64 `json:"counter_fee"`
	DeclineReason string   `json:"decline_reason"`
}

func (h *Handler) respondShareRequest(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req respondShareRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolved, err := h.shares.RespondToShareRequest(c.Request.Context(), principal, requestID, service.RespondInput{
		Accept:        *req.Accept,
		CounterFee:    req.CounterFee,
		DeclineReason: req.DeclineReason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toShareRequestResponse(*resolved))
}

func (h *Handler) listShareRequests(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	direction := service.ShareRequestDirection(strings.ToLower(strings.TrimSpace(c.Query("direction"))))
	reqs, err := h.shares.ListShareRequests(c.Request.Context(), principal, direction)
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]shareRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toShareRequestResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"share_requests": out})
}

func (h *Handler) listJobShareRequests(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	reqs, err := h.shares.ListJobShareRequests(c.Request.Context(), principal, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]shareRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toShareRequestResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"share_requests": out})
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoResponsibleUser):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
