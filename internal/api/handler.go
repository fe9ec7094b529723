package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quote-service/internal/lifecycle"
	"quote-service/internal/models"
	"quote-service/internal/service"
	"quote-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	quoteService   *service.QuoteService
	paymentMethods *service.PaymentMethodService
	templates      *service.TemplateService
	quota          service.Quota
}

// NewHandler creates a new HTTP handler
func NewHandler(quoteService *service.QuoteService, paymentMethods *service.PaymentMethodService, templates *service.TemplateService, quota service.Quota) *Handler {
	return &Handler{
		quoteService:   quoteService,
		paymentMethods: paymentMethods,
		templates:      templates,
		quota:          quota,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(identityMiddleware())
	{
		v1.POST("/quotes", h.createQuote)
		v1.GET("/quotes", h.listQuotes)
		v1.GET("/quotes/:id", h.getQuote)
		v1.PATCH("/quotes/:id", h.updateQuote)
		v1.POST("/quotes/:id/items", h.addItem)
		v1.GET("/quotes/:id/pricing", h.getPricing)
		v1.GET("/quotes/:id/activity", h.getActivity)
		v1.POST("/quotes/:id/duplicate", h.duplicateQuote)

		v1.POST("/quotes/:id/submit", h.submitToVendor)
		v1.POST("/quotes/:id/approve", h.approveQuote)
		v1.POST("/quotes/:id/reject", h.rejectQuote)
		v1.POST("/quotes/:id/accept-pricing", h.acceptPricing)
		v1.POST("/quotes/:id/decline-pricing", h.declinePricing)
		v1.POST("/quotes/:id/begin-testing", h.beginTesting)
		v1.POST("/quotes/:id/items/:itemID/results", h.submitResults)

		v1.POST("/quotes/:id/payment", h.recordPayment)
		v1.POST("/quotes/:id/tracking", h.attachTracking)
		v1.GET("/quotes/:id/tracking", h.getTrackingHistory)
		v1.POST("/quotes/:id/tracking/refresh", h.refreshTracking)
		v1.POST("/tracking/refresh-stale", h.refreshStaleTracking)

		v1.POST("/templates", h.createTemplate)
		v1.GET("/templates", h.listTemplates)
		v1.PUT("/templates/:id/default", h.setDefaultTemplate)

		v1.POST("/payment-methods", h.createPaymentMethod)
		v1.GET("/payment-methods", h.listPaymentMethods)
		v1.PUT("/payment-methods/:id/default", h.setDefaultPaymentMethod)
		v1.DELETE("/payment-methods/:id", h.deletePaymentMethod)

		v1.GET("/quota", h.getQuota)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) createQuote(c *gin.Context) {
	var req service.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), identity(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *Handler) listQuotes(c *gin.Context) {
	quotes, err := h.quoteService.ListQuotes(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

func (h *Handler) getQuote(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quote, items, err := h.quoteService.GetQuote(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote, "items": items})
}

func (h *Handler) updateQuote(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.quoteService.UpdateQuote(c.Request.Context(), identity(c), quoteID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) addItem(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.QuoteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.quoteService.AddItem(c.Request.Context(), identity(c), quoteID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) getPricing(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.quoteService.GetPricing(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getActivity(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.quoteService.GetActivity(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

func (h *Handler) duplicateQuote(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.DuplicateQuote(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *Handler) submitToVendor(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.SubmitToVendor(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) approveQuote(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.quoteService.Approve(c.Request.Context(), identity(c), quoteID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) rejectQuote(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	quote, err := h.quoteService.Reject(c.Request.Context(), identity(c), quoteID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) acceptPricing(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.AcceptPricing(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) declinePricing(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.DeclinePricing(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) beginTesting(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.BeginTesting(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) submitResults(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	var req service.ItemResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	completed, err := h.quoteService.SubmitResults(c.Request.Context(), identity(c), quoteID, itemID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote_completed": completed})
}

func (h *Handler) recordPayment(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.quoteService.RecordPayment(c.Request.Context(), identity(c), quoteID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) attachTracking(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.AttachTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.quoteService.AttachTracking(c.Request.Context(), identity(c), quoteID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) getTrackingHistory(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	events, err := h.quoteService.GetTrackingHistory(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) refreshTracking(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	event, err := h.quoteService.ManualTrackingRefresh(c.Request.Context(), identity(c), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) refreshStaleTracking(c *gin.Context) {
	polled, err := h.quoteService.RefreshStaleTracking(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"polled": polled})
}

func (h *Handler) createTemplate(c *gin.Context) {
	var tpl models.EmailTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		badRequest(c, err)
		return
	}
	tpl.ID = 0

	if err := h.templates.Create(c.Request.Context(), identity(c), &tpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) listTemplates(c *gin.Context) {
	templates, err := h.templates.ListByScope(c.Request.Context(), identity(c), c.Query("scope"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *Handler) setDefaultTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Scope string `json:"scope" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.templates.SetDefault(c.Request.Context(), identity(c), req.Scope, templateID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createPaymentMethod(c *gin.Context) {
	var pm models.PaymentMethod
	if err := c.ShouldBindJSON(&pm); err != nil {
		badRequest(c, err)
		return
	}
	pm.ID = 0
	pm.OwnerID = identity(c).UserID

	if err := h.paymentMethods.Create(c.Request.Context(), &pm); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pm)
}

func (h *Handler) listPaymentMethods(c *gin.Context) {
	methods, err := h.paymentMethods.List(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

func (h *Handler) setDefaultPaymentMethod(c *gin.Context) {
	methodID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.paymentMethods.SetDefault(c.Request.Context(), identity(c).UserID, methodID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deletePaymentMethod(c *gin.Context) {
	methodID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.paymentMethods.Delete(c.Request.Context(), identity(c).UserID, methodID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getQuota(c *gin.Context) {
	remaining, err := h.quota.GetRemainingItems(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining_items": remaining})
}

// identityMiddleware resolves the acting identity from the gateway-injected
// headers. The system actor is internal and never accepted over HTTP.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID"})
			return
		}

		role := c.GetHeader("X-User-Role")
		var actor lifecycle.Actor
		switch role {
		case "", string(lifecycle.ActorRequester):
			actor = lifecycle.ActorRequester
		case string(lifecycle.ActorLab):
			actor = lifecycle.ActorLab
		case string(lifecycle.ActorAdmin):
			actor = lifecycle.ActorAdmin
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown role"})
			return
		}

		id := service.Identity{UserID: userID, Actor: actor, Email: c.GetHeader("X-User-Email")}
		if actor == lifecycle.ActorLab {
			labID, err := strconv.ParseInt(c.GetHeader("X-Lab-ID"), 10, 64)
			if err != nil || labID <= 0 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Lab role requires X-Lab-ID"})
				return
			}
			id.LabID = labID
		}

		c.Set("identity", id)
		c.Next()
	}
}

func identity(c *gin.Context) service.Identity {
	id, _ := c.MustGet("identity").(service.Identity)
	return id
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// respondError maps domain errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var cooldown *models.CooldownError
	var validation *models.ValidationError

	switch {
	case errors.As(err, &cooldown):
		c.Header("Retry-After", strconv.Itoa(int(cooldown.Remaining.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "Refresh cooldown active",
			"retry_after_seconds": int(cooldown.Remaining.Seconds()),
		})
	case errors.Is(err, models.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Monthly send quota exceeded"})
	case errors.Is(err, models.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied", "details": err.Error()})
	case errors.Is(err, models.ErrQuoteLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "Quote is locked", "details": err.Error()})
	case errors.Is(err, models.ErrNoLabContact):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Lab has no contact email"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
	case strings.Contains(err.Error(), "not found"):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
