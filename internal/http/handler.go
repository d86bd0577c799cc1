package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"parking-service/internal/alert"
	"parking-service/internal/auth"
	"parking-service/internal/billing"
	"parking-service/internal/config"
	"parking-service/internal/domain/parking"
	"parking-service/internal/repository"
	"parking-service/internal/rules"
	"parking-service/internal/service"
	"parking-service/internal/session"
)

type Handler struct {
	sightings   *service.SightingService
	vehicles    *service.VehicleService
	ruleStore   *rules.Store
	tariffs     *repository.TariffRepository
	billing     *billing.Engine
	sessions    *session.Manager
	sessionRepo *repository.SessionRepository
	alerts      *alert.Service
	authService *auth.Service
	config      *config.Config
	log         zerolog.Logger
}

func NewHandler(
	sightings *service.SightingService,
	vehicles *service.VehicleService,
	ruleStore *rules.Store,
	tariffs *repository.TariffRepository,
	billingEngine *billing.Engine,
	sessions *session.Manager,
	sessionRepo *repository.SessionRepository,
	alerts *alert.Service,
	authService *auth.Service,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		sightings:   sightings,
		vehicles:    vehicles,
		ruleStore:   ruleStore,
		tariffs:     tariffs,
		billing:     billingEngine,
		sessions:    sessions,
		sessionRepo: sessionRepo,
		alerts:      alerts,
		authService: authService,
		config:      cfg,
		log:         log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Static("/snapshots", h.config.Storage.SnapshotDir)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/vision/plate-event", h.plateEvent)
		public.POST("/auth/login", h.login)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(h.authService.Middleware())
	{
		protected.GET("/events", h.listEvents)
		protected.GET("/decisions", h.listDecisions)

		protected.GET("/vehicles", h.listVehicles)
		protected.GET("/vehicles/:id", h.getVehicle)

		protected.GET("/sessions", h.listSessions)
		protected.GET("/sessions/open", h.listOpenSessions)
		protected.GET("/sessions/:id", h.getSession)
		protected.POST("/sessions/:id/close", h.closeSession)

		protected.GET("/alerts", h.listAlerts)
		protected.POST("/alerts/:id/resolve", h.resolveAlert)

		protected.GET("/tariffs", h.listTariffs)
		protected.GET("/tariffs/simulate", h.simulateTariff)
	}

	// Admin-only endpoints
	admin := r.Group("/api/v1")
	admin.Use(h.authService.Middleware(), auth.RequireRoles(auth.RoleAdmin, auth.RoleSuperadmin))
	{
		admin.POST("/vehicles", h.createVehicle)
		admin.PUT("/vehicles/:id", h.updateVehicle)
		admin.DELETE("/vehicles/:id", h.deleteVehicle)

		admin.GET("/rules", h.listRules)
		admin.PUT("/rules/:key", h.updateRule)
		admin.GET("/rules/:key/history", h.ruleHistory)

		admin.POST("/tariffs", h.createTariff)
		admin.PUT("/tariffs/:id", h.updateTariff)
		admin.DELETE("/tariffs/:id", h.deleteTariff)

		admin.POST("/sessions/:id/payment", h.setPaymentStatus)
	}
}

func (h *Handler) plateEvent(c *gin.Context) {
	var payload parking.SightingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.sightings.ProcessSighting(c.Request.Context(), payload)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, errorResponse("invalid credentials"))
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"username":     user.Username,
		"role":         user.Role,
	})
}

func (h *Handler) listEvents(c *gin.Context) {
	var plateQuery *string
	if plate := strings.TrimSpace(c.Query("plate")); plate != "" {
		plateQuery = &plate
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	events, err := h.sightings.FindEvents(c.Request.Context(), plateQuery, from, to, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) listDecisions(c *gin.Context) {
	var plateQuery *string
	if plate := strings.TrimSpace(c.Query("plate")); plate != "" {
		plateQuery = &plate
	}

	decisions, err := h.sightings.FindDecisions(c.Request.Context(), plateQuery, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(decisions))
}

func (h *Handler) createVehicle(c *gin.Context) {
	var input service.VehicleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	vehicle, err := h.vehicles.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(vehicle))
}

func (h *Handler) updateVehicle(c *gin.Context) {
	var input service.VehicleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	vehicle, err := h.vehicles.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) deleteVehicle(c *gin.Context) {
	if err := h.vehicles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getVehicle(c *gin.Context) {
	vehicle, err := h.vehicles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) listVehicles(c *gin.Context) {
	vehicles, err := h.vehicles.List(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicles))
}

func (h *Handler) listRules(c *gin.Context) {
	stored, err := h.ruleStore.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(stored))
}

func (h *Handler) updateRule(c *gin.Context) {
	var body struct {
		Value interface{} `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	author := "system"
	if claims := auth.ClaimsFrom(c); claims != nil {
		author = claims.Username
	}

	key := c.Param("key")
	if err := h.ruleStore.Set(c.Request.Context(), key, body.Value, author); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": body.Value})
}

func (h *Handler) ruleHistory(c *gin.Context) {
	history, err := h.ruleStore.History(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(history))
}

type tariffInput struct {
	Name              string                `json:"name"`
	VehicleTypes      []parking.VehicleType `json:"vehicle_types"`
	FirstHourTND      float64               `json:"first_hour_tnd"`
	ExtraHourTND      float64               `json:"extra_hour_tnd"`
	DailyMaxTND       float64               `json:"daily_max_tnd"`
	NightMultiplier   float64               `json:"night_multiplier"`
	NightStart        string                `json:"night_start"`
	NightEnd          string                `json:"night_end"`
	WeekendMultiplier float64               `json:"weekend_multiplier"`
	ValidFrom         *time.Time            `json:"valid_from,omitempty"`
	ValidUntil        *time.Time            `json:"valid_until,omitempty"`
	Active            *bool                 `json:"active,omitempty"`
}

func (h *Handler) listTariffs(c *gin.Context) {
	tariffs, err := h.tariffs.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(tariffs))
}

func (h *Handler) createTariff(c *gin.Context) {
	var input tariffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	tariff, err := tariffFromInput(&repository.Tariff{}, input)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if err := h.tariffs.Create(c.Request.Context(), tariff); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(tariff))
}

func (h *Handler) updateTariff(c *gin.Context) {
	var input tariffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	existing, err := h.tariffs.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse("tariff not found"))
		return
	}
	tariff, err := tariffFromInput(existing, input)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if err := h.tariffs.Update(c.Request.Context(), tariff); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(tariff))
}

func (h *Handler) deleteTariff(c *gin.Context) {
	if _, err := h.tariffs.FindByID(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, errorResponse("tariff not found"))
		return
	}
	if err := h.tariffs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// simulateTariff prices a hypothetical stay through the same Calculate
// path live billing uses.
func (h *Handler) simulateTariff(c *gin.Context) {
	duration := queryInt(c, "duration", 60)
	vehicleType := parking.VehicleType(c.DefaultQuery("vehicle_type", string(parking.TypeCar)))
	if !vehicleType.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse("unknown vehicle_type"))
		return
	}

	snap, err := h.ruleStore.Snapshot(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	entry := time.Now().UTC()
	exit := entry.Add(time.Duration(duration) * time.Minute)
	result, err := h.billing.Calculate(c.Request.Context(), snap, vehicleType, entry, exit, nil)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.sessionRepo.List(c.Request.Context(), strings.TrimSpace(c.Query("plate")), queryInt(c, "limit", 500))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) listOpenSessions(c *gin.Context) {
	sessions, err := h.sessionRepo.ListOpen(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) getSession(c *gin.Context) {
	record, err := h.sessionRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse("session not found"))
		return
	}
	c.JSON(http.StatusOK, successResponse(record))
}

func (h *Handler) closeSession(c *gin.Context) {
	record, err := h.sessionRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse("session not found"))
		return
	}

	snap, err := h.ruleStore.Snapshot(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	closed, err := h.sessions.Close(c.Request.Context(), snap, record, time.Now().UTC(), "", nil)
	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			c.JSON(http.StatusBadRequest, errorResponse("session already closed"))
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(closed))
}

func (h *Handler) setPaymentStatus(c *gin.Context) {
	var body struct {
		Status parking.PaymentStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if !body.Status.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse("unknown payment status"))
		return
	}
	if _, err := h.sessionRepo.FindByID(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, errorResponse("session not found"))
		return
	}
	if err := h.sessions.SetPaymentStatus(c.Request.Context(), c.Param("id"), body.Status); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "payment_status": body.Status})
}

func (h *Handler) listAlerts(c *gin.Context) {
	var resolved *bool
	if raw := c.Query("resolved"); raw != "" {
		value := raw == "true"
		resolved = &value
	}
	alerts, err := h.alerts.List(c.Request.Context(), resolved, queryInt(c, "limit", 100))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(alerts))
}

func (h *Handler) resolveAlert(c *gin.Context) {
	resolvedBy := "system"
	if claims := auth.ClaimsFrom(c); claims != nil {
		resolvedBy = claims.Username
	}

	record, err := h.alerts.Resolve(c.Request.Context(), c.Param("id"), resolvedBy)
	if err != nil {
		if errors.Is(err, alert.ErrAlreadyResolved) {
			c.JSON(http.StatusBadRequest, errorResponse("alert already resolved"))
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(record))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrPlateConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func tariffFromInput(tariff *repository.Tariff, input tariffInput) (*repository.Tariff, error) {
	if input.Name == "" {
		return nil, errors.New("name is required")
	}
	types := input.VehicleTypes
	if len(types) == 0 {
		types = []parking.VehicleType{parking.TypeCar}
	}
	for _, vt := range types {
		if !vt.Valid() {
			return nil, errors.New("unknown vehicle_type " + string(vt))
		}
	}
	encoded, err := json.Marshal(types)
	if err != nil {
		return nil, err
	}

	tariff.Name = input.Name
	tariff.VehicleTypes = datatypes.JSON(encoded)
	tariff.FirstHourTND = input.FirstHourTND
	tariff.ExtraHourTND = input.ExtraHourTND
	tariff.DailyMaxTND = input.DailyMaxTND
	tariff.NightMultiplier = input.NightMultiplier
	tariff.NightStart = input.NightStart
	tariff.NightEnd = input.NightEnd
	tariff.WeekendMultiplier = input.WeekendMultiplier
	tariff.ValidFrom = input.ValidFrom
	tariff.ValidUntil = input.ValidUntil
	if input.Active != nil {
		tariff.Active = *input.Active
	} else {
		tariff.Active = true
	}
	return tariff, nil
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
