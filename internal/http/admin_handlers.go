package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/middleware"
	"github.com/open-builders/premium-backend/internal/common/validation"
	"github.com/open-builders/premium-backend/internal/domain/audit"
	"github.com/open-builders/premium-backend/internal/domain/queue"
	"github.com/open-builders/premium-backend/internal/domain/verification"
	auditsvc "github.com/open-builders/premium-backend/internal/service/audit"
	"github.com/open-builders/premium-backend/internal/service/entitlement"
	"github.com/open-builders/premium-backend/internal/service/notifications"
	queuesvc "github.com/open-builders/premium-backend/internal/service/queue"
	usersvc "github.com/open-builders/premium-backend/internal/service/user"
	verifsvc "github.com/open-builders/premium-backend/internal/service/verification"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// AdminHandlers serves the dashboard API behind the shared admin key.
type AdminHandlers struct {
	users        *usersvc.Service
	entitlements *entitlement.Manager
	claims       *verifsvc.Service
	queue        *queuesvc.Service
	audit        *auditsvc.Service
	notifier     *notifications.Service
	defaultDays  int
	broadcastRPS float64
}

func NewAdminHandlers(users *usersvc.Service, ent *entitlement.Manager, claims *verifsvc.Service, q *queuesvc.Service,
	auditor *auditsvc.Service, notifier *notifications.Service, defaultDays int, broadcastRPS float64) *AdminHandlers {
	return &AdminHandlers{
		users:        users,
		entitlements: ent,
		claims:       claims,
		queue:        q,
		audit:        auditor,
		notifier:     notifier,
		defaultDays:  defaultDays,
		broadcastRPS: broadcastRPS,
	}
}

// RegisterRoutes mounts the admin routes. stats gets its own middleware so
// the caller can put a response cache in front of it.
func (h *AdminHandlers) RegisterRoutes(r *gin.RouterGroup, stats ...gin.HandlerFunc) {
	r.POST("/grant", h.grant)
	r.POST("/revoke", h.revoke)
	r.GET("/users", h.listUsers)
	r.GET("/users/:ident/status", h.userStatus)
	r.GET("/stats", append(stats, h.stats)...)
	r.GET("/claims", h.listClaims)
	r.POST("/claims/:id/decision", h.decideClaim)
	r.GET("/queue", h.listQueue)
	r.POST("/queue/match", h.matchQueue)
	r.POST("/message", h.sendMessage)
	r.POST("/broadcast", h.broadcast)
	r.GET("/logs", h.logs)
}

// @Summary Grant premium
// @Description Extends an unexpired grant from its expiry, otherwise starts from today.
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param request body GrantRequest true "User and duration"
// @Success 200 {object} GrantResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid duration or identifier"
// @Failure 401 {object} middleware.ErrorResponse "Missing admin key"
// @Failure 404 {object} middleware.ErrorResponse "Unknown user"
// @Router /grant [post]
func (h *AdminHandlers) grant(c *gin.Context) {
	var req GrantRequest
	if !bindJSON(c, &req) {
		return
	}
	days := h.defaultDays
	if req.Days != nil {
		days = *req.Days
	}
	id, err := h.users.Resolve(c.Request.Context(), req.Ident)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	st, err := h.entitlements.Grant(c.Request.Context(), middleware.Actor(c), id, days)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, GrantResponse{OK: true, Status: st})
}

// @Summary Revoke premium
// @Description Idempotent; revoking a non-premium user reports changed=false.
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param request body RevokeRequest true "User"
// @Success 200 {object} RevokeResponse
// @Failure 404 {object} middleware.ErrorResponse "Unknown user"
// @Router /revoke [post]
func (h *AdminHandlers) revoke(c *gin.Context) {
	var req RevokeRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.users.Resolve(c.Request.Context(), req.Ident)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	changed, err := h.entitlements.Revoke(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, RevokeResponse{OK: true, Changed: changed})
}

// @Summary Search users
// @Tags admin
// @Produce json
// @Security AdminKey
// @Param q query string false "Id, username, name or email fragment"
// @Param limit query int false "Max results" default(100)
// @Success 200 {object} UsersResponse
// @Router /users [get]
func (h *AdminHandlers) listUsers(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	users, err := h.users.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, UsersResponse{Users: users})
}

// @Summary Premium status of a user
// @Tags admin
// @Produce json
// @Security AdminKey
// @Param ident path string true "Telegram id, tg:<id>, @username or email"
// @Success 200 {object} user.Status
// @Failure 404 {object} middleware.ErrorResponse "Unknown user"
// @Router /users/{ident}/status [get]
func (h *AdminHandlers) userStatus(c *gin.Context) {
	id, err := h.users.Resolve(c.Request.Context(), c.Param("ident"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	st, err := h.entitlements.Status(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary Dashboard counters
// @Tags admin
// @Produce json
// @Security AdminKey
// @Success 200 {object} user.Stats
// @Router /stats [get]
func (h *AdminHandlers) stats(c *gin.Context) {
	st, err := h.users.Stats(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary List verification claims
// @Description Oldest first.
// @Tags admin
// @Produce json
// @Security AdminKey
// @Param status query string false "pending, approved or rejected"
// @Param kind query string false "upi or usdt"
// @Param limit query int false "Max results" default(100)
// @Success 200 {object} ClaimsResponse
// @Failure 400 {object} middleware.ErrorResponse "Bad filter"
// @Router /claims [get]
func (h *AdminHandlers) listClaims(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	f := verification.Filter{
		Status: verification.Status(strings.ToLower(c.Query("status"))),
		Kind:   verification.Kind(strings.ToLower(c.Query("kind"))),
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			middleware.HandleError(c, apperrors.NewInvalidInputError("user_id", "must be a number"))
			return
		}
		f.UserID = id
	}

	claims := make([]verification.Claim, 0)
	for claim, err := range h.claims.List(c.Request.Context(), f) {
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		claims = append(claims, claim)
		if len(claims) >= limit {
			break
		}
	}
	c.JSON(http.StatusOK, ClaimsResponse{Claims: claims})
}

// @Summary Decide a verification claim
// @Description Approval is followed by a grant of days (default length when omitted).
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path int true "Claim id"
// @Param request body DecisionRequest true "Decision"
// @Success 200 {object} DecisionResponse
// @Failure 404 {object} middleware.ErrorResponse "Claim not found"
// @Failure 409 {object} middleware.ErrorResponse "Already decided"
// @Router /claims/{id}/decision [post]
func (h *AdminHandlers) decideClaim(c *gin.Context) {
	claimID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || claimID <= 0 {
		middleware.HandleError(c, apperrors.NewInvalidInputError("id", "must be a positive number"))
		return
	}
	var req DecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	days := h.defaultDays
	if req.Days != nil {
		days = *req.Days
		if err := validation.ValidatePositiveInt(int64(days), "days"); err != nil {
			middleware.HandleError(c, apperrors.NewInvalidInputError("days", err.Error()))
			return
		}
	}

	ctx := c.Request.Context()
	actor := middleware.Actor(c)
	claim, err := h.claims.Decide(ctx, actor, claimID, *req.Approve)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	resp := DecisionResponse{OK: true, Claim: claim}
	if *req.Approve {
		st, err := h.entitlements.Grant(ctx, actor, claim.TelegramID, days)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		resp.Status = st
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Premium queue
// @Description Outstanding entries in enqueue order.
// @Tags admin
// @Produce json
// @Security AdminKey
// @Success 200 {object} QueueResponse
// @Router /queue [get]
func (h *AdminHandlers) listQueue(c *gin.Context) {
	entries := make([]queue.Entry, 0)
	for e, err := range h.queue.PeekAll(c.Request.Context()) {
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		entries = append(entries, e)
	}
	c.JSON(http.StatusOK, QueueResponse{Entries: entries})
}

// @Summary Match a queued user to a payment
// @Description Dequeues the user with the payment reference, then grants days.
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param request body MatchRequest true "User and payment reference"
// @Success 200 {object} MatchResponse
// @Failure 404 {object} middleware.ErrorResponse "User not queued"
// @Router /queue/match [post]
func (h *AdminHandlers) matchQueue(c *gin.Context) {
	var req MatchRequest
	if !bindJSON(c, &req) {
		return
	}
	days := h.defaultDays
	if req.Days != nil {
		days = *req.Days
	}
	ctx := c.Request.Context()
	id, err := h.users.Resolve(ctx, req.Ident)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	if err := validation.ValidatePositiveInt(int64(days), "days"); err != nil {
		middleware.HandleError(c, apperrors.NewInvalidInputError("days", err.Error()))
		return
	}
	entry, err := h.queue.MatchAndDequeue(ctx, middleware.Actor(c), id, req.Reference)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	st, err := h.entitlements.Grant(ctx, middleware.Actor(c), id, days)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MatchResponse{OK: true, Entry: entry, Status: st})
}

// @Summary Message a user
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param request body MessageRequest true "Recipient and text"
// @Success 200 {object} OKResponse
// @Failure 404 {object} middleware.ErrorResponse "Unknown user"
// @Failure 502 {object} middleware.ErrorResponse "Telegram rejected the message"
// @Router /message [post]
func (h *AdminHandlers) sendMessage(c *gin.Context) {
	var req MessageRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validation.ValidateMessageText(req.Text); err != nil {
		middleware.HandleError(c, apperrors.NewInvalidInputError("text", err.Error()))
		return
	}
	ctx := c.Request.Context()
	id, err := h.users.Resolve(ctx, req.Ident)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	if err := h.notifier.SendText(ctx, id, req.Text); err != nil {
		middleware.HandleError(c, apperrors.NewTelegramAPIError("sendMessage", err))
		return
	}
	h.audit.Record(ctx, middleware.Actor(c), audit.KindSendMessage, strconv.FormatInt(id, 10), "")
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// @Summary Broadcast to active premium users
// @Description Sends are paced to stay under the Bot API limits.
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param request body BroadcastRequest true "Text"
// @Success 200 {object} BroadcastResponse
// @Router /broadcast [post]
func (h *AdminHandlers) broadcast(c *gin.Context) {
	var req BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validation.ValidateMessageText(req.Text); err != nil {
		middleware.HandleError(c, apperrors.NewInvalidInputError("text", err.Error()))
		return
	}
	ctx := c.Request.Context()
	limiter := rate.NewLimiter(rate.Limit(h.broadcastRPS), 1)
	res, err := h.notifier.Broadcast(ctx, h.users.ActivePremium(ctx), req.Text, limiter)
	if err != nil && res.Total == 0 {
		if _, ok := apperrors.AsAppError(err); !ok {
			err = apperrors.NewTelegramAPIError("broadcast", err)
		}
		middleware.HandleError(c, err)
		return
	}
	h.audit.Record(ctx, middleware.Actor(c), audit.KindBroadcast, "all",
		"sent="+strconv.Itoa(res.Sent)+" total="+strconv.Itoa(res.Total))
	c.JSON(http.StatusOK, BroadcastResponse{OK: err == nil, BroadcastResult: res})
}

// @Summary Admin action log
// @Description Newest first.
// @Tags admin
// @Produce json
// @Security AdminKey
// @Param target query string false "Only actions on this target"
// @Param limit query int false "Max results" default(100)
// @Success 200 {object} LogsResponse
// @Router /logs [get]
func (h *AdminHandlers) logs(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	actions, err := h.audit.Recent(c.Request.Context(), c.Query("target"), limit)
	if err != nil {
		middleware.HandleError(c, apperrors.NewStoreError("admin_actions.recent", err))
		return
	}
	if actions == nil {
		actions = []audit.Action{}
	}
	c.JSON(http.StatusOK, LogsResponse{Actions: actions})
}

// CronHandlers exposes the maintenance cycle to an external scheduler.
type CronHandlers struct {
	entitlements *entitlement.Manager
}

func NewCronHandlers(ent *entitlement.Manager) *CronHandlers {
	return &CronHandlers{entitlements: ent}
}

// @Summary Run reminders and the expiry sweep
// @Tags admin
// @Produce json
// @Security AdminKey
// @Param key query string false "Admin key, for schedulers that cannot set headers"
// @Success 200 {object} CronResponse
// @Failure 500 {object} middleware.ErrorResponse "Store unavailable"
// @Router /cron [post]
func (h *CronHandlers) run(c *gin.Context) {
	res, err := h.entitlements.RunCycle(c.Request.Context())
	if err != nil {
		middleware.HandleErrorWithStatus(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, CronResponse{OK: true, ExpiredCount: res.Expired, Notices: res.Notices})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			middleware.HandleError(c, apperrors.NewInvalidInputError(strings.ToLower(fe.Field()), "failed "+fe.Tag()+" check"))
			return false
		}
		middleware.HandleError(c, apperrors.NewInvalidInputError("body", "malformed JSON"))
		return false
	}
	return true
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		middleware.HandleError(c, apperrors.NewInvalidInputError("limit", "must be a positive number"))
		return 0, false
	}
	return min(n, maxListLimit), true
}
