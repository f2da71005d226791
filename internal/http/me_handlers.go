package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/middleware"
	"github.com/open-builders/premium-backend/internal/domain/verification"
	"github.com/open-builders/premium-backend/internal/service/entitlement"
	queuesvc "github.com/open-builders/premium-backend/internal/service/queue"
	verifsvc "github.com/open-builders/premium-backend/internal/service/verification"
)

// MeHandlers serves the Mini App caller identified by Telegram init-data.
type MeHandlers struct {
	entitlements *entitlement.Manager
	claims       *verifsvc.Service
	queue        *queuesvc.Service
}

func NewMeHandlers(ent *entitlement.Manager, claims *verifsvc.Service, q *queuesvc.Service) *MeHandlers {
	return &MeHandlers{entitlements: ent, claims: claims, queue: q}
}

func (h *MeHandlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/status", h.status)
	r.GET("/claims", h.listClaims)
	r.POST("/claims", h.submitClaim)
	r.POST("/queue", h.enqueue)
}

func callerID(c *gin.Context) (int64, bool) {
	tgUser, ok := middleware.TelegramUser(c)
	if !ok {
		middleware.HandleError(c, apperrors.NewUnauthorizedError("missing init data"))
		return 0, false
	}
	return tgUser.ID, true
}

// @Summary Caller's premium status
// @Tags me
// @Produce json
// @Param X-Telegram-Init-Data header string true "Telegram Mini App init data"
// @Success 200 {object} user.Status
// @Failure 401 {object} middleware.ErrorResponse "Missing or invalid init data"
// @Router /me/status [get]
func (h *MeHandlers) status(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	st, err := h.entitlements.Status(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary Caller's verification claims
// @Tags me
// @Produce json
// @Param X-Telegram-Init-Data header string true "Telegram Mini App init data"
// @Success 200 {object} ClaimsResponse
// @Router /me/claims [get]
func (h *MeHandlers) listClaims(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	claims := make([]verification.Claim, 0)
	for claim, err := range h.claims.List(c.Request.Context(), verification.Filter{UserID: id}) {
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		claims = append(claims, claim)
		if len(claims) >= defaultListLimit {
			break
		}
	}
	c.JSON(http.StatusOK, ClaimsResponse{Claims: claims})
}

// @Summary Submit payment proof
// @Description Stores a pending claim for admin review.
// @Tags me
// @Accept json
// @Produce json
// @Param X-Telegram-Init-Data header string true "Telegram Mini App init data"
// @Param request body ClaimRequest true "Rail and proof"
// @Success 201 {object} verification.Claim
// @Failure 400 {object} middleware.ErrorResponse "Unknown rail or empty proof"
// @Router /me/claims [post]
func (h *MeHandlers) submitClaim(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req ClaimRequest
	if !bindJSON(c, &req) {
		return
	}
	claim, err := h.claims.Submit(c.Request.Context(), id, verification.Kind(strings.ToLower(req.Kind)), req.Payload)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, claim)
}

// @Summary Join the premium queue
// @Description Joining twice returns the existing entry with created=false.
// @Tags me
// @Produce json
// @Param X-Telegram-Init-Data header string true "Telegram Mini App init data"
// @Success 200 {object} EnqueueResponse
// @Router /me/queue [post]
func (h *MeHandlers) enqueue(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	entry, created, err := h.queue.Enqueue(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, EnqueueResponse{Entry: entry, Created: created})
}
