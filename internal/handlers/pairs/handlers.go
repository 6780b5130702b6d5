// Package pairs exposes the invitation and pairing core over HTTP. All
// routes require an authenticated identity in the gin context; business
// rules stay in internal/pairing, handlers only translate.
package pairs

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/charleshuang3/medipair/internal/identity"
	"github.com/charleshuang3/medipair/internal/models"
	"github.com/charleshuang3/medipair/internal/pairing"
)

var (
	logger = log.With().Str("component", "pairs-api").Logger()
)

type Handler struct {
	invitations *pairing.InvitationService
	pairs       *pairing.PairService
}

func NewHandler(invitations *pairing.InvitationService, pairs *pairing.PairService) *Handler {
	return &Handler{
		invitations: invitations,
		pairs:       pairs,
	}
}

// RegisterHandlers wires the routes. respondLimiter guards the respond
// endpoint against code guessing; pass gin middleware or nil.
func (h *Handler) RegisterHandlers(rg *gin.RouterGroup, respondLimiter gin.HandlerFunc) {
	invRoutes := rg.Group("/invitations")
	{
		invRoutes.POST("", h.createInvitation)
		invRoutes.GET("/sent", h.listSent)
		invRoutes.GET("/received", h.listReceived)
		invRoutes.GET("/stats", h.stats)
		invRoutes.GET("/:code", h.findByCode)

		if respondLimiter != nil {
			invRoutes.POST("/:code/respond", respondLimiter, h.respond)
		} else {
			invRoutes.POST("/:code/respond", h.respond)
		}
	}

	rg.GET("/pair", h.currentPair)
	rg.DELETE("/pairs/:id", h.terminatePair)
}

var httpStatusByCode = map[string]int{
	pairing.CodeUnauthorized:       http.StatusUnauthorized,
	pairing.CodeInvitationNotFound: http.StatusNotFound,
	pairing.CodeDuplicatePair:      http.StatusConflict,
}

func responseError(c *gin.Context, err error) {
	var perr *pairing.Error
	if errors.As(err, &perr) {
		status, ok := httpStatusByCode[perr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error": gin.H{"code": perr.Code, "message": perr.Message},
		})
		return
	}

	logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"code": "INTERNAL", "message": "internal error"},
	})
}

type invitationJSON struct {
	ID           string    `json:"id"`
	InviterID    string    `json:"inviter_id"`
	InviteeEmail string    `json:"invitee_email"`
	TargetRole   string    `json:"target_role"`
	Code         string    `json:"code"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Message      *string   `json:"message,omitempty"`
}

func toInvitationJSON(inv *models.Invitation) invitationJSON {
	return invitationJSON{
		ID:           inv.ID,
		InviterID:    inv.InviterID,
		InviteeEmail: inv.InviteeEmail,
		TargetRole:   inv.TargetRole,
		Code:         inv.Code,
		Status:       inv.Status,
		ExpiresAt:    inv.ExpiresAt,
		CreatedAt:    inv.CreatedAt,
		UpdatedAt:    inv.UpdatedAt,
		Message:      inv.Message,
	}
}

type createInvitationParams struct {
	InviteeEmail string `json:"invitee_email" binding:"required"`
	TargetRole   string `json:"target_role" binding:"required"`
	Message      string `json:"message"`
}

func (h *Handler) createInvitation(c *gin.Context) {
	params := &createInvitationParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": pairing.CodeValidationFailed, "message": "missing required parameters: " + err.Error()},
		})
		return
	}

	res, err := h.invitations.Create(c.Request.Context(), identity.CurrentUser(c), pairing.CreateParams{
		InviteeEmail: params.InviteeEmail,
		TargetRole:   params.TargetRole,
		Message:      params.Message,
	})
	if err != nil {
		responseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"invitation":     toInvitationJSON(res.Invitation),
		"invitation_url": res.InvitationURL,
		"qr_payload":     res.QRPayload,
	})
}

func (h *Handler) findByCode(c *gin.Context) {
	details, err := h.invitations.FindByCode(c.Request.Context(), pairing.FindParams{
		Code: c.Param("code"),
	})
	if err != nil {
		responseError(c, err)
		return
	}

	caller := identity.CurrentUser(c)
	if !pairing.CanReadInvitation(caller, details.Invitation) {
		responseError(c, pairing.ErrInvitationNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invitation": toInvitationJSON(details.Invitation),
		"inviter": gin.H{
			"id":    details.Inviter.ID,
			"name":  details.Inviter.Name,
			"email": details.Inviter.Email,
			"role":  details.Inviter.Role,
		},
		"is_expired":             details.IsExpired,
		"is_responded":           details.IsResponded,
		"is_valid":               details.IsValid,
		"time_to_expiry_seconds": int64(details.TimeToExpiry.Seconds()),
	})
}

type respondParams struct {
	Action string `json:"action" binding:"required"`
}

func (h *Handler) respond(c *gin.Context) {
	params := &respondParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": pairing.CodeValidationFailed, "message": "missing required parameters: " + err.Error()},
		})
		return
	}

	res, err := h.invitations.Respond(c.Request.Context(), identity.CurrentUser(c), pairing.RespondParams{
		Code:   c.Param("code"),
		Action: params.Action,
	})
	if err != nil {
		responseError(c, err)
		return
	}

	body := gin.H{"invitation": toInvitationJSON(res.Invitation)}
	if res.PairID != "" {
		body["pair_id"] = res.PairID
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) listSent(c *gin.Context) {
	invs, err := h.invitations.ListSent(c.Request.Context(), identity.CurrentUser(c), c.QueryArray("status"))
	if err != nil {
		responseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": toInvitationListJSON(invs)})
}

func (h *Handler) listReceived(c *gin.Context) {
	invs, err := h.invitations.ListReceived(c.Request.Context(), identity.CurrentUser(c), c.QueryArray("status"))
	if err != nil {
		responseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": toInvitationListJSON(invs)})
}

func toInvitationListJSON(invs []models.Invitation) []invitationJSON {
	out := make([]invitationJSON, 0, len(invs))
	for i := range invs {
		out = append(out, toInvitationJSON(&invs[i]))
	}
	return out
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.invitations.Stats(c.Request.Context(), identity.CurrentUser(c))
	if err != nil {
		responseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sent":          stats.Sent,
		"received":      stats.Received,
		"accepted":      stats.Accepted,
		"expired":       stats.Expired,
		"created_today": stats.CreatedToday,
	})
}

func (h *Handler) currentPair(c *gin.Context) {
	caller := identity.CurrentUser(c)
	if caller == nil {
		responseError(c, pairing.ErrUnauthorized)
		return
	}

	view, err := h.pairs.Query(c.Request.Context(), caller.ID)
	if err != nil {
		responseError(c, err)
		return
	}
	if view == nil {
		c.JSON(http.StatusOK, gin.H{"pair": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pair": gin.H{
			"id":             view.Pair.ID,
			"patient_id":     view.Pair.PatientID,
			"supporter_id":   view.Pair.SupporterID,
			"patient_name":   view.PatientName,
			"supporter_name": view.SupporterName,
			"status":         view.Pair.Status,
			"created_at":     view.Pair.CreatedAt,
			"updated_at":     view.Pair.UpdatedAt,
		},
	})
}

func (h *Handler) terminatePair(c *gin.Context) {
	caller := identity.CurrentUser(c)
	if caller == nil {
		responseError(c, pairing.ErrUnauthorized)
		return
	}

	if err := h.pairs.Terminate(c.Request.Context(), c.Param("id"), caller.ID); err != nil {
		responseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
