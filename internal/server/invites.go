package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
)

type createInviteRequest struct {
	InviteeEmail string `json:"invitee_email"`
	Role         string `json:"role"`
	TTLHours     int    `json:"ttl_hours"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type declineInviteRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

func (s *Server) CreateInvite(c *gin.Context) {
	actorID, _ := accountID(c)

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.TTLHours < 0 {
		AbortWithError(c, newValidationError("ttl_hours", "invalid_ttl", "ttl_hours must not be negative"))
		return
	}

	resp, err := s.inviteSvc.Create(c.Request.Context(), invitedomain.CreateInviteRequest{
		InviterAccountID: actorID,
		InviteeEmail:     strings.TrimSpace(req.InviteeEmail),
		Role:             strings.TrimSpace(req.Role),
		TTL:              time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInvites(c *gin.Context) {
	actorID, _ := accountID(c)

	resp, err := s.inviteSvc.ListMine(c.Request.Context(), actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevokeInvite(c *gin.Context) {
	actorID, _ := accountID(c)
	id, err := parseInviteID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inviteSvc.Revoke(c.Request.Context(), id, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResendInvite(c *gin.Context) {
	actorID, _ := accountID(c)
	id, err := parseInviteID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inviteSvc.Resend(c.Request.Context(), id, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConfirmInvite(c *gin.Context) {
	actorID, _ := accountID(c)
	id, err := parseInviteID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inviteSvc.ConfirmCouple(c.Request.Context(), id, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListInviteEvents returns the audit trail to the inviter that owns it.
func (s *Server) ListInviteEvents(c *gin.Context) {
	actorID, _ := accountID(c)
	id, err := parseInviteID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	invite, err := s.inviteSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if invite.InviterAccountID != actorID {
		AbortWithError(c, invitedomain.ErrForbidden)
		return
	}

	events, err := s.inviteSvc.History(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

// VerifyInviteToken always answers 200; the outcome is in the body.
func (s *Server) VerifyInviteToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	check, err := s.inviteSvc.VerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": check})
}

func (s *Server) DeclineInvite(c *gin.Context) {
	var req declineInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inviteSvc.Decline(c.Request.Context(), req.Token, optionalString(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
