package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
	"github.com/smallbiznis/tandem/pkg/db/pagination"
)

type decisionRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// decisionResponse leaves out the activation link; it only goes to the invitee.
type decisionResponse struct {
	Invite  invitedomain.Invite        `json:"invite"`
	Session verificationdomain.Session `json:"session"`
}

type activationResendResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) ListModerationInvites(c *gin.Context) {
	actorID, _ := accountID(c)

	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	statuses, err := parseStatusList(query.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inviteSvc.ListForModeration(c.Request.Context(), invitedomain.ModerationListRequest{
		Pagination: query.Pagination,
		ActorID:    actorID,
		Statuses:   statuses,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveInvite(c *gin.Context) {
	s.decide(c, verificationdomain.DecisionApprove)
}

func (s *Server) RejectInvite(c *gin.Context) {
	s.decide(c, verificationdomain.DecisionReject)
}

func (s *Server) decide(c *gin.Context, decision verificationdomain.Decision) {
	actorID, _ := accountID(c)
	id, err := parseInviteID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The body is optional for approvals.
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.verificationSvc.Decide(c.Request.Context(), verificationdomain.DecideRequest{
		InviteID: id,
		ActorID:  actorID,
		Decision: decision,
		Reason:   optionalString(req.Reason),
		Notes:    optionalString(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": decisionResponse{
		Invite:  resp.Invite,
		Session: resp.Session,
	}})
}

func (s *Server) ResendActivation(c *gin.Context) {
	actorID, _ := accountID(c)
	id, err := parseInviteID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	issued, err := s.activationSvc.Reissue(c.Request.Context(), id, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": activationResendResponse{ExpiresAt: issued.ExpiresAt}})
}
