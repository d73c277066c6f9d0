package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	activationdomain "github.com/smallbiznis/tandem/internal/activation/domain"
)

// VerifyActivationToken answers 200 for every outcome, like the invite probe.
func (s *Server) VerifyActivationToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	check, err := s.activationSvc.Verify(c.Request.Context(), req.Token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": check})
}

func (s *Server) CompleteActivation(c *gin.Context) {
	var req activationdomain.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.activationSvc.Complete(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
