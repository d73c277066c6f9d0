package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
)

func (s *Server) SubmitProfile(c *gin.Context) {
	var req verificationdomain.SubmitProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.verificationSvc.SubmitProfile(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitMedia(c *gin.Context) {
	var req verificationdomain.SubmitMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.verificationSvc.SubmitMedia(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
