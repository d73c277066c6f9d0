package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
)

func parseInviteID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return uuid.Nil, invitedomain.ErrInviteNotFound
	}
	return id, nil
}

// parseStatusList reads a comma separated status filter. Empty means all.
func parseStatusList(value string) ([]invitedomain.Status, error) {
	var out []invitedomain.Status
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed == "" {
			continue
		}
		status, ok := invitedomain.ParseStatus(trimmed)
		if !ok {
			return nil, newValidationError("status", "invalid_status", "unknown status "+trimmed)
		}
		out = append(out, status)
	}
	return out, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
