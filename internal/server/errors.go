package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	activationdomain "github.com/smallbiznis/tandem/internal/activation/domain"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"github.com/smallbiznis/tandem/internal/profile"
	"github.com/smallbiznis/tandem/internal/token"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
	"github.com/smallbiznis/tandem/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrTooManyRequests    = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger the same type/code pair the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var rejected *token.RejectedError
	if errors.As(err, &rejected) {
		return tokenRejection(rejected.Outcome)
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(err, code),
					Code:    code,
					Message: validationErrorMessage(err, code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    errorCode(err),
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, conflictPayload(err)
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    errorCode(err),
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// tokenRejection keeps invalid tokens indistinguishable from unknown ones.
func tokenRejection(outcome token.Outcome) (int, errorPayload) {
	payload := errorPayload{
		Type:    "token_rejected",
		Code:    "token_" + string(outcome),
		Message: "token " + string(outcome),
	}
	switch outcome {
	case token.OutcomeExpired, token.OutcomeConsumed:
		return http.StatusGone, payload
	default:
		payload.Code = "token_invalid"
		payload.Message = "token invalid"
		return http.StatusNotFound, payload
	}
}

func conflictPayload(err error) errorPayload {
	payload := errorPayload{
		Type:    "conflict",
		Code:    errorCode(err),
		Message: "conflict",
	}

	var transition *invitedomain.TransitionError
	var capExceeded *invitedomain.CapExceededError
	var ineligible *invitedomain.EligibilityError
	switch {
	case errors.As(err, &transition):
		payload.Code = invitedomain.ErrInvalidTransition.Error()
		payload.Message = "invite is " + string(transition.From)
	case errors.As(err, &capExceeded):
		payload.Code = invitedomain.ErrActiveInviteCapReached.Error()
		payload.Message = capExceeded.Error()
	case errors.As(err, &ineligible):
		payload.Code = invitedomain.ErrInviterIneligible.Error()
		payload.Message = string(ineligible.Reason)
	}
	return payload
}

// errorCode returns the sentinel code, dropping any detail a typed error adds.
func errorCode(err error) string {
	code, _, _ := strings.Cut(err.Error(), ":")
	return code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidCursor),
		errors.Is(err, profile.ErrInvalidProfile):
		return true
	case isInviteValidationError(err),
		isVerificationValidationError(err),
		isActivationValidationError(err),
		isAccountValidationError(err):
		return true
	default:
		return false
	}
}

func isInviteValidationError(err error) bool {
	switch {
	case errors.Is(err, invitedomain.ErrInvalidInviter),
		errors.Is(err, invitedomain.ErrInvalidEmail),
		errors.Is(err, invitedomain.ErrInvalidRole),
		errors.Is(err, invitedomain.ErrInvalidTTL),
		errors.Is(err, invitedomain.ErrInvalidStatus),
		errors.Is(err, invitedomain.ErrInvalidActor):
		return true
	default:
		return false
	}
}

func isVerificationValidationError(err error) bool {
	switch {
	case errors.Is(err, verificationdomain.ErrConsentRequired),
		errors.Is(err, verificationdomain.ErrInvalidMedia),
		errors.Is(err, verificationdomain.ErrInvalidDecision),
		errors.Is(err, verificationdomain.ErrInvalidActor):
		return true
	default:
		return false
	}
}

func isActivationValidationError(err error) bool {
	return errors.Is(err, activationdomain.ErrWeakPassword) ||
		errors.Is(err, activationdomain.ErrInvalidActor)
}

func isAccountValidationError(err error) bool {
	return errors.Is(err, accountdomain.ErrInvalidEmail)
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, invitedomain.ErrForbidden),
		errors.Is(err, verificationdomain.ErrForbidden),
		errors.Is(err, activationdomain.ErrForbidden):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, invitedomain.ErrInvalidTransition),
		errors.Is(err, invitedomain.ErrActiveInviteCapReached),
		errors.Is(err, invitedomain.ErrInviterIneligible),
		errors.Is(err, invitedomain.ErrInviteNotPending),
		errors.Is(err, invitedomain.ErrConcurrentUpdate),
		errors.Is(err, invitedomain.ErrSelfInvite),
		errors.Is(err, verificationdomain.ErrSessionDecided),
		errors.Is(err, verificationdomain.ErrProfileRequired),
		errors.Is(err, accountdomain.ErrEmailInUse),
		errors.Is(err, accountdomain.ErrUsernameExhausted):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invitedomain.ErrInviteNotFound),
		errors.Is(err, invitedomain.ErrInviterNotFound),
		errors.Is(err, verificationdomain.ErrSessionNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return errorCode(err)
}

func validationErrorField(err error, code string) string {
	var fieldErr *profile.FieldError
	if errors.As(err, &fieldErr) {
		return "profile." + fieldErr.Field
	}
	var mediaErr *verificationdomain.MediaError
	if errors.As(err, &mediaErr) {
		return "media"
	}
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(err error, code string) string {
	var fieldErr *profile.FieldError
	var mediaErr *verificationdomain.MediaError
	switch {
	case errors.As(err, &fieldErr):
		return fieldErr.Field + " " + fieldErr.Reason
	case errors.As(err, &mediaErr):
		return mediaErr.Reason
	case code == "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
