package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tandem/internal/config"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"github.com/smallbiznis/tandem/internal/migration"
	"github.com/smallbiznis/tandem/internal/observability"
	obsmetrics "github.com/smallbiznis/tandem/internal/observability/metrics"
	"github.com/smallbiznis/tandem/internal/profile"
	"github.com/smallbiznis/tandem/internal/ratelimit"
	"github.com/smallbiznis/tandem/internal/token"
	"github.com/smallbiznis/tandem/internal/workflowtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	stack  *workflowtest.Stack
	engine *gin.Engine
}

func newTestServer(t *testing.T, limiter ...*ratelimit.ProbeLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stack := workflowtest.New(t)
	log := zaptest.NewLogger(t)
	engine := NewEngine(observability.Config{}, obsmetrics.NewHTTPMetrics())
	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{PublicBaseURL: workflowtest.BaseURL},
		Log:             log,
		InviteSvc:       stack.Invites,
		VerificationSvc: stack.Verifier,
		ActivationSvc:   stack.Activations,
		Migrations:      migration.NewRunner(stack.DB, log),
		ProbeLimiter:    firstLimiter(limiter),
	})
	return &testServer{stack: stack, engine: engine}
}

func firstLimiter(limiters []*ratelimit.ProbeLimiter) *ratelimit.ProbeLimiter {
	if len(limiters) == 0 {
		return nil
	}
	return limiters[0]
}

// budgetBucket allows a fixed number of calls per key.
type budgetBucket struct {
	budget int
	used   map[string]int
	err    error
}

func (b *budgetBucket) Allow(_ context.Context, key string, _ float64, burst int) (*ratelimit.Result, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.used[key]++
	if b.used[key] > b.budget {
		return &ratelimit.Result{Allowed: false, Limit: burst, RetryAfter: 1500 * time.Millisecond}, nil
	}
	return &ratelimit.Result{Allowed: true, Limit: burst, Remaining: b.budget - b.used[key]}, nil
}

func (s *testServer) do(t *testing.T, method, path string, actor snowflake.ID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body == nil {
		payload = &bytes.Buffer{}
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if actor != 0 {
		req.Header.Set(HeaderAccountID, actor.String())
	}
	resp := httptest.NewRecorder()
	s.engine.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body), resp.Body.String())
	return body.Error
}

func lastLink(t *testing.T, stack *workflowtest.Stack) string {
	t.Helper()
	messages := stack.Mail.Messages()
	require.NotEmpty(t, messages)
	for i := len(messages) - 1; i >= 0; i-- {
		for _, field := range strings.Fields(messages[i].Body) {
			if strings.HasPrefix(field, workflowtest.BaseURL) {
				return workflowtest.TokenFromLink(t, field)
			}
		}
	}
	t.Fatal("no link in outgoing mail")
	return ""
}

func TestInviteLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	couple := s.stack.SeedCouple(t)
	moderator := s.stack.SeedModerator(t)

	resp := s.do(t, http.MethodPost, "/v1/invites", couple.ID, gin.H{
		"invitee_email": "Bull@Example.com",
		"role":          "single_male",
		"ttl_hours":     48,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var issued invitedomain.IssuedInvite
	decodeData(t, resp, &issued)
	assert.Equal(t, "bull@example.com", issued.Invite.InviteeEmail)
	assert.Equal(t, invitedomain.StatusPending, issued.Invite.Status)
	require.NotEmpty(t, issued.Token)
	assert.True(t, strings.HasPrefix(issued.Link, workflowtest.BaseURL))

	resp = s.do(t, http.MethodPost, "/v1/invites/verify", 0, gin.H{"token": issued.Token})
	require.Equal(t, http.StatusOK, resp.Code)
	var check invitedomain.TokenCheck
	decodeData(t, resp, &check)
	assert.Equal(t, token.OutcomeValid, check.Outcome)

	resp = s.do(t, http.MethodPost, "/v1/verification/profile", 0, gin.H{
		"token":               issued.Token,
		"consentAcknowledged": true,
		"profile":             workflowtest.Profile(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.do(t, http.MethodPost, "/v1/verification/media", 0, gin.H{
		"token": issued.Token,
		"media": []gin.H{
			{"storageKey": "uploads/a.jpg", "kind": "verification", "contentType": "image/jpeg"},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/v1/moderation/invites?status=awaiting_verification&page_size=10", moderator.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var listing invitedomain.ModerationListResponse
	decodeData(t, resp, &listing)
	require.Len(t, listing.Items, 1)
	require.NotNil(t, listing.Items[0].Session)
	assert.Equal(t, "under_review", listing.Items[0].Session.Status)

	resp = s.do(t, http.MethodPost, "/v1/moderation/invites/"+issued.Invite.ID.String()+"/approve", moderator.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.NotContains(t, resp.Body.String(), "activation_link")
	activationToken := lastLink(t, s.stack)

	resp = s.do(t, http.MethodPost, "/v1/activation/verify", 0, gin.H{"token": activationToken})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = s.do(t, http.MethodPost, "/v1/activation/complete", 0, gin.H{
		"token":    activationToken,
		"password": "Str0ngP@ss1",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.do(t, http.MethodPost, "/v1/activation/complete", 0, gin.H{
		"token":    activationToken,
		"password": "Str0ngP@ss1",
	})
	assert.Equal(t, http.StatusGone, resp.Code)
	assert.Equal(t, "token_consumed", decodeError(t, resp).Code)

	resp = s.do(t, http.MethodPost, "/v1/invites/"+issued.Invite.ID.String()+"/confirm", couple.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var confirmed invitedomain.Invite
	decodeData(t, resp, &confirmed)
	assert.Equal(t, invitedomain.StatusCompleted, confirmed.Status)

	resp = s.do(t, http.MethodGet, "/v1/invites/"+issued.Invite.ID.String()+"/events", couple.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var events []struct {
		EventType string `json:"event_type"`
	}
	decodeData(t, resp, &events)
	require.NotEmpty(t, events)
	assert.Equal(t, "invite.created", events[0].EventType)
	assert.Equal(t, "invite.completed", events[len(events)-1].EventType)

	resp = s.do(t, http.MethodGet, "/v1/invites/"+issued.Invite.ID.String()+"/events", moderator.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestInviteRoutesRequireAccount(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/v1/invites", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/invites", nil)
	req.Header.Set(HeaderAccountID, "not-a-number")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	resp = s.do(t, http.MethodPost, "/v1/invites/not-a-uuid/revoke", s.stack.SeedCouple(t).ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTokenRejectionsMapToStatus(t *testing.T) {
	s := newTestServer(t)
	couple := s.stack.SeedCouple(t)
	issued := s.stack.Invite(t, couple.ID, "late@example.com")

	resp := s.do(t, http.MethodPost, "/v1/invites/decline", 0, gin.H{"token": "garbage", "reason": "no"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "token_invalid", decodeError(t, resp).Code)

	resp = s.do(t, http.MethodPost, "/v1/invites/verify", 0, gin.H{"token": "garbage"})
	require.Equal(t, http.StatusOK, resp.Code)
	var check invitedomain.TokenCheck
	decodeData(t, resp, &check)
	assert.Equal(t, token.OutcomeInvalid, check.Outcome)
	assert.Nil(t, check.Invite)

	s.stack.Clock.Advance(8 * 24 * time.Hour)
	resp = s.do(t, http.MethodPost, "/v1/verification/profile", 0, gin.H{
		"token":               issued.Token,
		"consentAcknowledged": true,
		"profile":             workflowtest.Profile(),
	})
	assert.Equal(t, http.StatusGone, resp.Code)
	assert.Equal(t, "token_expired", decodeError(t, resp).Code)
}

func TestCreateInviteValidationAndConflicts(t *testing.T) {
	s := newTestServer(t)
	couple := s.stack.SeedCouple(t)

	resp := s.do(t, http.MethodPost, "/v1/invites", couple.ID, gin.H{"invitee_email": "x@example.com", "role": "couple"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_role", decodeError(t, resp).Code)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		s.stack.Invite(t, couple.ID, email)
	}
	resp = s.do(t, http.MethodPost, "/v1/invites", couple.ID, gin.H{"invitee_email": "d@example.com", "role": "single_female"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "active_invite_cap_reached", decodeError(t, resp).Code)
}

func TestModerationListingIsStaffOnly(t *testing.T) {
	s := newTestServer(t)
	couple := s.stack.SeedCouple(t)

	resp := s.do(t, http.MethodGet, "/v1/moderation/invites", couple.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	moderator := s.stack.SeedModerator(t)
	resp = s.do(t, http.MethodGet, "/v1/moderation/invites?status=pending,bogus", moderator.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.do(t, http.MethodGet, "/v1/moderation/invites?page_token=%25%25", moderator.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTokenRoutesAreRateLimited(t *testing.T) {
	bucket := &budgetBucket{budget: 2, used: map[string]int{}}
	s := newTestServer(t, ratelimit.New(bucket, 1, 2))

	for i := 0; i < 2; i++ {
		resp := s.do(t, http.MethodPost, "/v1/activation/verify", 0, gin.H{"token": "garbage"})
		require.Equal(t, http.StatusOK, resp.Code)
	}
	resp := s.do(t, http.MethodPost, "/v1/invites/verify", 0, gin.H{"token": "garbage"})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "2", resp.Header().Get("Retry-After"))

	// Authenticated routes do not spend the probe budget.
	resp = s.do(t, http.MethodGet, "/v1/invites", s.stack.SeedCouple(t).ID, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	bucket.err = errors.New("redis down")
	resp = s.do(t, http.MethodPost, "/v1/invites/verify", 0, gin.H{"token": "garbage"})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestReadyAppliesSchema(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/health/ready", 0, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = s.do(t, http.MethodGet, "/nowhere", 0, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"transition", &invitedomain.TransitionError{From: invitedomain.StatusRevoked, To: invitedomain.StatusAwaitingCouple}, http.StatusConflict, "invalid_transition"},
		{"ineligible", &invitedomain.EligibilityError{Reason: invitedomain.ReasonAccountKind}, http.StatusConflict, "inviter_ineligible"},
		{"profile field", &profile.FieldError{Field: "city", Reason: "required"}, http.StatusBadRequest, "invalid_profile"},
		{"forbidden", invitedomain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", invitedomain.ErrInviteNotFound, http.StatusNotFound, "invite_not_found"},
		{"consumed", token.Reject(token.OutcomeConsumed), http.StatusGone, "token_consumed"},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, payload.Code)
		})
	}

	_, payload := mapError(&profile.FieldError{Field: "city", Reason: "required"})
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "profile.city", payload.Errors[0].Field)

	_, payload = mapError(&invitedomain.TransitionError{From: invitedomain.StatusRevoked})
	assert.Equal(t, "invite is revoked", payload.Message)
}
