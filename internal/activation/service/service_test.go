package service_test

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	"github.com/smallbiznis/tandem/internal/account/password"
	"github.com/smallbiznis/tandem/internal/activation/domain"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/token"
	"github.com/smallbiznis/tandem/internal/workflowtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Str0ngP@ss1"

func approved(t *testing.T, s *workflowtest.Stack) (*invitedomain.IssuedInvite, *accountdomain.Account, string) {
	t.Helper()
	inviter := s.SeedCouple(t)
	moderator := s.SeedModerator(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")
	s.SubmitProfile(t, issued.Token)
	return issued, moderator, s.Approve(t, &issued.Invite, moderator.ID)
}

func TestInviteToActivationScenario(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	moderator := s.SeedModerator(t)

	issued, err := s.Invites.Create(ctx, invitedomain.CreateInviteRequest{
		InviterAccountID: inviter.ID,
		InviteeEmail:     "bull@example.com",
		Role:             "single_male",
		TTL:              7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	s.SubmitProfile(t, issued.Token)
	activationToken := s.Approve(t, &issued.Invite, moderator.ID)

	resp, err := s.Activations.Complete(ctx, domain.CompleteRequest{Token: activationToken, Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusAwaitingCouple, resp.Invite.Status)
	require.NotNil(t, resp.Invite.LinkedAccountID)
	assert.Equal(t, resp.AccountID, *resp.Invite.LinkedAccountID)

	account, err := s.Accounts.FindByID(ctx, s.DB, resp.AccountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, accountdomain.KindSingle, account.Kind)
	assert.Equal(t, "bull@example.com", account.Email)
	require.NotNil(t, account.PasswordHash)
	assert.True(t, password.Verify(strongPassword, *account.PasswordHash))

	prof, err := s.Accounts.FindProfile(ctx, s.DB, resp.AccountID)
	require.NoError(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, "Bull", *prof.Nickname)
	assert.Equal(t, "Lisbon", *prof.City)

	invite, err := s.Invites.Get(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusAwaitingCouple, invite.Status)
	assert.NotNil(t, invite.ConsumedAt)

	check, err := s.Invites.VerifyToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeConsumed, check.Outcome)

	completed, err := s.Invites.ConfirmCouple(ctx, issued.Invite.ID, inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusCompleted, completed.Status)

	history, err := s.Invites.History(ctx, issued.Invite.ID)
	require.NoError(t, err)
	types := make([]string, 0, len(history))
	for _, event := range history {
		types = append(types, event.EventType)
	}
	assert.Equal(t, []string{
		inviteeventdomain.EventInviteCreated,
		inviteeventdomain.EventProfileSaved,
		inviteeventdomain.EventVerificationApproved,
		inviteeventdomain.EventActivationTokenCreated,
		inviteeventdomain.EventUserLinked,
		inviteeventdomain.EventActivationCompleted,
		inviteeventdomain.EventInviteCompleted,
	}, types)

	msgs := s.Mail.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"admin@tandem.test"}, msgs[2].To)
}

func TestActivationTokenIsSingleUse(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	_, _, activationToken := approved(t, s)

	_, err := s.Activations.Complete(ctx, domain.CompleteRequest{Token: activationToken, Password: strongPassword})
	require.NoError(t, err)

	_, err = s.Activations.Complete(ctx, domain.CompleteRequest{Token: activationToken, Password: strongPassword})
	var rejected *token.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, token.OutcomeConsumed, rejected.Outcome)

	check, err := s.Activations.Verify(ctx, activationToken)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeConsumed, check.Outcome)
}

func TestCompleteRejectsWeakPasswordWithoutConsuming(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	issued, _, activationToken := approved(t, s)

	_, err := s.Activations.Complete(ctx, domain.CompleteRequest{Token: activationToken, Password: "password"})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	check, err := s.Activations.Verify(ctx, activationToken)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeValid, check.Outcome)

	invite, err := s.Invites.Get(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusAwaitingActivation, invite.Status)
	assert.Nil(t, invite.LinkedAccountID)
}

func TestActivationTokenExpires(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	_, _, activationToken := approved(t, s)

	s.Clock.Advance(s.Policy.Get().ActivationTTL)

	check, err := s.Activations.Verify(ctx, activationToken)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeExpired, check.Outcome)

	_, err = s.Activations.Complete(ctx, domain.CompleteRequest{Token: activationToken, Password: strongPassword})
	var rejected *token.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, token.OutcomeExpired, rejected.Outcome)
}

func TestReissueSupersedesPreviousToken(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	issued, moderator, first := approved(t, s)

	_, err := s.Activations.Reissue(ctx, issued.Invite.ID, issued.Invite.InviterAccountID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	again, err := s.Activations.Reissue(ctx, issued.Invite.ID, moderator.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, again.Token)

	old, err := s.Activations.Verify(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeConsumed, old.Outcome)

	fresh, err := s.Activations.Verify(ctx, again.Token)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeValid, fresh.Outcome)

	_, err = s.Activations.Complete(ctx, domain.CompleteRequest{Token: again.Token, Password: strongPassword})
	require.NoError(t, err)

	_, err = s.Activations.Reissue(ctx, issued.Invite.ID, moderator.ID)
	assert.ErrorIs(t, err, invitedomain.ErrInvalidTransition)
}

func TestInviteTokenCannotActivate(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	issued, _, _ := approved(t, s)

	check, err := s.Activations.Verify(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeInvalid, check.Outcome)
}

func TestActivationOnRevokedInviteIsInvalid(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	issued, _, activationToken := approved(t, s)

	_, err := s.Invites.Revoke(ctx, issued.Invite.ID, issued.Invite.InviterAccountID)
	require.NoError(t, err)

	_, err = s.Activations.Complete(ctx, domain.CompleteRequest{Token: activationToken, Password: strongPassword})
	var rejected *token.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, token.OutcomeInvalid, rejected.Outcome)
}
