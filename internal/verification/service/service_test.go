package service_test

import (
	"context"
	"testing"

	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/profile"
	"github.com/smallbiznis/tandem/internal/token"
	"github.com/smallbiznis/tandem/internal/verification/domain"
	"github.com/smallbiznis/tandem/internal/workflowtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func media() []domain.MediaItem {
	return []domain.MediaItem{
		{StorageKey: "uploads/a.jpg", Kind: domain.MediaPhoto, ContentType: "image/jpeg"},
		{StorageKey: "uploads/b.mp4", Kind: domain.MediaVerification, ContentType: "video/mp4"},
	}
}

func TestSubmitProfileAdvancesInvite(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")

	session := s.SubmitProfile(t, issued.Token)
	assert.Equal(t, domain.StatusAwaitingUploads, session.Status)
	require.NotNil(t, session.ConsentAcknowledgedAt)

	stored, err := session.Profile()
	require.NoError(t, err)
	assert.Equal(t, "Bull", *stored.Nickname)

	invite, err := s.Invites.Get(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusAwaitingVerification, invite.Status)

	// The invite token keeps working while awaiting verification.
	check, err := s.Invites.VerifyToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeValid, check.Outcome)

	again := s.SubmitProfile(t, issued.Token)
	assert.Equal(t, session.ID, again.ID)

	history, err := s.Invites.History(ctx, issued.Invite.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, inviteeventdomain.EventProfileSaved, history[1].EventType)
	assert.Equal(t, true, history[2].Metadata["resubmitted"])
}

func TestSubmitProfileValidation(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")

	_, err := s.Verifier.SubmitProfile(ctx, domain.SubmitProfileRequest{
		Token:   issued.Token,
		Profile: workflowtest.Profile(),
	})
	assert.ErrorIs(t, err, domain.ErrConsentRequired)

	incomplete := workflowtest.Profile()
	incomplete.City = nil
	_, err = s.Verifier.SubmitProfile(ctx, domain.SubmitProfileRequest{
		Token:               issued.Token,
		ConsentAcknowledged: true,
		Profile:             incomplete,
	})
	assert.ErrorIs(t, err, profile.ErrInvalidProfile)

	_, err = s.Verifier.SubmitProfile(ctx, domain.SubmitProfileRequest{
		Token:               "not-a-token",
		ConsentAcknowledged: true,
		Profile:             workflowtest.Profile(),
	})
	var rejected *token.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, token.OutcomeInvalid, rejected.Outcome)

	invite, err := s.Invites.Get(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusPending, invite.Status)
}

func TestSubmitMedia(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")

	_, err := s.Verifier.SubmitMedia(ctx, domain.SubmitMediaRequest{Token: issued.Token, Media: media()})
	assert.ErrorIs(t, err, domain.ErrProfileRequired)

	s.SubmitProfile(t, issued.Token)

	_, err = s.Verifier.SubmitMedia(ctx, domain.SubmitMediaRequest{
		Token: issued.Token,
		Media: []domain.MediaItem{{StorageKey: "a.jpg", Kind: domain.MediaPhoto, ContentType: "image/jpeg"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMedia)

	session, err := s.Verifier.SubmitMedia(ctx, domain.SubmitMediaRequest{Token: issued.Token, Media: media()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, session.Status)
	items, err := session.Media()
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// A profile resubmission keeps the uploaded media under review.
	resubmitted := s.SubmitProfile(t, issued.Token)
	assert.Equal(t, domain.StatusUnderReview, resubmitted.Status)
	assert.NotEmpty(t, resubmitted.SubmittedMedia)
}

func TestDecideApproveIssuesActivation(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	moderator := s.SeedModerator(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")
	s.SubmitProfile(t, issued.Token)

	notes := "looks good"
	resp, err := s.Verifier.Decide(ctx, domain.DecideRequest{
		InviteID: issued.Invite.ID,
		ActorID:  moderator.ID,
		Decision: domain.DecisionApprove,
		Notes:    &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusAwaitingActivation, resp.Invite.Status)
	assert.Equal(t, domain.StatusApproved, resp.Session.Status)
	require.NotNil(t, resp.Session.DecisionActorID)
	assert.Equal(t, moderator.ID, *resp.Session.DecisionActorID)
	assert.Contains(t, resp.ActivationLink, workflowtest.BaseURL+"/activate?token=")

	msgs := s.Mail.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"bull@example.com"}, msgs[1].To)
	assert.Contains(t, msgs[1].Body, resp.ActivationLink)

	activation, err := s.Activations.Verify(ctx, workflowtest.TokenFromLink(t, resp.ActivationLink))
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeValid, activation.Outcome)
}

func TestDecideRejectRevokesInvite(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	moderator := s.SeedModerator(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")
	s.SubmitProfile(t, issued.Token)

	reason := "photos do not match"
	resp, err := s.Verifier.Decide(ctx, domain.DecideRequest{
		InviteID: issued.Invite.ID,
		ActorID:  moderator.ID,
		Decision: domain.DecisionReject,
		Reason:   &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusRevoked, resp.Invite.Status)
	assert.NotNil(t, resp.Invite.ConsumedAt)
	assert.Equal(t, domain.StatusRejected, resp.Session.Status)
	require.NotNil(t, resp.Session.RejectionReason)
	assert.Equal(t, reason, *resp.Session.RejectionReason)
	assert.Empty(t, resp.ActivationLink)

	check, err := s.Invites.VerifyToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, token.OutcomeInvalid, check.Outcome)
}

func TestDecideGuards(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	moderator := s.SeedModerator(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")

	_, err := s.Verifier.Decide(ctx, domain.DecideRequest{
		InviteID: issued.Invite.ID,
		ActorID:  inviter.ID,
		Decision: domain.DecisionApprove,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = s.Verifier.Decide(ctx, domain.DecideRequest{
		InviteID: issued.Invite.ID,
		ActorID:  moderator.ID,
		Decision: "maybe",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)

	// Pending invites have nothing to decide.
	_, err = s.Verifier.Decide(ctx, domain.DecideRequest{
		InviteID: issued.Invite.ID,
		ActorID:  moderator.ID,
		Decision: domain.DecisionApprove,
	})
	assert.ErrorIs(t, err, invitedomain.ErrInvalidTransition)
}

func TestDecideOnRevokedInviteConflicts(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	moderator := s.SeedModerator(t)
	issued := s.Invite(t, inviter.ID, "bull@example.com")
	s.SubmitProfile(t, issued.Token)

	_, err := s.Invites.Revoke(ctx, issued.Invite.ID, inviter.ID)
	require.NoError(t, err)

	_, err = s.Verifier.Decide(ctx, domain.DecideRequest{
		InviteID: issued.Invite.ID,
		ActorID:  moderator.ID,
		Decision: domain.DecisionApprove,
	})
	var transition *invitedomain.TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, invitedomain.StatusRevoked, transition.From)

	invite, err := s.Invites.Get(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusRevoked, invite.Status)

	session, err := s.Verifier.GetSession(ctx, issued.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingUploads, session.Status)
}

func TestModerationListingJoinsSession(t *testing.T) {
	s := workflowtest.New(t)
	ctx := context.Background()
	inviter := s.SeedCouple(t)
	moderator := s.SeedModerator(t)
	withProfile := s.Invite(t, inviter.ID, "bull@example.com")
	s.Invite(t, inviter.ID, "other@example.com")
	s.SubmitProfile(t, withProfile.Token)

	resp, err := s.Invites.ListForModeration(ctx, invitedomain.ModerationListRequest{
		ActorID:  moderator.ID,
		Statuses: []invitedomain.Status{invitedomain.StatusAwaitingVerification},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, withProfile.Invite.ID, resp.Items[0].Invite.ID)
	require.NotNil(t, resp.Items[0].Session)
	assert.Equal(t, string(domain.StatusAwaitingUploads), resp.Items[0].Session.Status)

	all, err := s.Invites.ListForModeration(ctx, invitedomain.ModerationListRequest{ActorID: moderator.ID})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
}
