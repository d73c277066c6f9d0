// Package workflowtest wires the invite workflow services over an in-memory
// database for tests that span more than one package.
package workflowtest

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	accountrepository "github.com/smallbiznis/tandem/internal/account/repository"
	accountservice "github.com/smallbiznis/tandem/internal/account/service"
	activationdomain "github.com/smallbiznis/tandem/internal/activation/domain"
	activationrepository "github.com/smallbiznis/tandem/internal/activation/repository"
	activationservice "github.com/smallbiznis/tandem/internal/activation/service"
	"github.com/smallbiznis/tandem/internal/authorization"
	"github.com/smallbiznis/tandem/internal/clock"
	"github.com/smallbiznis/tandem/internal/config"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	inviterepository "github.com/smallbiznis/tandem/internal/invite/repository"
	inviteservice "github.com/smallbiznis/tandem/internal/invite/service"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	inviteeventrepository "github.com/smallbiznis/tandem/internal/inviteevent/repository"
	inviteeventservice "github.com/smallbiznis/tandem/internal/inviteevent/service"
	"github.com/smallbiznis/tandem/internal/lock"
	"github.com/smallbiznis/tandem/internal/migration"
	"github.com/smallbiznis/tandem/internal/notification"
	"github.com/smallbiznis/tandem/internal/profile"
	"github.com/smallbiznis/tandem/internal/token"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
	verificationrepository "github.com/smallbiznis/tandem/internal/verification/repository"
	verificationservice "github.com/smallbiznis/tandem/internal/verification/service"
	"github.com/smallbiznis/tandem/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const BaseURL = "https://tandem.test"

type Stack struct {
	DB     *gorm.DB
	Clock  *clock.FakeClock
	Node   *snowflake.Node
	Mail   *notification.Recorder
	Policy *config.InvitePolicyHolder

	Accounts    accountdomain.Repository
	InviteRepo  invitedomain.Repository
	Events      inviteeventdomain.Service
	Linker      accountdomain.Linker
	Authz       authorization.Service
	Invites     invitedomain.Service
	Verifier    verificationdomain.Service
	Activations activationdomain.Service
}

// New builds the full service graph the way the fx modules do.
func New(t testing.TB) *Stack {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	s := &Stack{
		DB:         conn,
		Clock:      clock.NewFakeClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)),
		Node:       node,
		Mail:       &notification.Recorder{},
		Policy:     config.NewStaticInvitePolicy(config.DefaultInvitePolicy()),
		Accounts:   accountrepository.Provide(),
		InviteRepo: inviterepository.Provide(),
	}
	cfg := config.Config{PublicBaseURL: BaseURL}
	codec := token.NewCodec()
	sessions := verificationrepository.Provide()
	notifier := notification.NewDispatcher(s.Mail, []string{"admin@tandem.test"}, nil, log)

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	s.Authz = authorization.NewService(authorization.Params{
		DB:          conn,
		Log:         log,
		Enforcer:    enforcer,
		AccountRepo: s.Accounts,
	})

	s.Events = inviteeventservice.NewService(inviteeventservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: s.Clock,
		Repo:  inviteeventrepository.Provide(),
	})
	s.Invites = inviteservice.NewService(inviteservice.Params{
		DB:          conn,
		Log:         log,
		Config:      cfg,
		Policy:      s.Policy,
		Clock:       s.Clock,
		Codec:       codec,
		Repo:        s.InviteRepo,
		AccountRepo: s.Accounts,
		SessionRepo: sessions,
		Events:      s.Events,
		Notifier:    notifier,
		Locker:      lock.NoopLocker{},
		Authz:       s.Authz,
	})
	s.Linker = accountservice.NewService(accountservice.Params{
		Log:         log,
		GenID:       node,
		Clock:       s.Clock,
		Repo:        s.Accounts,
		InviteRepo:  s.InviteRepo,
		SessionRepo: sessions,
		Events:      s.Events,
	})
	s.Activations = activationservice.NewService(activationservice.Params{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Config:      cfg,
		Policy:      s.Policy,
		Clock:       s.Clock,
		Codec:       codec,
		Repo:        activationrepository.Provide(),
		Invites:     s.Invites,
		InviteRepo:  s.InviteRepo,
		AccountRepo: s.Accounts,
		Linker:      s.Linker,
		Events:      s.Events,
		Notifier:    notifier,
		Authz:       s.Authz,
	})
	s.Verifier = verificationservice.NewService(verificationservice.Params{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Clock:       s.Clock,
		Repo:        sessions,
		Invites:     s.Invites,
		AccountRepo: s.Accounts,
		Issuer:      activationservice.ProvideIssuer(s.Activations),
		Events:      s.Events,
		Notifier:    notifier,
		Authz:       s.Authz,
	})
	return s
}

// SeedCouple inserts a paired account that is allowed to invite.
func (s *Stack) SeedCouple(t testing.TB) *accountdomain.Account {
	t.Helper()
	now := s.Clock.Now()
	expires := now.AddDate(1, 0, 0)
	partner := "partner." + s.Node.Generate().String() + "@example.com"
	id := s.Node.Generate()
	account := &accountdomain.Account{
		ID:                   id,
		Kind:                 accountdomain.KindPaired,
		Username:             "couple_" + id.String(),
		Email:                "couple." + id.String() + "@example.com",
		PartnerEmail:         &partner,
		EmailVerified:        true,
		PartnerEmailVerified: true,
		DisplayName:          "Mara & Theo",
		MembershipTier:       "premium",
		MembershipExpiresAt:  &expires,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, s.Accounts.Insert(context.Background(), s.DB, account))
	return account
}

// SeedModerator inserts a staff account with the moderator role.
func (s *Stack) SeedModerator(t testing.TB) *accountdomain.Account {
	t.Helper()
	now := s.Clock.Now()
	id := s.Node.Generate()
	account := &accountdomain.Account{
		ID:             id,
		Kind:           accountdomain.KindSingle,
		Username:       "mod_" + id.String(),
		Email:          "mod." + id.String() + "@tandem.test",
		EmailVerified:  true,
		MembershipTier: accountdomain.TierFree,
		StaffRole:      accountdomain.StaffModerator,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.Accounts.Insert(context.Background(), s.DB, account))
	return account
}

// Invite creates a single_male invite with the default lifetime.
func (s *Stack) Invite(t testing.TB, inviterID snowflake.ID, email string) *invitedomain.IssuedInvite {
	t.Helper()
	issued, err := s.Invites.Create(context.Background(), invitedomain.CreateInviteRequest{
		InviterAccountID: inviterID,
		InviteeEmail:     email,
		Role:             string(invitedomain.RoleSingleMale),
	})
	require.NoError(t, err)
	return issued
}

// Profile returns a complete submission.
func Profile() profile.Submission {
	str := func(v string) *string { return &v }
	return profile.Submission{
		Nickname:     str("Bull"),
		ContactEmail: str("bull.contact@example.com"),
		Country:      str("PT"),
		City:         str("Lisbon"),
		Bio:          str("Hi there"),
	}
}

// SubmitProfile acknowledges consent and stores Profile for the invite token.
func (s *Stack) SubmitProfile(t testing.TB, combined string) *verificationdomain.Session {
	t.Helper()
	session, err := s.Verifier.SubmitProfile(context.Background(), verificationdomain.SubmitProfileRequest{
		Token:               combined,
		ConsentAcknowledged: true,
		Profile:             Profile(),
	})
	require.NoError(t, err)
	return session
}

// Approve decides the invite's session as moderatorID and returns the
// activation token taken from the link.
func (s *Stack) Approve(t testing.TB, invite *invitedomain.Invite, moderatorID snowflake.ID) string {
	t.Helper()
	resp, err := s.Verifier.Decide(context.Background(), verificationdomain.DecideRequest{
		InviteID: invite.ID,
		ActorID:  moderatorID,
		Decision: verificationdomain.DecisionApprove,
	})
	require.NoError(t, err)
	return TokenFromLink(t, resp.ActivationLink)
}

// TokenFromLink extracts the token query parameter from a mailed link.
func TokenFromLink(t testing.TB, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	value := u.Query().Get("token")
	require.NotEmpty(t, value)
	return value
}
