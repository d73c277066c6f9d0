package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Enforcer    *casbin.SyncedEnforcer
	AccountRepo accountdomain.Repository
}

type ServiceImpl struct {
	db          *gorm.DB
	log         *zap.Logger
	enforcer    *casbin.SyncedEnforcer
	accountRepo accountdomain.Repository
}

// NewEnforcer loads policies from the casbin_rule table and adds the
// built-in staff grants. Rows added by operators survive restarts.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:          p.DB,
		log:         p.Log.Named("authorization.service"),
		enforcer:    p.Enforcer,
		accountRepo: p.AccountRepo,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actorID snowflake.ID, object string, action string) error {
	if actorID <= 0 {
		return ErrInvalidActor
	}

	actor, err := s.accountRepo.FindByID(ctx, s.db, actorID)
	if err != nil {
		return fmt.Errorf("load actor: %w", err)
	}
	if actor == nil {
		return ErrForbidden
	}

	role := strings.ToLower(strings.TrimSpace(string(actor.StaffRole)))
	if role == "" {
		s.denied(actorID, object, action)
		return ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(roleSubject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.denied(actorID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) denied(actorID snowflake.ID, object, action string) {
	s.log.Debug("authorization denied",
		zap.String("actor_id", actorID.String()),
		zap.String("object", object),
		zap.String("action", action),
	)
}

func roleSubject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleSubject(string(accountdomain.StaffModerator)), ObjectInvite, ActionModerationList},
		{roleSubject(string(accountdomain.StaffModerator)), ObjectVerification, ActionVerificationDecide},
		{roleSubject(string(accountdomain.StaffModerator)), ObjectActivation, ActionActivationReissue},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Admins hold every moderator grant.
	_, err := enforcer.AddGroupingPolicy(roleSubject(string(accountdomain.StaffAdmin)), roleSubject(string(accountdomain.StaffModerator)))
	return err
}
