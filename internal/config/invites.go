package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InvitePolicy holds the tunables of the invite lifecycle.
type InvitePolicy struct {
	ActiveInviteCap  int           `mapstructure:"activeInviteCap"`
	DefaultInviteTTL time.Duration `mapstructure:"defaultInviteTTL"`
	MaxInviteTTL     time.Duration `mapstructure:"maxInviteTTL"`
	ActivationTTL    time.Duration `mapstructure:"activationTTL"`
	SweepInterval    time.Duration `mapstructure:"sweepInterval"`
	SweepBatchSize   int           `mapstructure:"sweepBatchSize"`
}

func DefaultInvitePolicy() InvitePolicy {
	return InvitePolicy{
		ActiveInviteCap:  3,
		DefaultInviteTTL: 7 * 24 * time.Hour,
		MaxInviteTTL:     30 * 24 * time.Hour,
		ActivationTTL:    72 * time.Hour,
		SweepInterval:    time.Minute,
		SweepBatchSize:   100,
	}
}

type InvitePolicyHolder struct {
	current atomic.Value // holds InvitePolicy
}

// NewStaticInvitePolicy returns a holder that never reloads.
func NewStaticInvitePolicy(policy InvitePolicy) *InvitePolicyHolder {
	holder := &InvitePolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// NewInvitePolicyHolder reads invites.yml (if present) and watches it for changes.
func NewInvitePolicyHolder(log *zap.Logger) (*InvitePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("invites")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/tandem")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TANDEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvitePolicy()
	v.SetDefault("invites.activeInviteCap", defaults.ActiveInviteCap)
	v.SetDefault("invites.defaultInviteTTL", defaults.DefaultInviteTTL)
	v.SetDefault("invites.maxInviteTTL", defaults.MaxInviteTTL)
	v.SetDefault("invites.activationTTL", defaults.ActivationTTL)
	v.SetDefault("invites.sweepInterval", defaults.SweepInterval)
	v.SetDefault("invites.sweepBatchSize", defaults.SweepBatchSize)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var policy InvitePolicy
	if err := v.UnmarshalKey("invites", &policy); err != nil {
		return nil, err
	}
	if err := validateInvitePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticInvitePolicy(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvitePolicy
		if err := v.UnmarshalKey("invites", &updated); err != nil {
			log.Warn("invite policy reload failed", zap.Error(err))
			return
		}
		if err := validateInvitePolicy(updated); err != nil {
			log.Warn("invalid invite policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("invite policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *InvitePolicyHolder) Get() InvitePolicy {
	return h.current.Load().(InvitePolicy)
}

func validateInvitePolicy(p InvitePolicy) error {
	if p.ActiveInviteCap <= 0 {
		return errors.New("invites.activeInviteCap must be positive")
	}
	if p.DefaultInviteTTL <= 0 || p.MaxInviteTTL <= 0 {
		return errors.New("invites invite TTLs must be positive")
	}
	if p.DefaultInviteTTL > p.MaxInviteTTL {
		return errors.New("invites.defaultInviteTTL cannot exceed invites.maxInviteTTL")
	}
	if p.ActivationTTL <= 0 {
		return errors.New("invites.activationTTL must be positive")
	}
	if p.SweepInterval <= 0 || p.SweepBatchSize <= 0 {
		return errors.New("invites sweeper settings must be positive")
	}
	return nil
}
