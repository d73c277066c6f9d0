package metricsexport

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"gorm.io/gorm"
)

var funnelStatuses = []invitedomain.Status{
	invitedomain.StatusPending,
	invitedomain.StatusAwaitingVerification,
	invitedomain.StatusAwaitingActivation,
	invitedomain.StatusAwaitingCouple,
	invitedomain.StatusCompleted,
	invitedomain.StatusRevoked,
	invitedomain.StatusDeclined,
	invitedomain.StatusExpired,
}

// Funnel snapshots how many invites sit in each status.
type Funnel struct {
	db       *gorm.DB
	registry *prometheus.Registry
	invites  *prometheus.GaugeVec
	accounts prometheus.Gauge
}

func NewFunnel(db *gorm.DB) *Funnel {
	f := &Funnel{
		db:       db,
		registry: prometheus.NewRegistry(),
		invites: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tandem_invites",
			Help: "Invites by lifecycle status.",
		}, []string{"status"}),
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tandem_accounts",
			Help: "Accounts created through any path.",
		}),
	}
	f.registry.MustRegister(f.invites, f.accounts)
	return f
}

func (f *Funnel) Registry() *prometheus.Registry {
	return f.registry
}

type statusCount struct {
	Status invitedomain.Status
	Total  int64
}

// Refresh reloads every gauge. Statuses with no invites report zero so a
// drained status does not keep its last value downstream.
func (f *Funnel) Refresh(ctx context.Context) error {
	var rows []statusCount
	if err := f.db.WithContext(ctx).
		Model(&invitedomain.Invite{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[invitedomain.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	for _, status := range funnelStatuses {
		f.invites.WithLabelValues(string(status)).Set(float64(counts[status]))
	}

	var accounts int64
	if err := f.db.WithContext(ctx).Model(&accountdomain.Account{}).Count(&accounts).Error; err != nil {
		return err
	}
	f.accounts.Set(float64(accounts))
	return nil
}
