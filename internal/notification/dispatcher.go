// Package notification sends the invite workflow emails. Dispatch never
// returns an error to the workflow; failures are logged and counted.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/observability/metrics"
	"go.uber.org/zap"
)

const sendTimeout = 15 * time.Second

type InviteEmail struct {
	To                 string
	Link               string
	InviterDisplayName string
	RoleLabel          string
	ExpiresAt          time.Time
}

type AdminNotice struct {
	AccountType      string
	Role             string
	InviterAccountID snowflake.ID
	InviteID         uuid.UUID
	AccountID        snowflake.ID
}

type Dispatcher interface {
	SendInvite(ctx context.Context, msg InviteEmail)
	SendActivation(ctx context.Context, msg InviteEmail)
	NotifyAdminNewMember(ctx context.Context, notice AdminNotice)
}

type dispatcher struct {
	provider        Provider
	adminRecipients []string
	metrics         *metrics.Metrics
	log             *zap.Logger
}

func NewDispatcher(provider Provider, adminRecipients []string, m *metrics.Metrics, log *zap.Logger) Dispatcher {
	return &dispatcher{
		provider:        provider,
		adminRecipients: adminRecipients,
		metrics:         m,
		log:             log.Named("notification"),
	}
}

func (d *dispatcher) SendInvite(ctx context.Context, msg InviteEmail) {
	subject := fmt.Sprintf("%s invited you to join as a %s", nameOr(msg.InviterDisplayName), msg.RoleLabel)
	body := fmt.Sprintf(
		"%s has invited you to join as a %s.\n\nOpen this link to start your verification:\n%s\n\nThe link expires on %s.\n",
		nameOr(msg.InviterDisplayName), msg.RoleLabel, msg.Link, msg.ExpiresAt.UTC().Format(time.RFC1123),
	)
	d.send(ctx, "invite", []string{msg.To}, subject, body)
}

func (d *dispatcher) SendActivation(ctx context.Context, msg InviteEmail) {
	subject := "Your profile was approved"
	body := fmt.Sprintf(
		"Your verification for the invite from %s was approved.\n\nSet your password to activate your %s account:\n%s\n\nThe link expires on %s.\n",
		nameOr(msg.InviterDisplayName), msg.RoleLabel, msg.Link, msg.ExpiresAt.UTC().Format(time.RFC1123),
	)
	d.send(ctx, "activation", []string{msg.To}, subject, body)
}

func (d *dispatcher) NotifyAdminNewMember(ctx context.Context, notice AdminNotice) {
	if len(d.adminRecipients) == 0 {
		return
	}
	subject := fmt.Sprintf("New %s member activated", notice.AccountType)
	body := fmt.Sprintf(
		"Account type: %s\nRole: %s\nInvited by: %s\nInvite: %s\nAccount: %s\n",
		notice.AccountType, notice.Role, notice.InviterAccountID, notice.InviteID, notice.AccountID,
	)
	d.send(ctx, "admin_new_member", d.adminRecipients, subject, body)
}

func (d *dispatcher) send(ctx context.Context, template string, to []string, subject, body string) {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := d.provider.Send(sendCtx, recipients, subject, body); err != nil {
		d.metrics.RecordEmailFailure(ctx, template)
		d.log.Warn("email dispatch failed",
			zap.String("template", template),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		return
	}
	d.log.Debug("email dispatched", zap.String("template", template))
}

func nameOr(name string) string {
	if strings.TrimSpace(name) == "" {
		return "A member"
	}
	return name
}
