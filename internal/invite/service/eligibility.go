package service

import (
	"time"

	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	"github.com/smallbiznis/tandem/internal/invite/domain"
)

// checkEligibility allows only verified paired accounts with a live paid membership to invite.
func checkEligibility(account *accountdomain.Account, now time.Time) error {
	if account.Kind != accountdomain.KindPaired {
		return &domain.EligibilityError{Reason: domain.ReasonAccountKind}
	}
	if !account.EmailVerified || !account.PartnerEmailVerified {
		return &domain.EligibilityError{Reason: domain.ReasonEmailsUnverified}
	}
	if !account.HasActiveMembership(now) {
		return &domain.EligibilityError{Reason: domain.ReasonMembershipInactive}
	}
	return nil
}
