// Package entitlements implements the auto-fix pre-flight gate: tier/add-on
// availability and monthly usage-limit checks, both raising typed errors an
// API layer can translate into actionable upgrade prompts. No teacher file
// owns this concern directly (manifold has no billing/tier model); the
// package is plain functions over model.Entitlement, and the gate's two
// checks follow spec.md §4.5 and original_source/repotoire's API-boundary entitlement
// checks pulled down into the core.
package entitlements

import (
	"fmt"
	"time"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// UpgradeURL and AddonURL are the actionable links surfaced to a Free-tier
// or add-on-less Pro-tier caller respectively.
const (
	UpgradeURL = "https://repotoire.dev/pricing"
	AddonURL   = "https://repotoire.dev/addons/autofix"
)

// UnavailableError reports that a customer's tier/add-on combination grants
// no access to auto-fix generation at all.
type UnavailableError struct {
	Tier   model.Tier
	Access model.Access
	URL    string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("auto-fix unavailable for tier %s (access=%s); see %s", e.Tier, e.Access, e.URL)
}

// LimitExceededError reports that the monthly run quota has been exhausted.
type LimitExceededError struct {
	Used     int
	Limit    int
	ResetsAt time.Time
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("monthly auto-fix limit exceeded: %d/%d used, resets %s",
		e.Used, e.Limit, e.ResetsAt.Format(time.RFC3339))
}

// Check runs the entitlements pre-flight gate described in spec.md §4.5:
// availability, then usage limit, returning a clamped candidate count on
// success.
func Check(e model.Entitlement, requestedN int) (clampedN int, err error) {
	if !e.IsAvailable() {
		url := UpgradeURL
		if e.Tier == model.TierPro {
			url = AddonURL
		}
		return 0, &UnavailableError{Tier: e.Tier, Access: e.Access, URL: url}
	}
	if !e.IsWithinLimit() {
		return 0, &LimitExceededError{
			Used:     e.MonthlyRunsUsed,
			Limit:    e.MonthlyRunsLimit,
			ResetsAt: ResetsAt(time.Now().UTC()),
		}
	}
	n := requestedN
	if e.MaxN > 0 && n > e.MaxN {
		n = e.MaxN
	}
	return n, nil
}

// ResetsAt returns the first instant of the month following now, in UTC —
// the monthly usage counter's reset boundary (spec.md Open Question 2).
func ResetsAt(now time.Time) time.Time {
	now = now.UTC()
	year, month, _ := now.Date()
	firstOfNext := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext
}

// UsageAccountant records consumed runs against a customer's monthly quota.
// Implementations live outside this module (a billing/usage collaborator);
// this package only defines the contract and the skip rule.
type UsageAccountant interface {
	IncrementUsage(customerID string, by int) error
}

// RecordUsage increments the accountant by one successful generation,
// skipping Enterprise tier with an unlimited (-1) monthly limit per
// spec.md's usage-accounting rule.
func RecordUsage(acct UsageAccountant, customerID string, e model.Entitlement) error {
	if e.Tier == model.TierEnterprise && e.MonthlyRunsLimit < 0 {
		return nil
	}
	if acct == nil {
		return nil
	}
	return acct.IncrementUsage(customerID, 1)
}
