package entitlements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

func TestCheck_FreeTierUnavailable(t *testing.T) {
	e := model.Entitlement{Tier: model.TierFree, Access: model.AccessUnavailable}
	_, err := Check(e, 5)
	require.Error(t, err)
	var uerr *UnavailableError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, UpgradeURL, uerr.URL)
}

func TestCheck_ProWithoutAddonGetsAddonURL(t *testing.T) {
	e := model.Entitlement{Tier: model.TierPro, Access: model.AccessAddon, AddonEnabled: false}
	_, err := Check(e, 5)
	require.Error(t, err)
	var uerr *UnavailableError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, AddonURL, uerr.URL)
}

func TestCheck_OverLimitReturnsTypedError(t *testing.T) {
	e := model.Entitlement{
		Tier: model.TierPro, Access: model.AccessIncluded,
		MonthlyRunsLimit: 10, MonthlyRunsUsed: 10, MaxN: 5,
	}
	_, err := Check(e, 5)
	require.Error(t, err)
	var lerr *LimitExceededError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, 10, lerr.Used)
	require.Equal(t, 10, lerr.Limit)
}

func TestCheck_ClampsNToMaxN(t *testing.T) {
	e := model.Entitlement{
		Tier: model.TierPro, Access: model.AccessIncluded,
		MonthlyRunsLimit: -1, MaxN: 3,
	}
	n, err := Check(e, 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestCheck_EnterpriseUnlimitedPassesThrough(t *testing.T) {
	e := model.Entitlement{
		Tier: model.TierEnterprise, Access: model.AccessIncluded,
		MonthlyRunsLimit: -1, MaxN: 8,
	}
	n, err := Check(e, 8)
	require.NoError(t, err)
	require.Equal(t, 8, n)
}

func TestResetsAt_FirstOfNextMonthUTC(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)
	got := ResetsAt(now)
	require.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestResetsAt_DecemberRollsToJanuary(t *testing.T) {
	now := time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC)
	got := ResetsAt(now)
	require.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), got)
}

type fakeAccountant struct {
	calls int
	by    int
}

func (f *fakeAccountant) IncrementUsage(_ string, by int) error {
	f.calls++
	f.by += by
	return nil
}

func TestRecordUsage_SkipsUnlimitedEnterprise(t *testing.T) {
	acct := &fakeAccountant{}
	e := model.Entitlement{Tier: model.TierEnterprise, MonthlyRunsLimit: -1}
	require.NoError(t, RecordUsage(acct, "cust-1", e))
	require.Zero(t, acct.calls)
}

func TestRecordUsage_IncrementsForLimitedTiers(t *testing.T) {
	acct := &fakeAccountant{}
	e := model.Entitlement{Tier: model.TierPro, MonthlyRunsLimit: 50, MonthlyRunsUsed: 1}
	require.NoError(t, RecordUsage(acct, "cust-1", e))
	require.Equal(t, 1, acct.calls)
	require.Equal(t, 1, acct.by)
}
