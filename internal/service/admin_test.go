package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/repository"
)

func newAdminFixture(t *testing.T) (*clock.Manual, *memStore, AdminService) {
	t.Helper()
	c := clock.NewManual(testNow)
	store := newMemStore(c)
	return c, store, NewAdminService(store, NewLedger(c), c, discardLogger())
}

func intPtr(v int) *int { return &v }

func TestAdjustDownloads_Counters(t *testing.T) {
	dailyReset := clock.NextDailyReset(testNow)
	weeklyReset := clock.NextWeeklyReset(testNow)

	tests := []struct {
		name       string
		adj        domain.DownloadAdjustment
		wantDaily  int32
		wantWeekly int32
	}{
		{"reset daily", domain.DownloadAdjustment{Action: domain.AdminReset, Period: domain.PeriodDaily}, 0, 7},
		{"reset weekly", domain.DownloadAdjustment{Action: domain.AdminReset, Period: domain.PeriodWeekly}, 3, 0},
		{"reset all", domain.DownloadAdjustment{Action: domain.AdminReset, Period: domain.PeriodAll}, 0, 0},
		{"set daily", domain.DownloadAdjustment{Action: domain.AdminSet, Period: domain.PeriodDaily, Amount: 9}, 9, 7},
		{"increase weekly", domain.DownloadAdjustment{Action: domain.AdminIncrease, Period: domain.PeriodWeekly, Amount: 2}, 3, 9},
		{"decrease daily", domain.DownloadAdjustment{Action: domain.AdminDecrease, Period: domain.PeriodDaily, Amount: 1}, 2, 7},
		{"decrease floors at zero", domain.DownloadAdjustment{Action: domain.AdminDecrease, Period: domain.PeriodWeekly, Amount: 50}, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store, svc := newAdminFixture(t)
			u := store.putUser(repository.User{
				Plan:              "premium",
				CanDownload:       true,
				DailyDownloads:    3,
				DownloadResetDate: sql.NullTime{Time: dailyReset, Valid: true},
				WeeklyDownloads:   7,
				WeekResetDate:     sql.NullTime{Time: weeklyReset, Valid: true},
			})

			limits, err := svc.AdjustDownloads(context.Background(), u.ID, tt.adj)
			require.NoError(t, err)

			stored := store.user(u.ID)
			assert.Equal(t, tt.wantDaily, stored.DailyDownloads)
			assert.Equal(t, tt.wantWeekly, stored.WeeklyDownloads)
			assert.Equal(t, int(tt.wantDaily), limits.DailyDownloads)
			assert.Equal(t, int(tt.wantWeekly), limits.WeeklyDownloads)
			assert.True(t, stored.DownloadResetDate.Time.Equal(dailyReset))
			assert.True(t, stored.WeekResetDate.Time.Equal(weeklyReset))
		})
	}
}

func TestAdjustDownloads_AppliesLazyResetFirst(t *testing.T) {
	c, store, svc := newAdminFixture(t)
	stale := testNow.Add(-time.Hour)
	u := store.putUser(repository.User{
		Plan:              "free",
		CanDownload:       true,
		DailyDownloads:    5,
		DownloadResetDate: sql.NullTime{Time: stale, Valid: true},
	})

	// Increasing an elapsed window starts from zero, not the stale count.
	_, err := svc.AdjustDownloads(context.Background(), u.ID, domain.DownloadAdjustment{
		Action: domain.AdminIncrease,
		Period: domain.PeriodDaily,
		Amount: 1,
	})
	require.NoError(t, err)

	stored := store.user(u.ID)
	assert.Equal(t, int32(1), stored.DailyDownloads)
	assert.True(t, stored.DownloadResetDate.Time.Equal(clock.NextDailyReset(c.Now())))
}

func TestAdjustDownloads_Permissions(t *testing.T) {
	_, store, svc := newAdminFixture(t)
	u := store.putUser(repository.User{Plan: "free", CanDownload: true})

	limits, err := svc.AdjustDownloads(context.Background(), u.ID, domain.DownloadAdjustment{
		Action:           domain.AdminPermissions,
		CanDownload:      true,
		CustomDailyLimit: intPtr(3),
	})
	require.NoError(t, err)
	assert.True(t, limits.CanDownload)
	require.NotNil(t, limits.CustomDailyLimit)
	assert.Equal(t, 3, *limits.CustomDailyLimit)
	assert.Nil(t, limits.CustomWeeklyLimit)
	assert.Equal(t, 3, limits.Effective.Limit)
	assert.True(t, limits.Effective.Allowed)

	stored := store.user(u.ID)
	assert.Equal(t, sql.NullInt32{Int32: 3, Valid: true}, stored.CustomDailyLimit)

	limits, err = svc.AdjustDownloads(context.Background(), u.ID, domain.DownloadAdjustment{
		Action:      domain.AdminPermissions,
		CanDownload: false,
	})
	require.NoError(t, err)
	assert.False(t, limits.Effective.Allowed)
	assert.Equal(t, domain.ReasonBlocked, limits.Effective.Reason)
	assert.False(t, store.user(u.ID).CustomDailyLimit.Valid)
}

func TestAdjustDownloads_Errors(t *testing.T) {
	_, store, svc := newAdminFixture(t)
	u := store.putUser(repository.User{Plan: "free", CanDownload: true})

	_, err := svc.AdjustDownloads(context.Background(), u.ID, domain.DownloadAdjustment{Action: "wipe"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.AdjustDownloads(context.Background(), uuid.New(), domain.DownloadAdjustment{
		Action: domain.AdminReset,
		Period: domain.PeriodAll,
	})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestAdjustDownloads_RejectsCounterOverflow(t *testing.T) {
	c, store, svc := newAdminFixture(t)
	ctx := context.Background()
	u := store.putUser(repository.User{
		Plan:              "free",
		CanDownload:       true,
		DailyDownloads:    0,
		DownloadResetDate: sql.NullTime{Time: clock.NextDailyReset(testNow), Valid: true},
		WeeklyDownloads:   10,
		WeekResetDate:     sql.NullTime{Time: clock.NextWeeklyReset(testNow), Valid: true},
	})

	rejected := []domain.DownloadAdjustment{
		{Action: domain.AdminSet, Period: domain.PeriodDaily, Amount: 1 << 31},
		{Action: domain.AdminIncrease, Period: domain.PeriodDaily, Amount: 1 << 31},
		{Action: domain.AdminIncrease, Period: domain.PeriodWeekly, Amount: domain.MaxDownloadCounter - 5},
		{Action: domain.AdminPermissions, CanDownload: true, CustomDailyLimit: intPtr(1 << 31)},
	}
	for _, adj := range rejected {
		_, err := svc.AdjustDownloads(ctx, u.ID, adj)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "%s %s", adj.Action, adj.Period)
	}

	stored := store.user(u.ID)
	assert.Equal(t, int32(0), stored.DailyDownloads)
	assert.Equal(t, int32(10), stored.WeeklyDownloads)
	assert.False(t, stored.CustomDailyLimit.Valid)

	// The largest accepted counter blocks downloads rather than wrapping.
	_, err := svc.AdjustDownloads(ctx, u.ID, domain.DownloadAdjustment{
		Action: domain.AdminSet,
		Period: domain.PeriodDaily,
		Amount: domain.MaxDownloadCounter,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(domain.MaxDownloadCounter), store.user(u.ID).DailyDownloads)

	ent := NewEntitlementService(store, NewLedger(c), c, discardLogger())
	p := store.putPost("apostila")
	granted := 0
	for range 5 {
		res, err := ent.Download(ctx, u.ID, p.ID)
		require.NoError(t, err)
		if res.Decision.Allowed {
			granted++
		}
	}
	assert.Equal(t, 0, granted)
	assert.Equal(t, 0, store.downloadCount(u.ID))
}

func TestGetDownloadLimits(t *testing.T) {
	_, store, svc := newAdminFixture(t)
	u := store.putUser(repository.User{
		Plan:            "premium",
		CanDownload:     true,
		WeeklyDownloads: 4,
		WeekResetDate:   sql.NullTime{Time: clock.NextWeeklyReset(testNow), Valid: true},
	})

	limits, err := svc.GetDownloadLimits(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPremium, limits.Plan)
	assert.Equal(t, 4, limits.WeeklyDownloads)
	assert.Equal(t, 0, limits.DailyDownloads)
	require.NotNil(t, limits.DownloadResetDate)
	assert.Equal(t, domain.WindowWeekly, limits.Effective.Window)
	assert.Equal(t, 11, limits.Effective.Remaining)
}
