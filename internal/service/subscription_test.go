package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/repository"
)

func endsAt(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func TestEnforceExpiry(t *testing.T) {
	c := clock.NewManual(testNow)
	store := newMemStore(c)
	svc := NewSubscriptionService(store, c, discardLogger())

	tests := []struct {
		name        string
		user        repository.User
		wantChanged bool
		wantPlan    domain.Plan
	}{
		{
			name:        "lapsed premium",
			user:        repository.User{Plan: "premium", SubscriptionEndDate: endsAt(testNow.Add(-time.Second))},
			wantChanged: true,
			wantPlan:    domain.PlanFree,
		},
		{
			name:     "active vip",
			user:     repository.User{Plan: "vip", SubscriptionEndDate: endsAt(testNow.Add(time.Hour))},
			wantPlan: domain.PlanVIP,
		},
		{
			name:     "paid without end date",
			user:     repository.User{Plan: "vip"},
			wantPlan: domain.PlanVIP,
		},
		{
			name:     "free",
			user:     repository.User{Plan: "free", SubscriptionEndDate: endsAt(testNow.Add(-time.Hour))},
			wantPlan: domain.PlanFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := store.putUser(tt.user)
			u := repoUserToDomain(row)

			changed, err := svc.EnforceExpiry(context.Background(), u)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantPlan, u.Plan)
			assert.Equal(t, string(tt.wantPlan), store.user(row.ID).Plan)
			if tt.wantChanged {
				assert.Nil(t, u.SubscriptionEndDate)
				assert.False(t, store.user(row.ID).SubscriptionEndDate.Valid)
			}
		})
	}
}

func TestEnforceExpiry_Idempotent(t *testing.T) {
	c := clock.NewManual(testNow)
	store := newMemStore(c)
	svc := NewSubscriptionService(store, c, discardLogger())

	row := store.putUser(repository.User{Plan: "premium", SubscriptionEndDate: endsAt(testNow.Add(-time.Minute))})
	stale := repoUserToDomain(row)
	fresh := repoUserToDomain(row)

	changed, err := svc.EnforceExpiry(context.Background(), fresh)
	require.NoError(t, err)
	assert.True(t, changed)

	// A second request holding the old row sees the downgrade already done.
	changed, err = svc.EnforceExpiry(context.Background(), stale)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.PlanFree, stale.Plan)
}

func TestExpireDue(t *testing.T) {
	c := clock.NewManual(testNow)
	store := newMemStore(c)
	svc := NewSubscriptionService(store, c, discardLogger())

	lapsed1 := store.putUser(repository.User{Plan: "premium", SubscriptionEndDate: endsAt(testNow.Add(-time.Hour))})
	lapsed2 := store.putUser(repository.User{Plan: "vip", SubscriptionEndDate: endsAt(testNow.Add(-48 * time.Hour))})
	active := store.putUser(repository.User{Plan: "vip", SubscriptionEndDate: endsAt(testNow.Add(time.Hour))})

	n, err := svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "free", store.user(lapsed1.ID).Plan)
	assert.Equal(t, "free", store.user(lapsed2.ID).Plan)
	assert.Equal(t, "vip", store.user(active.ID).Plan)

	n, err = svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	c.Advance(2 * time.Hour)
	n, err = svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExpireDue_StoreError(t *testing.T) {
	c := clock.NewManual(testNow)
	store := newMemStore(c)
	svc := NewSubscriptionService(store, c, discardLogger())

	store.failNext("DowngradeExpiredSubscriptions", assert.AnError)
	_, err := svc.ExpireDue(context.Background())
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}
