package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-forum/internal/cooldown"
	"github.com/campus-forum/internal/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newProfileFixture(policy cooldown.Policy, profiles ...domain.Profile) (*ProfileService, *fakeProfileStore, *clock) {
	store := newFakeProfileStore(profiles...)
	clk := &clock{t: testNow}
	svc := NewProfileService(store, policy, discardLogger())
	svc.SetClock(clk.now)
	return svc, store, clk
}

func TestCreateProfile(t *testing.T) {
	svc, store, _ := newProfileFixture(cooldown.DefaultPolicy())
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, alice, domain.CreateProfileRequest{Username: "alice_w", FirstName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, alice, profile.ID)
	assert.Nil(t, profile.UsernameChange.LastChangedAt)
	assert.Equal(t, 1, store.takenCalls)

	_, err = svc.CreateProfile(ctx, bob, domain.CreateProfileRequest{Username: "alice_w", FirstName: "Bob"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Usernames differing only in case collide
	_, err = svc.CreateProfile(ctx, bob, domain.CreateProfileRequest{Username: "Alice_W", FirstName: "Bob"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	_, err = svc.CreateProfile(ctx, alice, domain.CreateProfileRequest{Username: "alice_again", FirstName: "Alice"})
	assert.ErrorIs(t, err, domain.ErrProfileExists)
	assert.NotErrorIs(t, err, domain.ErrUsernameTaken)

	_, err = svc.CreateProfile(ctx, bob, domain.CreateProfileRequest{Username: "b!", FirstName: "Bob"})
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)

	_, err = svc.CreateProfile(ctx, bob, domain.CreateProfileRequest{Username: "bobby"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestChangeUsername_Cooldown(t *testing.T) {
	svc, _, clk := newProfileFixture(cooldown.DefaultPolicy(),
		domain.Profile{ID: alice, Username: "alice", FirstName: "Alice"},
	)
	ctx := context.Background()

	updated, decision, err := svc.ChangeUsername(ctx, alice, alice, "alice_two")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	assert.Equal(t, "alice_two", updated.Username)
	assert.Equal(t, 1, updated.UsernameChange.ChangeCountToday)
	require.NotNil(t, updated.UsernameChange.LastChangedAt)
	assert.Equal(t, testNow, *updated.UsernameChange.LastChangedAt)

	clk.advance(10 * time.Hour)
	updated, decision, err = svc.ChangeUsername(ctx, alice, alice, "alice_three")
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.False(t, decision.Allowed)
	assert.Equal(t, cooldown.ReasonMustWait, decision.Reason)
	assert.Equal(t, 14, decision.RetryAfterHours)

	current, err := svc.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice_two", current.Username)

	clk.advance(14 * time.Hour)
	updated, decision, err = svc.ChangeUsername(ctx, alice, alice, "alice_three")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "alice_three", updated.Username)
	assert.Equal(t, 1, updated.UsernameChange.ChangeCountToday)
}

func TestChangeUsername_DailyLimit(t *testing.T) {
	policy := cooldown.Policy{MinGap: time.Hour, DailyLimit: 2, Location: time.UTC}
	svc, _, clk := newProfileFixture(policy,
		domain.Profile{ID: alice, Username: "alice", FirstName: "Alice"},
	)
	ctx := context.Background()

	_, decision, err := svc.ChangeUsername(ctx, alice, alice, "alice_a")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	clk.advance(2 * time.Hour)
	updated, decision, err := svc.ChangeUsername(ctx, alice, alice, "alice_b")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	assert.Equal(t, 2, updated.UsernameChange.ChangeCountToday)

	clk.advance(2 * time.Hour)
	updated, decision, err = svc.ChangeUsername(ctx, alice, alice, "alice_c")
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.Equal(t, cooldown.ReasonDailyLimit, decision.Reason)
	// 16:00 UTC, eight hours to midnight
	assert.Equal(t, 8, decision.RetryAfterHours)
}

func TestChangeUsername_Rejections(t *testing.T) {
	svc, _, _ := newProfileFixture(cooldown.DefaultPolicy(),
		domain.Profile{ID: alice, Username: "alice", FirstName: "Alice"},
		domain.Profile{ID: bob, Username: "bob", FirstName: "Bob"},
	)
	ctx := context.Background()

	_, _, err := svc.ChangeUsername(ctx, alice, bob, "hijacked")
	assert.ErrorIs(t, err, domain.ErrNotProfileOwner)

	_, _, err = svc.ChangeUsername(ctx, alice, alice, "bob")
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	_, _, err = svc.ChangeUsername(ctx, alice, alice, "no spaces")
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)

	_, _, err = svc.ChangeUsername(ctx, "bad", "bad", "whatever")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	missing := "33333333-3333-3333-3333-333333333333"
	_, _, err = svc.ChangeUsername(ctx, missing, missing, "ghost")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestChangeUsername_UnchangedIsNoop(t *testing.T) {
	svc, _, _ := newProfileFixture(cooldown.DefaultPolicy(),
		domain.Profile{ID: alice, Username: "alice", FirstName: "Alice"},
	)

	updated, decision, err := svc.ChangeUsername(context.Background(), alice, alice, "alice")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "alice", updated.Username)
	assert.Nil(t, updated.UsernameChange.LastChangedAt)
}

func TestChangeUsername_RecasingDoesNotCount(t *testing.T) {
	svc, _, clk := newProfileFixture(cooldown.DefaultPolicy(),
		domain.Profile{ID: alice, Username: "alice", FirstName: "Alice"},
	)
	ctx := context.Background()

	updated, decision, err := svc.ChangeUsername(ctx, alice, alice, "Alice")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "Alice", updated.Username)
	assert.Nil(t, updated.UsernameChange.LastChangedAt)
	assert.Equal(t, 0, updated.UsernameChange.ChangeCountToday)

	clk.advance(time.Minute)
	updated, decision, err = svc.ChangeUsername(ctx, alice, alice, "alice_renamed")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	assert.Equal(t, "alice_renamed", updated.Username)
	assert.Equal(t, 1, updated.UsernameChange.ChangeCountToday)
}

func TestChangeUsername_UppercaseProfileID(t *testing.T) {
	owner := "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	svc, _, _ := newProfileFixture(cooldown.DefaultPolicy(),
		domain.Profile{ID: owner, Username: "owner", FirstName: "Owner"},
	)
	ctx := context.Background()

	updated, decision, err := svc.ChangeUsername(ctx, strings.ToUpper(owner), owner, "new_owner")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	assert.Equal(t, owner, updated.ID)
	assert.Equal(t, "new_owner", updated.Username)

	profile, err := svc.GetProfile(ctx, strings.ToUpper(owner))
	require.NoError(t, err)
	assert.Equal(t, "new_owner", profile.Username)
}

func TestUsernameChangeStatus(t *testing.T) {
	last := testNow.Add(-3 * time.Hour)
	svc, _, _ := newProfileFixture(cooldown.DefaultPolicy(),
		domain.Profile{ID: alice, Username: "alice", FirstName: "Alice"},
		domain.Profile{
			ID:             bob,
			Username:       "bob",
			FirstName:      "Bob",
			UsernameChange: domain.UsernameChangeRecord{LastChangedAt: &last, ChangeCountToday: 1},
		},
	)
	ctx := context.Background()

	status, err := svc.UsernameChangeStatus(ctx, alice)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Nil(t, status.NextChangeAt)

	status, err = svc.UsernameChangeStatus(ctx, bob)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 21, status.RetryAfterHours)
	assert.Equal(t, "You can change your username again in 21 hours", status.Reason)
	require.NotNil(t, status.NextChangeAt)
	assert.Equal(t, last.Add(24*time.Hour), *status.NextChangeAt)
}
