package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-forum/internal/domain"
)

func TestCommunityMembership(t *testing.T) {
	store := newFakeMembershipStore()
	svc := NewCommunityService(store, discardLogger())
	ctx := context.Background()

	status, err := svc.Join(ctx, alice, " Sports ")
	require.NoError(t, err)
	assert.Equal(t, "sports", status.Category)
	assert.True(t, status.Member)
	assert.Equal(t, int64(1), status.MemberCount)

	_, err = svc.Join(ctx, strings.ToUpper(alice), "sports")
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Join(ctx, bob, "sports")
	require.NoError(t, err)

	status, err = svc.Status(ctx, "", "sports")
	require.NoError(t, err)
	assert.False(t, status.Member)
	assert.Equal(t, int64(2), status.MemberCount)

	status, err = svc.Leave(ctx, alice, "SPORTS")
	require.NoError(t, err)
	assert.False(t, status.Member)
	assert.Equal(t, int64(1), status.MemberCount)

	_, err = svc.Leave(ctx, alice, "sports")
	assert.ErrorIs(t, err, domain.ErrNotMember)
	assert.True(t, domain.IsNotFoundError(err))

	status, err = svc.Status(ctx, bob, "sports")
	require.NoError(t, err)
	assert.True(t, status.Member)
}

func TestCommunityMembership_Rejections(t *testing.T) {
	svc := NewCommunityService(newFakeMembershipStore(), discardLogger())
	ctx := context.Background()

	for _, category := range []string{"", "all"} {
		_, err := svc.Join(ctx, alice, category)
		assert.ErrorIs(t, err, domain.ErrInvalidCategory, category)
	}

	_, err := svc.Join(ctx, "nobody", "sports")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Status(ctx, "nobody", "sports")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Leave(ctx, alice, strings.Repeat("c", domain.MaxCategoryLength+1))
	assert.ErrorIs(t, err, domain.ErrFieldTooLong)
}
