//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemberProfile(now time.Time) *domain.CommunityMemberProfile {
	return &domain.CommunityMemberProfile{
		ID:              "community_阿伟_1748779200",
		Title:           "社区成员档案 - 阿伟",
		DiscordNumberID: "123456789",
		Content: map[string]string{
			"name":        "阿伟",
			"personality": "热心",
			"background":  "未提供",
		},
		Nicknames: []string{"阿伟"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemberRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewMemberRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := newMemberProfile(now)
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.DiscordNumberID, got.DiscordNumberID)
	assert.Equal(t, p.Content, got.Content)
	assert.Equal(t, p.Nicknames, got.Nicknames)

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ids)
}

func TestMemberRepository_Update_ReplacesContentAndNicknames(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewMemberRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := newMemberProfile(now)
	require.NoError(t, repo.Create(ctx, p))

	p.Content = map[string]string{
		"name":        "阿伟",
		"personality": "更热心了",
	}
	p.Nicknames = []string{"阿伟", "伟哥"}
	p.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Content, got.Content)
	assert.Equal(t, []string{"阿伟", "伟哥"}, got.Nicknames)
	assert.NotContains(t, got.Content, "background")
}

func TestMemberRepository_Update_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewMemberRepository(pool)

	p := newMemberProfile(time.Now().UTC())
	err := repo.Update(ctx, p)
	assert.ErrorIs(t, err, domain.ErrMemberProfileNotFound)
}

func TestMemberRepository_FindByDiscordNumberID(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewMemberRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := newMemberProfile(now)
	require.NoError(t, repo.Create(ctx, p))

	id, err := repo.FindByDiscordNumberID(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	_, err = repo.FindByDiscordNumberID(ctx, "000000000")
	assert.ErrorIs(t, err, domain.ErrMemberProfileNotFound)
}
