package attendance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/store"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return NewRepository(db.Client)
}

func TestRepository_InsertAndFindMember(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m, err := repo.InsertMember(ctx, MemberInput{Name: " Ana ", Email: "Ana@Igreja.com", Department: "Louvor"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Ana", m.Name)
	assert.Equal(t, "ana@igreja.com", m.Email)

	got, err := repo.FindMemberByEmail(ctx, "  ANA@igreja.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)
	assert.Nil(t, got.LeaderID)

	got, err = repo.FindMemberByNameAndGroup(ctx, "Ana", "Louvor")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)

	missing, err := repo.FindMemberByEmail(ctx, "ninguem@igreja.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_DuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.InsertMember(ctx, MemberInput{Name: "Ana", Email: "ana@igreja.com"})
	require.NoError(t, err)

	_, err = repo.InsertMember(ctx, MemberInput{Name: "Outra Ana", Email: "ANA@igreja.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	n, err := repo.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_MembersWithoutEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.InsertMember(ctx, MemberInput{Name: "Pedro", Department: "Mídia"})
	require.NoError(t, err)
	_, err = repo.InsertMember(ctx, MemberInput{Name: "Paulo", Department: "Mídia"})
	require.NoError(t, err)

	n, err := repo.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRepository_RecordCheckinUnknownMember(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.RecordCheckin(context.Background(), CheckinEvent{MemberID: "nope", Type: CheckinRapid})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
}

func TestRepository_ListMembersLatestEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	bia, err := repo.InsertMember(ctx, MemberInput{Name: "Bia", Email: "bia@igreja.com"})
	require.NoError(t, err)
	ana, err := repo.InsertMember(ctx, MemberInput{Name: "Ana", Email: "ana@igreja.com"})
	require.NoError(t, err)
	_, err = repo.InsertMember(ctx, MemberInput{Name: "Caio", Email: "caio@igreja.com"})
	require.NoError(t, err)

	_, err = repo.RecordCheckin(ctx, CheckinEvent{MemberID: ana.ID, Type: CheckinRapid, When: base})
	require.NoError(t, err)
	_, err = repo.RecordCheckin(ctx, CheckinEvent{MemberID: bia.ID, Type: CheckinLeader, When: base})
	require.NoError(t, err)
	_, err = repo.RecordCheckin(ctx, CheckinEvent{MemberID: bia.ID, Type: CheckinAbsent, When: base.Add(time.Minute)})
	require.NoError(t, err)

	members, err := repo.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)

	assert.Equal(t, "Ana", members[0].Name)
	assert.True(t, members[0].Present())
	assert.Equal(t, CheckinRapid, members[0].LastType)

	assert.Equal(t, "Bia", members[1].Name)
	assert.False(t, members[1].Present())
	assert.Equal(t, CheckinAbsent, members[1].LastType)

	assert.Equal(t, "Caio", members[2].Name)
	assert.False(t, members[2].Present())
	assert.Nil(t, members[2].LastCheckin)
}

func TestRepository_RecentCheckins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	m, err := repo.InsertMember(ctx, MemberInput{Name: "Ana", Email: "ana@igreja.com"})
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		_, err := repo.RecordCheckin(ctx, CheckinEvent{MemberID: m.ID, Type: CheckinRapid, When: now.Add(-time.Duration(i) * 24 * time.Hour)})
		require.NoError(t, err)
	}

	n, err := repo.CountRecentCheckins(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	recent, err := repo.ListRecentCheckins(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, "Ana", recent[0].MemberName)
	assert.True(t, recent[0].When.Equal(now))

	events, err := repo.ListMemberCheckins(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, events, 12)
}

func TestRepository_Leaders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	l, err := repo.InsertLeader(ctx, "pastor", "Pastor@Igreja.com", "Pastor", "hash")
	require.NoError(t, err)

	byName, err := repo.FindLeaderByCredentialKey(ctx, "pastor")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, l.ID, byName.ID)

	byEmail, err := repo.FindLeaderByCredentialKey(ctx, "pastor@igreja.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, l.ID, byEmail.ID)

	_, err = repo.InsertLeader(ctx, "pastor", "outro@igreja.com", "Outro", "hash")
	assert.ErrorIs(t, err, ErrConstraintViolation)

	require.NoError(t, repo.UpdateLeaderPassword(ctx, "pastor", "new-hash"))
	updated, err := repo.FindLeaderByCredentialKey(ctx, "pastor")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)

	assert.ErrorIs(t, repo.UpdateLeaderPassword(ctx, "ghost", "x"), ErrNotFound)
}

func TestRepository_SeedDefaultsOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	examples := []MemberInput{{Name: "Ana", Email: "ana@igreja.com"}, {Name: "Pedro"}}

	seeded, err := repo.SeedDefaults(ctx, "admin", "admin@igreja.com", "Administrador", "hash", examples)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = repo.SeedDefaults(ctx, "admin2", "admin2@igreja.com", "Outro", "hash", examples)
	require.NoError(t, err)
	assert.False(t, seeded)

	leaders, err := repo.CountLeaders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, leaders)

	members, err := repo.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.NotNil(t, m.LeaderID)
	}
}

func TestRepository_SeedDefaultsRollsBackOnDuplicateExample(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	examples := []MemberInput{{Name: "A", Email: "dup@igreja.com"}, {Name: "B", Email: "dup@igreja.com"}}

	seeded, err := repo.SeedDefaults(ctx, "admin", "admin@igreja.com", "Administrador", "hash", examples)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.False(t, seeded)

	leaders, err := repo.CountLeaders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, leaders)

	members, err := repo.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, members)

	// a clean retry still works
	seeded, err = repo.SeedDefaults(ctx, "admin", "admin@igreja.com", "Administrador", "hash", examples[:1])
	require.NoError(t, err)
	assert.True(t, seeded)
}
