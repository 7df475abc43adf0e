package proposer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawmate/billpipe/internal/assembly"
	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/internal/storage/sqlite"
)

func setupStore(t *testing.T) *sqlite.Client {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "proposers.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InitSchema(context.Background()))
	return store
}

type staticRoster []assembly.ProposerRow

func (r staticRoster) FetchProposers(ctx context.Context, pageSize int) []assembly.ProposerRow {
	if pageSize < len(r) {
		return r[:pageSize]
	}
	return r
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"홍길동 의원", "홍길동"},
		{"홍길동의원", "홍길동"},
		{"홍길동ㆍ김영희 의원", "홍길동"},
		{"홍길동·김영희", "홍길동"},
		{"홍길동의원 등 10인", "홍길동"},
		{"HongGildongMember", "HongGildong"},
		{"Hongmember", "Hong"},
		{"Hong member", "Hong"},
		{"홍길동ㆍ김영희MEMBER", "홍길동"},
		{"  정부  ", "정부"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.raw))
		})
	}
}

func TestResolve_KnownName(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.InsertProposerIfAbsent(ctx, &models.Proposer{Name: "홍길동", Party: "무소속"})
	require.NoError(t, err)
	want, ok, err := store.ProposerIDByName(ctx, "홍길동")
	require.NoError(t, err)
	require.True(t, ok)

	dir := NewDirectory(store, nil, DefaultFallback)
	id, name, err := dir.Resolve(ctx, "홍길동ㆍ김영희 의원")
	require.NoError(t, err)

	assert.Equal(t, want, id)
	assert.Equal(t, "홍길동", name)

	n, err := store.CountProposersNamed(ctx, DefaultFallback)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResolve_FallbackCreatedOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	dir := NewDirectory(store, nil, "")

	first, name, err := dir.Resolve(ctx, "미등록 의원")
	require.NoError(t, err)
	assert.Equal(t, "미등록", name)

	second, name, err := dir.Resolve(ctx, "또다른사람 의원")
	require.NoError(t, err)
	assert.Equal(t, "또다른사람", name)

	empty, name, err := dir.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, name)

	assert.Equal(t, first, second)
	assert.Equal(t, first, empty)

	n, err := store.CountProposersNamed(ctx, DefaultFallback)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadRoster_SkipsExisting(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.InsertProposerIfAbsent(ctx, &models.Proposer{Name: "김영희"})
	require.NoError(t, err)

	roster := staticRoster{
		{Name: " 홍길동 ", BirthDay: "1970-01-01", Party: " 무소속 ", District: "서울 종로구"},
		{Name: "김영희", Party: "다른정당"},
		{Name: ""},
	}
	dir := NewDirectory(store, roster, DefaultFallback)

	result, err := dir.LoadRoster(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Fetched: 3, Inserted: 1, Skipped: 2}, result)

	_, ok, err := store.ProposerIDByName(ctx, "홍길동")
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := dir.LoadRoster(ctx, 300)
	require.NoError(t, err)
	assert.Zero(t, again.Inserted)
}

func TestLoadRoster_RequiresSource(t *testing.T) {
	dir := NewDirectory(setupStore(t), nil, DefaultFallback)
	_, err := dir.LoadRoster(context.Background(), 10)
	assert.Error(t, err)
}
