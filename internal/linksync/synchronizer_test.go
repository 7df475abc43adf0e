package linksync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/internal/storage/sqlite"
)

func setupStore(t *testing.T) *sqlite.Client {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "links.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InitSchema(context.Background()))
	return store
}

func insertBill(t *testing.T, store *sqlite.Client, apiID string, number int64) int64 {
	t.Helper()

	ctx := context.Background()
	proposerID, err := store.EnsureProposer(ctx, "홍길동")
	require.NoError(t, err)

	id, err := store.InsertBill(ctx, &models.Bill{
		APIID:        apiID,
		BillNumber:   number,
		BillTitle:    "법안",
		BillProposer: "홍길동",
		ProposerID:   proposerID,
		Committee:    "미정",
		BillStatus:   "미정",
		BillDate:     "2000-01-01",
	}, "[0.600000,0.800000]")
	require.NoError(t, err)
	return id
}

func TestSync_CreatesThenUpdates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := insertBill(t, store, "PRC_A", 1)
	second := insertBill(t, store, "PRC_B", 2)

	synchronizer := NewSynchronizer(store, "")

	result, err := synchronizer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2}, result)

	status, err := store.GetBillStatus(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "https://likms.assembly.go.kr/bill/billDetail.do?billId=PRC_A", status.Link)
	assert.Zero(t, status.BillCount)
	assert.Zero(t, status.Yes)
	assert.Zero(t, status.No)
	assert.Zero(t, status.BookmarkCount)

	result, err = synchronizer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2}, result)

	n, err := store.CountBillStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	again, err := store.GetBillStatus(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "https://likms.assembly.go.kr/bill/billDetail.do?billId=PRC_B", again.Link)
}

func TestSync_ConcurrentCallersCreateEachRowOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		insertBill(t, store, fmt.Sprintf("PRC_%d", i), int64(i))
	}

	synchronizer := NewSynchronizer(store, "")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := synchronizer.Sync(ctx)
			mu.Lock()
			defer mu.Unlock()
			created += result.Created
			if err != nil {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 5, created)

	n, err := store.CountBillStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestSync_RewritesLinkOnTemplateChange(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := insertBill(t, store, "PRC_A", 1)

	_, err := NewSynchronizer(store, "").Sync(ctx)
	require.NoError(t, err)

	_, err = NewSynchronizer(store, "https://example.org/bills/%s").Sync(ctx)
	require.NoError(t, err)

	status, err := store.GetBillStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/bills/PRC_A", status.Link)
}

type failingStore struct {
	Store
}

func (failingStore) ListBillRefs(ctx context.Context) ([]models.BillRef, error) {
	return nil, errors.New("database is locked")
}

func TestSync_ListError(t *testing.T) {
	_, err := NewSynchronizer(failingStore{}, "").Sync(context.Background())
	assert.ErrorContains(t, err, "failed to list bills")
}
