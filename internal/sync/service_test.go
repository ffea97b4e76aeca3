// AngelaMos | 2026
// service_test.go

package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/licensegate/internal/config"
	"github.com/carterperez-dev/licensegate/internal/core"
)

type itemKey struct {
	userID   string
	dataType string
	dataKey  string
}

// fakeSyncRepo mirrors the upsert's conflict clause: insert at version
// 1, otherwise overwrite and increment by exactly one.
type fakeSyncRepo struct {
	mu    stdsync.Mutex
	items map[itemKey]*Item
}

func newFakeSyncRepo() *fakeSyncRepo {
	return &fakeSyncRepo{items: make(map[itemKey]*Item)}
}

func (r *fakeSyncRepo) Upsert(_ context.Context, item *Item) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := itemKey{item.UserID, item.DataType, item.DataKey}
	if existing, ok := r.items[key]; ok {
		existing.Value = item.Value
		existing.Version++
		existing.DeviceID = item.DeviceID
		existing.SyncedAt = time.Now()
		return existing.Version, nil
	}

	stored := *item
	stored.Version = 1
	stored.SyncedAt = time.Now()
	r.items[key] = &stored
	return 1, nil
}

func (r *fakeSyncRepo) List(
	_ context.Context,
	userID, dataType string,
) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []Item
	for key, item := range r.items {
		if key.userID != userID {
			continue
		}
		if dataType != "" && key.dataType != dataType {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

func (r *fakeSyncRepo) Get(
	_ context.Context,
	userID, dataType, dataKey string,
) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemKey{userID, dataType, dataKey}]
	if !ok {
		return nil, fmt.Errorf("get sync item: %w", core.ErrNotFound)
	}
	copied := *item
	return &copied, nil
}

func (r *fakeSyncRepo) Delete(
	_ context.Context,
	userID, dataType, dataKey string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := itemKey{userID, dataType, dataKey}
	if _, ok := r.items[key]; !ok {
		return fmt.Errorf("delete sync item: %w", core.ErrNotFound)
	}
	delete(r.items, key)
	return nil
}

func (r *fakeSyncRepo) CountByType(
	_ context.Context,
	userID string,
) ([]TypeCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int64)
	for key := range r.items {
		if key.userID == userID {
			counts[key.dataType]++
		}
	}

	var result []TypeCount
	for dataType, count := range counts {
		result = append(result, TypeCount{DataType: dataType, Count: count})
	}
	return result, nil
}

type fakeGate struct {
	rejected map[string]error
}

func (g *fakeGate) CheckUsable(_ context.Context, licenseKey string) error {
	if err, ok := g.rejected[licenseKey]; ok {
		return err
	}
	return nil
}

func newTestSyncService() (*Service, *fakeSyncRepo, *fakeGate) {
	repo := newFakeSyncRepo()
	gate := &fakeGate{rejected: make(map[string]error)}
	svc := NewService(repo, gate, config.SyncConfig{
		MaxValueBytes: 1024,
		MaxBatchItems: 10,
	})
	return svc, repo, gate
}

func TestService_Upsert_VersionIncrements(t *testing.T) {
	svc, _, _ := newTestSyncService()
	ctx := context.Background()

	first, err := svc.Upsert(ctx, "user-1", UpsertRequest{
		LicenseKey: "TR-KEY",
		DataType:   "strategies",
		DataKey:    "dca-main",
		Value:      `{"interval":"1h"}`,
		DeviceID:   "device-a",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	second, err := svc.Upsert(ctx, "user-1", UpsertRequest{
		LicenseKey: "TR-KEY",
		DataType:   "strategies",
		DataKey:    "dca-main",
		Value:      `{"interval":"4h"}`,
		DeviceID:   "device-b",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)

	item, err := svc.Get(ctx, "user-1", "strategies", "dca-main")
	require.NoError(t, err)
	assert.Equal(t, `{"interval":"4h"}`, item.Value)
	assert.Equal(t, "device-b", item.DeviceID)
}

func TestService_Upsert_DisallowedType(t *testing.T) {
	svc, _, _ := newTestSyncService()

	_, err := svc.Upsert(context.Background(), "user-1", UpsertRequest{
		LicenseKey: "TR-KEY",
		DataType:   "secrets",
		DataKey:    "k",
		Value:      "v",
	})
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestService_Upsert_OversizeValue(t *testing.T) {
	svc, _, _ := newTestSyncService()

	big := make([]byte, 2048)
	_, err := svc.Upsert(context.Background(), "user-1", UpsertRequest{
		LicenseKey: "TR-KEY",
		DataType:   "strategies",
		DataKey:    "k",
		Value:      string(big),
	})
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestService_Upsert_LicenseGateBlocks(t *testing.T) {
	svc, _, gate := newTestSyncService()
	gate.rejected["TR-BAD"] = core.ForbiddenError("license has been revoked")

	_, err := svc.Upsert(context.Background(), "user-1", UpsertRequest{
		LicenseKey: "TR-BAD",
		DataType:   "strategies",
		DataKey:    "k",
		Value:      "v",
	})
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestService_BulkUpsert_PartialSuccess(t *testing.T) {
	svc, _, _ := newTestSyncService()

	req := BulkUpsertRequest{
		LicenseKey: "TR-KEY",
		DeviceID:   "device-a",
		Items: []BulkItem{
			{DataType: "strategies", DataKey: "a", Value: "1"},
			{DataType: "settings", DataKey: "b", Value: "2"},
			{DataType: "bogus", DataKey: "c", Value: "3"},
			{DataType: "favorites", DataKey: "d", Value: "4"},
		},
	}

	resp, err := svc.BulkUpsert(context.Background(), "user-1", req)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 4)

	assert.Equal(t, int64(1), resp.Results[0].Version)
	assert.Empty(t, resp.Results[0].Error)
	assert.NotEmpty(t, resp.Results[2].Error)
	assert.Zero(t, resp.Results[2].Version)
}

func TestService_BulkUpsert_BatchCap(t *testing.T) {
	svc, _, _ := newTestSyncService()

	items := make([]BulkItem, 11)
	for i := range items {
		items[i] = BulkItem{
			DataType: "strategies",
			DataKey:  fmt.Sprintf("k-%d", i),
			Value:    "v",
		}
	}

	_, err := svc.BulkUpsert(context.Background(), "user-1", BulkUpsertRequest{
		LicenseKey: "TR-KEY",
		Items:      items,
	})
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestService_DeleteThenRecreateRestartsVersion(t *testing.T) {
	svc, _, _ := newTestSyncService()
	ctx := context.Background()

	for range 3 {
		_, err := svc.Upsert(ctx, "user-1", UpsertRequest{
			LicenseKey: "TR-KEY",
			DataType:   "strategies",
			DataKey:    "dca-main",
			Value:      "v",
		})
		require.NoError(t, err)
	}

	require.NoError(t, svc.Delete(ctx, "user-1", "strategies", "dca-main"))

	_, err := svc.Get(ctx, "user-1", "strategies", "dca-main")
	require.Error(t, err)

	// no tombstone: the key comes back at version 1
	resp, err := svc.Upsert(ctx, "user-1", UpsertRequest{
		LicenseKey: "TR-KEY",
		DataType:   "strategies",
		DataKey:    "dca-main",
		Value:      "v2",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Version)
}

func TestService_Delete_Missing(t *testing.T) {
	svc, _, _ := newTestSyncService()

	err := svc.Delete(context.Background(), "user-1", "strategies", "nope")
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestService_Status(t *testing.T) {
	svc, _, _ := newTestSyncService()
	ctx := context.Background()

	seeds := []struct{ dataType, dataKey string }{
		{"strategies", "a"},
		{"strategies", "b"},
		{"settings", "c"},
	}
	for _, s := range seeds {
		_, err := svc.Upsert(ctx, "user-1", UpsertRequest{
			LicenseKey: "TR-KEY",
			DataType:   s.dataType,
			DataKey:    s.dataKey,
			Value:      "v",
		})
		require.NoError(t, err)
	}

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.TotalItems)
	assert.Len(t, status.ByType, 2)
}

func TestService_List_FilterAndScope(t *testing.T) {
	svc, _, _ := newTestSyncService()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "user-1", UpsertRequest{
		LicenseKey: "TR-KEY",
		DataType:   "strategies",
		DataKey:    "a",
		Value:      "v",
	})
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, "user-2", UpsertRequest{
		LicenseKey: "TR-KEY",
		DataType:   "strategies",
		DataKey:    "a",
		Value:      "v",
	})
	require.NoError(t, err)

	items, err := svc.List(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.List(ctx, "user-1", "bogus")
	require.Error(t, err)
}
