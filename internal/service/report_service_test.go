package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/cache"
	"go-inventory-ledger/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportsOnEmptyInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dash, err := env.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, dash.TotalProducts)
	assert.Zero(t, dash.OutOfStockProducts)
	assert.True(t, dash.InventoryValue.IsZero())
	assert.Empty(t, dash.LowStockProducts)
	assert.Empty(t, dash.RecentTransactions)
	assert.Empty(t, dash.TopProducts)
	require.Len(t, dash.TransactionsByType, len(model.TransactionTypes))
	for _, c := range dash.TransactionsByType {
		assert.Zero(t, c.Count)
	}

	found, err := env.reports.SearchProducts(ctx, "anything")
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestInventoryValuation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 2 x 10.00 + 3 x 5.00 = 35.00
	for _, in := range []CreateProductInput{
		{SKU: "VAL-A", Name: "Alpha", Price: decimal.NewFromInt(10), Quantity: 2},
		{SKU: "VAL-B", Name: "Bravo", Price: decimal.NewFromInt(5), Quantity: 3},
		{SKU: "VAL-C", Name: "Charlie", Price: decimal.RequireFromString("99.99"), Quantity: 0},
	} {
		in.CategoryID = env.category.ID
		in.CreatedBy = env.user.ID
		_, err := env.inventory.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	total, err := env.reports.TotalInventoryValue(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(35).Equal(total), "got %s", total)

	count, err := env.reports.TotalProductCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	out, err := env.reports.OutOfStockCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, out)
}

func TestLowStockTopAndHistogram(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// createProduct uses min_quantity 5.
	empty := env.createProduct(t, "LOW-0", 0)
	low := env.createProduct(t, "LOW-3", 3)
	env.createProduct(t, "OK-50", 50)
	big := env.createProduct(t, "OK-90", 90)

	_, err := env.inventory.RecordMovement(ctx, RecordMovementInput{ProductID: big.ID, Type: model.TxOut, Quantity: 10, PerformedBy: env.user.ID})
	require.NoError(t, err)
	_, err = env.inventory.RecordMovement(ctx, RecordMovementInput{ProductID: low.ID, Type: model.TxAdjustment, NewQuantity: intPtr(2), PerformedBy: env.user.ID})
	require.NoError(t, err)

	lowStock, err := env.reports.LowStockProducts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, lowStock, 2)
	assert.Equal(t, empty.ID, lowStock[0].ID)
	assert.Equal(t, low.ID, lowStock[1].ID)

	top, err := env.reports.TopProductsByQuantity(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, big.ID, top[0].ID)
	assert.Equal(t, 80, top[0].Quantity)

	histogram, err := env.reports.TransactionCountByType(ctx)
	require.NoError(t, err)
	want := map[model.TransactionType]int64{
		model.TxIn:         0,
		model.TxOut:        1,
		model.TxAdjustment: 1,
		model.TxPurchase:   3,
	}
	got := map[model.TransactionType]int64{}
	for _, c := range histogram {
		got[c.Type] = c.Count
	}
	assert.Equal(t, want, got)

	recent, err := env.reports.RecentTransactions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, model.TxAdjustment, recent[0].Type)
	require.NotNil(t, recent[0].Product)
	assert.Equal(t, "LOW-3", recent[0].Product.SKU)

	dash, err := env.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, dash.TotalProducts)
	assert.EqualValues(t, 1, dash.OutOfStockProducts)
	assert.Len(t, dash.LowStockProducts, 2)
	assert.Equal(t, model.StockStatusOutOfStock, dash.LowStockProducts[0].StockStatus)
	assert.Len(t, dash.RecentTransactions, 5)
	require.NotEmpty(t, dash.TopProducts)
	assert.Equal(t, "OK-90", dash.TopProducts[0].SKU)
}

func TestSearchProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createProduct(t, "CAB-100", 1)
	env.createProduct(t, "ADP-200", 1)

	found, err := env.reports.SearchProducts(ctx, "cab")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "CAB-100", found[0].SKU)

	found, err = env.reports.SearchProducts(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = env.reports.SearchProducts(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 7, clampLimit(0, 7))
	assert.Equal(t, 10, clampLimit(-1, 0))
	assert.Equal(t, maxReportLimit, clampLimit(1000, 5))
	assert.Equal(t, 3, clampLimit(3, 5))
}

func TestStockMovementWindowIsClamped(t *testing.T) {
	ledger := &windowRecorder{}
	svc := NewReportService(nil, ledger, nil, config.ReportConfig{}, nil, nil).(*reportService)
	fixed := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	series, err := svc.StockMovement(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), ledger.start)
	assert.Equal(t, fixed, ledger.end)
	assert.Len(t, series, defaultMovementDay)

	series, err = svc.StockMovement(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(maxMovementDays-1)), ledger.start)
	assert.Len(t, series, maxMovementDays)
}

func TestStockMovementFillsQuietDays(t *testing.T) {
	ledger := &windowRecorder{rows: []repository.StockMovementData{
		{Date: "2024-03-08", Inbound: 4, Outbound: 1},
		{Date: "2024-03-10", Inbound: 0, Outbound: 2},
	}}
	svc := NewReportService(nil, ledger, nil, config.ReportConfig{}, nil, nil).(*reportService)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC) }

	series, err := svc.StockMovement(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []repository.StockMovementData{
		{Date: "2024-03-07"},
		{Date: "2024-03-08", Inbound: 4, Outbound: 1},
		{Date: "2024-03-09"},
		{Date: "2024-03-10", Outbound: 2},
	}, series)
}

func TestStockMovementCountsTodaysEntries(t *testing.T) {
	env := newTestEnv(t)
	env.createProduct(t, "SKU-MOVE", 6)

	series, err := env.reports.StockMovement(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, time.Now().UTC().Format(time.DateOnly), series[2].Date)
	assert.Equal(t, 6, series[2].Inbound)
	assert.Zero(t, series[0].Inbound)
}

type windowRecorder struct {
	repository.TransactionRepository
	start, end time.Time
	rows       []repository.StockMovementData
}

func (w *windowRecorder) StockMovement(_ context.Context, start, end time.Time) ([]repository.StockMovementData, error) {
	w.start, w.end = start, end
	return w.rows, nil
}

type memoryCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64
	hits     int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}, counters: map[string]int64{}}
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return cache.ErrMiss
	}
	m.hits++
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) GetInt(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

func (m *memoryCache) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func TestDashboardCacheIgnoresWritesFromBeforeAChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := newMemoryCache()
	svc := NewReportService(env.products, env.ledger, nil, config.ReportConfig{
		CacheTTL:      time.Minute,
		LowStockLimit: 10,
		RecentLimit:   5,
		TopLimit:      5,
	}, nil, nil).(*reportService)
	svc.cache = store

	first, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.TotalProducts)

	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.hits)

	env.createProduct(t, "SKU-GEN", 4)
	svc.InventoryChanged(ctx)
	// A build that started before the change finishes late and writes its stale result.
	require.NoError(t, store.SetJSON(ctx, dashboardCacheKey(0), first, time.Minute))

	fresh, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fresh.TotalProducts)
	assert.Equal(t, 1, store.hits)

	cached, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cached.TotalProducts)
	assert.Equal(t, 2, store.hits)
}
