package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-inventory-ledger/internal/metrics"
	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/config"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:svc_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Category{}, &model.Product{}, &model.Transaction{}))
	return db
}

// flakyProducts fails the first n quantity writes with a version conflict.
type flakyProducts struct {
	repository.ProductRepository

	mu        sync.Mutex
	conflicts int
	calls     int
}

func (f *flakyProducts) UpdateQuantity(ctx context.Context, id uuid.UUID, expectedVersion int64, quantity int) error {
	f.mu.Lock()
	f.calls++
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return repository.ErrVersionConflict
	}
	f.mu.Unlock()
	return f.ProductRepository.UpdateQuantity(ctx, id, expectedVersion, quantity)
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) InventoryChanged(context.Context) {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func (n *countingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type testEnv struct {
	db         *gorm.DB
	user       *model.User
	category   *model.Category
	users      repository.UserRepository
	categories repository.CategoryRepository
	products   repository.ProductRepository
	ledger     repository.TransactionRepository
	flaky      *flakyProducts
	notifier   *countingNotifier
	registry   *prometheus.Registry
	inventory  InventoryService
	reports    ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	env := &testEnv{
		db:         db,
		users:      repository.NewUserRepo(db),
		categories: repository.NewCategoryRepo(db),
		products:   repository.NewProductRepo(db),
		ledger:     repository.NewTransactionRepo(db),
		notifier:   &countingNotifier{},
		registry:   prometheus.NewRegistry(),
	}
	env.flaky = &flakyProducts{ProductRepository: env.products}

	env.user = &model.User{Username: "manager", Email: "manager@example.com", Role: model.RoleManager, IsActive: true}
	require.NoError(t, env.user.SetPassword("secret123"))
	require.NoError(t, env.users.Create(ctx, env.user))

	env.category = &model.Category{Name: "Electronics"}
	require.NoError(t, env.categories.Create(ctx, env.category))

	m := metrics.NewLedgerMetrics(env.registry)
	env.inventory = NewInventoryService(InventoryDeps{
		TxManager:    repository.NewTransactionManager(db),
		Products:     env.flaky,
		Transactions: env.ledger,
		Categories:   env.categories,
		Metrics:      m,
		Notifier:     env.notifier,
		Config:       config.LedgerConfig{MaxRetries: 3, LockTimeout: 5 * time.Second},
	})
	env.reports = NewReportService(env.products, env.ledger, nil, config.ReportConfig{
		LowStockLimit: 10,
		RecentLimit:   5,
		TopLimit:      5,
	}, m, nil)
	return env
}

func (e *testEnv) createProduct(t *testing.T, sku string, qty int) *model.Product {
	t.Helper()
	p, err := e.inventory.CreateProduct(context.Background(), CreateProductInput{
		SKU:         sku,
		Name:        "Product " + sku,
		CategoryID:  e.category.ID,
		Price:       decimal.NewFromInt(10),
		Cost:        decimal.NewFromInt(6),
		Quantity:    qty,
		MinQuantity: 5,
		CreatedBy:   e.user.ID,
	})
	require.NoError(t, err)
	return p
}

func intPtr(v int) *int { return &v }
