package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go-inventory-ledger/internal/metrics"
	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/cache"
	"go-inventory-ledger/pkg/config"
	"go-inventory-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	maxReportLimit     = 100
	searchLimit        = 50
	defaultMovementDay = 7
	maxMovementDays    = 365
)

// The dashboard is cached under a generation number that every committed change bumps,
// so a dashboard computed before a change can only land under a key nobody reads anymore.
var dashboardGenerationKey = cache.Key("report", "dashboard", "generation")

func dashboardCacheKey(generation int64) string {
	return cache.Key("report", "dashboard", strconv.FormatInt(generation, 10))
}

type dashboardCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetInt(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// ReportService derives read-only views of the catalog and the ledger.
type ReportService interface {
	LowStockProducts(ctx context.Context, limit int) ([]model.Product, error)
	TotalProductCount(ctx context.Context) (int64, error)
	OutOfStockCount(ctx context.Context) (int64, error)
	TotalInventoryValue(ctx context.Context) (decimal.Decimal, error)
	RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error)
	TransactionCountByType(ctx context.Context) ([]repository.TypeCount, error)
	TopProductsByQuantity(ctx context.Context, limit int) ([]model.Product, error)
	SearchProducts(ctx context.Context, query string) ([]model.Product, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
	StockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)

	ChangeNotifier
}

type Dashboard struct {
	LowStockProducts   []model.ProductResponse     `json:"low_stock_products"`
	TotalProducts      int64                       `json:"total_products"`
	OutOfStockProducts int64                       `json:"out_of_stock_products"`
	InventoryValue     decimal.Decimal             `json:"inventory_value"`
	RecentTransactions []model.TransactionResponse `json:"recent_transactions"`
	TransactionsByType []repository.TypeCount      `json:"transactions_by_type"`
	TopProducts        []TopProduct                `json:"top_products"`
	GeneratedAt        time.Time                   `json:"generated_at"`
}

type TopProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type reportService struct {
	products repository.ProductRepository
	ledger   repository.TransactionRepository
	cache    dashboardCache
	cfg      config.ReportConfig
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewReportService builds the aggregator. A nil cache disables dashboard caching.
func NewReportService(products repository.ProductRepository, ledger repository.TransactionRepository, c *cache.Client, cfg config.ReportConfig, m *metrics.LedgerMetrics, logg *logger.Logger) ReportService {
	if logg == nil {
		logg = logger.Nop()
	}
	svc := &reportService{
		products: products,
		ledger:   ledger,
		cfg:      cfg,
		metrics:  m,
		logg:     logg,
		now:      time.Now,
	}
	if c != nil {
		svc.cache = c
	}
	return svc
}

func (s *reportService) LowStockProducts(ctx context.Context, limit int) ([]model.Product, error) {
	products, err := s.products.LowStock(ctx, clampLimit(limit, s.cfg.LowStockLimit))
	if err != nil {
		return nil, translate(err, "")
	}
	return nonNil(products), nil
}

func (s *reportService) TotalProductCount(ctx context.Context) (int64, error) {
	count, err := s.products.Count(ctx)
	return count, translate(err, "")
}

func (s *reportService) OutOfStockCount(ctx context.Context) (int64, error) {
	count, err := s.products.CountOutOfStock(ctx)
	return count, translate(err, "")
}

func (s *reportService) TotalInventoryValue(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.products.TotalValue(ctx)
	if err != nil {
		return decimal.Zero, translate(err, "")
	}
	return total, nil
}

func (s *reportService) RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	entries, err := s.ledger.Recent(ctx, clampLimit(limit, s.cfg.RecentLimit))
	if err != nil {
		return nil, translate(err, "")
	}
	if entries == nil {
		entries = []model.Transaction{}
	}
	return entries, nil
}

// TransactionCountByType always lists all four types, zero-filled.
func (s *reportService) TransactionCountByType(ctx context.Context) ([]repository.TypeCount, error) {
	counts, err := s.ledger.CountByType(ctx)
	if err != nil {
		return nil, translate(err, "")
	}
	byType := make(map[model.TransactionType]int64, len(counts))
	for _, c := range counts {
		byType[c.Type] = c.Count
	}
	histogram := make([]repository.TypeCount, 0, len(model.TransactionTypes))
	for _, t := range model.TransactionTypes {
		histogram = append(histogram, repository.TypeCount{Type: t, Count: byType[t]})
	}
	return histogram, nil
}

func (s *reportService) TopProductsByQuantity(ctx context.Context, limit int) ([]model.Product, error) {
	products, err := s.products.TopByQuantity(ctx, clampLimit(limit, s.cfg.TopLimit))
	if err != nil {
		return nil, translate(err, "")
	}
	return nonNil(products), nil
}

// SearchProducts never fails on a query that matches nothing; it returns an empty list.
func (s *reportService) SearchProducts(ctx context.Context, query string) ([]model.Product, error) {
	if strings.TrimSpace(query) == "" {
		return []model.Product{}, nil
	}
	products, err := s.products.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, translate(err, "")
	}
	return nonNil(products), nil
}

func (s *reportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	key := ""
	if s.cache != nil && s.cfg.CacheTTL > 0 {
		generation, err := s.cache.GetInt(ctx, dashboardGenerationKey)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache generation read failed")
		} else {
			key = dashboardCacheKey(generation)
		}
	}

	if key != "" {
		var cached Dashboard
		err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			s.metrics.IncCache(true)
			return &cached, nil
		case !errors.Is(err, cache.ErrMiss):
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache read failed")
		}
		s.metrics.IncCache(false)
	}

	dash, err := s.buildDashboard(ctx)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := s.cache.SetJSON(ctx, key, dash, s.cfg.CacheTTL); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache write failed")
		}
	}
	return dash, nil
}

func (s *reportService) buildDashboard(ctx context.Context) (*Dashboard, error) {
	var (
		dash     = &Dashboard{GeneratedAt: s.now().UTC()}
		lowStock []model.Product
		recent   []model.Transaction
		top      []model.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lowStock, err = s.LowStockProducts(gctx, s.cfg.LowStockLimit)
		return err
	})
	g.Go(func() (err error) {
		dash.TotalProducts, err = s.TotalProductCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		dash.OutOfStockProducts, err = s.OutOfStockCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		dash.InventoryValue, err = s.TotalInventoryValue(gctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.RecentTransactions(gctx, s.cfg.RecentLimit)
		return err
	})
	g.Go(func() (err error) {
		dash.TransactionsByType, err = s.TransactionCountByType(gctx)
		return err
	})
	g.Go(func() (err error) {
		top, err = s.TopProductsByQuantity(gctx, s.cfg.TopLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logg.Error(ctx, "building dashboard failed", err)
		return nil, err
	}

	dash.LowStockProducts = model.ProductResponses(lowStock)
	dash.RecentTransactions = model.TransactionResponses(recent)
	dash.TopProducts = make([]TopProduct, len(top))
	for i, p := range top {
		dash.TopProducts[i] = TopProduct{ID: p.ID.String(), Name: p.Name, SKU: p.SKU, Quantity: p.Quantity}
	}
	return dash, nil
}

// StockMovement returns daily inbound/outbound unit totals for the last days days, today
// included. Days without entries are reported as zero.
func (s *reportService) StockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	if days <= 0 {
		days = defaultMovementDay
	}
	if days > maxMovementDays {
		days = maxMovementDays
	}
	endDate := s.now().UTC()
	startDate := endDate.Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))

	data, err := s.ledger.StockMovement(ctx, startDate, endDate)
	if err != nil {
		return nil, translate(err, "")
	}

	byDay := make(map[string]repository.StockMovementData, len(data))
	for _, d := range data {
		if len(d.Date) >= len(time.DateOnly) {
			d.Date = d.Date[:len(time.DateOnly)]
		}
		byDay[d.Date] = d
	}
	series := make([]repository.StockMovementData, days)
	for i := range series {
		day := startDate.AddDate(0, 0, i).Format(time.DateOnly)
		series[i] = repository.StockMovementData{Date: day}
		if d, ok := byDay[day]; ok {
			series[i] = d
		}
	}
	return series, nil
}

// InventoryChanged moves the dashboard to a new generation so the next read recomputes it.
func (s *reportService) InventoryChanged(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, dashboardGenerationKey); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache invalidation failed")
	}
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}
	return limit
}

func nonNil(products []model.Product) []model.Product {
	if products == nil {
		return []model.Product{}
	}
	return products
}
