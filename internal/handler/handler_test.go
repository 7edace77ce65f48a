package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-inventory-ledger/internal/middleware"
	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/internal/service"
	"go-inventory-ledger/pkg/config"
	"go-inventory-ledger/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testServer struct {
	app    *fiber.App
	tokens map[model.Role]string
	users  map[model.Role]*model.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := "file:api_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Category{}, &model.Product{}, &model.Transaction{}))

	userRepo := repository.NewUserRepo(db)
	productRepo := repository.NewProductRepo(db)
	ledgerRepo := repository.NewTransactionRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)

	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "inventory-test", ExpirationHours: 1}
	tokens := jwt.NewManager(jwtCfg)

	reports := service.NewReportService(productRepo, ledgerRepo, nil, config.ReportConfig{LowStockLimit: 10, RecentLimit: 5, TopLimit: 5}, nil, nil)
	inventory := service.NewInventoryService(service.InventoryDeps{
		TxManager:    repository.NewTransactionManager(db),
		Products:     productRepo,
		Transactions: ledgerRepo,
		Categories:   categoryRepo,
		Notifier:     reports,
		Config:       config.LedgerConfig{MaxRetries: 3, LockTimeout: 5 * time.Second},
	})
	authSvc := service.NewAuthService(userRepo, tokens, jwtCfg.Expiration(), nil)
	userSvc := service.NewUserService(userRepo)

	srv := &testServer{tokens: map[model.Role]string{}, users: map[model.Role]*model.User{}}
	for _, role := range model.Roles {
		u, err := userSvc.CreateUser(context.Background(), &service.CreateUserRequest{
			Username: string(role) + "user",
			Email:    string(role) + "@example.com",
			Password: "secret123",
			Role:     role,
		})
		require.NoError(t, err)
		token, err := tokens.GenerateToken(u.ID, u.Username, u.Email, string(u.Role))
		require.NoError(t, err)
		srv.users[role] = u
		srv.tokens[role] = token
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, Handlers{
		Auth:      NewAuthHandler(authSvc),
		Inventory: NewInventoryHandler(inventory, reports),
		Category:  NewCategoryHandler(service.NewCategoryService(categoryRepo, productRepo)),
		Dashboard: NewDashboardHandler(reports),
		User:      NewUserHandler(userSvc),
	}, middleware.RequireAuth(authSvc, nil))
	srv.app = app
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, role model.Role, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := s.tokens[role]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 {
		out["_raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func (s *testServer) seedProduct(t *testing.T, qty int) (categoryID, productID string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/v1/categories", model.RoleManager, map[string]any{"name": "Cables"})
	require.Equal(t, http.StatusCreated, status, body)
	categoryID = body["data"].(map[string]any)["id"].(string)

	status, body = s.do(t, http.MethodPost, "/api/v1/products", model.RoleManager, map[string]any{
		"sku":          "CAB-1",
		"name":         "USB cable",
		"category_id":  categoryID,
		"price":        "4.50",
		"cost":         "2.00",
		"quantity":     qty,
		"min_quantity": 2,
	})
	require.Equal(t, http.StatusCreated, status, body)
	productID = body["data"].(map[string]any)["id"].(string)
	return categoryID, productID
}

func TestLoginAndMe(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "admin@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["token"])

	status, body = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "admin@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/auth/me", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "staff", body["role"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoleAuthorization(t *testing.T) {
	srv := newTestServer(t)
	_, productID := srv.seedProduct(t, 5)

	status, _ := srv.do(t, http.MethodPost, "/api/v1/transactions", model.RoleStaff, map[string]any{
		"product_id": productID, "type": "in", "quantity": 1,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodDelete, "/api/v1/products/"+productID, model.RoleManager, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/users", model.RoleManager, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/products/"+productID, model.RoleStaff, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestTransactionFlow(t *testing.T) {
	srv := newTestServer(t)
	_, productID := srv.seedProduct(t, 1)

	status, body := srv.do(t, http.MethodPost, "/api/v1/transactions", model.RoleManager, map[string]any{
		"product_id": productID, "type": "out", "quantity": 2,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	details := body["details"].(map[string]any)
	assert.EqualValues(t, 2, details["requested"])
	assert.EqualValues(t, 1, details["available"])

	status, body = srv.do(t, http.MethodPost, "/api/v1/transactions", model.RoleManager, map[string]any{
		"product_id": productID, "type": "out", "quantity": 1, "notes": "sold",
	})
	require.Equal(t, http.StatusCreated, status, body)
	entry := body["data"].(map[string]any)
	assert.EqualValues(t, 1, entry["previous_quantity"])
	assert.EqualValues(t, 0, entry["new_quantity"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions/product/"+productID, model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])
	items := body["items"].([]any)
	assert.Equal(t, "out", items[0].(map[string]any)["type"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/products/"+productID, model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["quantity"])
	assert.Equal(t, "out_of_stock", body["stock_status"])

	status, body = srv.do(t, http.MethodPost, "/api/v1/transactions", model.RoleManager, map[string]any{
		"product_id": productID, "type": "transfer", "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestProductUpdateAndDelete(t *testing.T) {
	srv := newTestServer(t)
	_, productID := srv.seedProduct(t, 10)

	status, body := srv.do(t, http.MethodPut, "/api/v1/products/"+productID, model.RoleManager, map[string]any{
		"quantity": 4,
		"name":     "USB-C cable",
	})
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 4, data["quantity"])
	assert.Equal(t, "USB-C cable", data["name"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions?product_id="+productID+"&type=out", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, _ = srv.do(t, http.MethodDelete, "/api/v1/products/"+productID, model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/products/"+productID, model.RoleStaff, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions/product/"+productID, model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])

	status, _ = srv.do(t, http.MethodGet, "/api/v1/products/not-a-uuid", model.RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCategoryInUseCannotBeDeleted(t *testing.T) {
	srv := newTestServer(t)
	categoryID, productID := srv.seedProduct(t, 0)

	status, body := srv.do(t, http.MethodDelete, "/api/v1/categories/"+categoryID, model.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["code"])

	status, _ = srv.do(t, http.MethodDelete, "/api/v1/products/"+productID, model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodDelete, "/api/v1/categories/"+categoryID, model.RoleAdmin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSearchAndDashboard(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, 1)

	status, body := srv.do(t, http.MethodGet, "/api/v1/products/search/nothing-matches", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", body["_raw"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/products/search/usb%20cable", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["_raw"], `"sku":"CAB-1"`)

	status, body = srv.do(t, http.MethodGet, "/api/v1/dashboard", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total_products"])
	assert.Len(t, body["transactions_by_type"], 4)
	assert.Len(t, body["low_stock_products"], 1)
}

func TestUserAdministration(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodPost, "/api/v1/users", model.RoleAdmin, map[string]any{
		"username": "clerk",
		"email":    "clerk@example.com",
		"password": "secret123",
		"role":     "staff",
	})
	require.Equal(t, http.StatusCreated, status, body)
	id := body["data"].(map[string]any)["id"].(string)

	status, body = srv.do(t, http.MethodPost, "/api/v1/users", model.RoleAdmin, map[string]any{
		"username": "clerk2",
		"email":    "clerk@example.com",
		"password": "secret123",
		"role":     "staff",
	})
	assert.Equal(t, http.StatusConflict, status, body)

	status, _ = srv.do(t, http.MethodDelete, "/api/v1/users/"+id, model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "clerk@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, status, body)

	adminID := srv.users[model.RoleAdmin].ID.String()
	status, _ = srv.do(t, http.MethodDelete, "/api/v1/users/"+adminID, model.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTransactionDateFilters(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, 3)

	today := time.Now().UTC()
	cases := map[string]struct {
		query string
		total int
	}{
		"bare to date covers the day": {"to=" + today.Format(time.DateOnly), 1},
		"bare to date before entry":   {"to=" + today.AddDate(0, 0, -1).Format(time.DateOnly), 0},
		"from today":                  {"from=" + today.Format(time.DateOnly), 1},
		"from tomorrow":               {"from=" + today.AddDate(0, 0, 1).Format(time.DateOnly), 0},
		"rfc3339 to is exact":         {"to=" + today.Add(-time.Hour).Format(time.RFC3339), 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := srv.do(t, http.MethodGet, "/api/v1/transactions?"+tc.query, model.RoleStaff, nil)
			require.Equal(t, http.StatusOK, status, body)
			assert.EqualValues(t, tc.total, body["total"])
		})
	}

	status, body := srv.do(t, http.MethodGet, "/api/v1/transactions?to=18-10-2026", model.RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestParseDate(t *testing.T) {
	at, dateOnly, err := parseDate("2026-10-18")
	require.NoError(t, err)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), at)

	at, dateOnly, err = parseDate("2026-10-18T09:30:00Z")
	require.NoError(t, err)
	assert.False(t, dateOnly)
	assert.Equal(t, 9, at.Hour())

	_, _, err = parseDate("yesterday")
	assert.Error(t, err)
}
