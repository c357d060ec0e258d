package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"shophub/internal/config"
	"shophub/internal/database"
	"shophub/internal/handlers"
	"shophub/internal/middleware"
	"shophub/internal/models"
	"shophub/internal/payment"
	"shophub/internal/repositories"
	"shophub/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

const (
	keySecret     = "test_key_secret"
	webhookSecret = "test_webhook_secret"
	adminEmail    = "admin@example.com"
)

// fakeGateway hands out sequential provider order ids.
type fakeGateway struct {
	seq  int64
	fail bool
}

func (g *fakeGateway) OpenIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if g.fail {
		return nil, fmt.Errorf("connection refused")
	}
	n := atomic.AddInt64(&g.seq, 1)
	return &payment.Intent{
		ID:       fmt.Sprintf("order_test%d", n),
		Amount:   payment.MinorUnits(req.Amount),
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

type testEnv struct {
	app     *fiber.App
	gateway *fakeGateway
}

// setupApp wires the real repositories over a private in-memory database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Database: config.Database{
			Driver: "sqlite",
			DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		},
		Auth: config.Auth{JWTSecret: "test_jwt_secret", TokenTTL: time.Hour, AdminEmails: []string{adminEmail}},
		Payment: config.Payment{
			KeyID:         "rzp_test",
			KeySecret:     keySecret,
			WebhookSecret: webhookSecret,
			Currency:      "INR",
			Timeout:       time.Second,
		},
	}
	db, err := database.Open(cfg.Database)
	require.NoError(t, err)

	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	webhookRepo := repositories.NewGORMWebhookEventRepository(db)

	gateway := &fakeGateway{}
	authService := services.NewAuthService(userRepo, cfg.Auth)
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, gateway, nil, cfg.Payment)
	paymentService := services.NewPaymentService(orderRepo, webhookRepo, nil, cfg.Payment)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	requireAuth := middleware.AuthRequired(authService)

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1, requireAuth)

	productHandler := handlers.NewProductHandler(services.NewProductService(productRepo))
	orderHandler := handlers.NewOrderHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	store := apiV1.Group("/store")
	productHandler.RegisterStoreRoutes(store)
	handlers.NewUserHandler(services.NewUserService(userRepo)).RegisterStoreRoutes(store, requireAuth)
	orderHandler.RegisterStoreRoutes(store, requireAuth)
	paymentHandler.RegisterStoreRoutes(store, requireAuth)

	admin := apiV1.Group("/admin", requireAuth, middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)
	orderHandler.RegisterAdminRoutes(admin)

	paymentHandler.RegisterWebhook(app)

	return &testEnv{app: app, gateway: gateway}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst), string(raw))
}

// signUp registers and logs in a user and returns its id and token.
func (e *testEnv) signUp(t *testing.T, username, email string) (string, string) {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
		"name":     username,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var registered struct {
		User models.User `json:"user"`
	}
	decode(t, raw, &registered)

	status, raw = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	var login struct {
		Token string `json:"token"`
	}
	decode(t, raw, &login)
	require.NotEmpty(t, login.Token)
	return registered.User.ID, login.Token
}

// customer signs up a user with a delivery address on file.
func (e *testEnv) customer(t *testing.T, username string) (string, string) {
	t.Helper()
	id, token := e.signUp(t, username, username+"@example.com")
	status, raw := e.do(t, http.MethodPut, "/api/v1/store/users/address/"+id, token, map[string]string{
		"street":      "12 MG Road",
		"city":        "Bengaluru",
		"state":       "KA",
		"postalCode":  "560001",
		"country":     "IN",
		"phoneNumber": "9999999999",
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	return id, token
}

func (e *testEnv) createProduct(t *testing.T, adminToken, name, price string, stock int) models.Product {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/v1/admin/products", adminToken, map[string]interface{}{
		"name":     name,
		"category": "electronics",
		"price":    price,
		"stock":    stock,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var created struct {
		Data models.Product `json:"data"`
	}
	decode(t, raw, &created)
	return created.Data
}

func (e *testEnv) placeOrder(t *testing.T, token string, method models.PaymentMethod, items ...map[string]interface{}) (int, models.Order) {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/v1/store/order/payment", token, map[string]interface{}{
		"items":         items,
		"paymentMethod": method,
	})
	var created struct {
		Order models.Order `json:"order"`
	}
	if status == http.StatusCreated {
		decode(t, raw, &created)
	}
	return status, created.Order
}

func line(productID string, qty int) map[string]interface{} {
	return map[string]interface{}{"productId": productID, "quantity": qty}
}

func (e *testEnv) stock(t *testing.T, adminToken, productID string) int {
	t.Helper()
	status, raw := e.do(t, http.MethodGet, "/api/v1/admin/product/"+productID, adminToken, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var got struct {
		Data models.Product `json:"data"`
	}
	decode(t, raw, &got)
	return got.Data.Stock
}

func (e *testEnv) orderStatus(t *testing.T, token, orderID string) (int, models.Order) {
	t.Helper()
	status, raw := e.do(t, http.MethodGet, "/api/v1/store/order/"+orderID, token, nil)
	var got struct {
		Data models.Order `json:"data"`
	}
	if status == http.StatusOK {
		decode(t, raw, &got)
	}
	return status, got.Data
}

func (e *testEnv) webhook(t *testing.T, body []byte, signature, eventID string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/verification", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payment.SignatureHeader, signature)
	if eventID != "" {
		req.Header.Set(payment.EventIDHeader, eventID)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)
	id, token := env.signUp(t, "testuser", "test@example.com")

	// Duplicate registration (username)
	status, raw := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "testuser",
		"email":    "other@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(raw), `"success":false`)

	// Wrong password
	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Invalid payload is reported per field
	status, raw = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), "errors")

	status, raw = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		User models.User `json:"user"`
	}
	decode(t, raw, &me)
	assert.Equal(t, id, me.User.ID)
	assert.False(t, me.User.IsAdmin)
	assert.NotContains(t, string(raw), "password123")
}

func TestAdminProductEndpoints(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, userToken := env.signUp(t, "shopper", "shopper@example.com")

	// Catalog management is admin only
	status, _ := env.do(t, http.MethodPost, "/api/v1/admin/products", userToken, map[string]interface{}{
		"name": "Smartphone", "category": "electronics", "price": "799.99", "stock": 50,
	})
	assert.Equal(t, http.StatusForbidden, status)

	product := env.createProduct(t, adminToken, "Smartphone", "799.99", 50)
	assert.NotEmpty(t, product.ID)
	assert.True(t, product.IsPublished)
	assert.Contains(t, product.Slug, "smartphone-")

	// Visible on the storefront by slug
	status, _ = env.do(t, http.MethodGet, "/api/v1/store/product/"+product.Slug, "", nil)
	assert.Equal(t, http.StatusOK, status)

	// Update with a discount
	status, raw := env.do(t, http.MethodPut, "/api/v1/admin/product/update/"+product.ID, adminToken, map[string]interface{}{
		"discountPercent": "10",
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	var updated struct {
		Data models.Product `json:"data"`
	}
	decode(t, raw, &updated)
	assert.Equal(t, "719.99", updated.Data.DiscountPrice.StringFixed(2))

	// Unpublishing hides it from the storefront
	status, _ = env.do(t, http.MethodPut, "/api/v1/admin/product/update/publish/"+product.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, raw = env.do(t, http.MethodGet, "/api/v1/store/products", "", nil)
	require.Equal(t, http.StatusOK, status)
	var listing struct {
		Data  []models.Product `json:"data"`
		Total int64            `json:"total"`
	}
	decode(t, raw, &listing)
	assert.Empty(t, listing.Data)
	assert.Zero(t, listing.Total)
	status, _ = env.do(t, http.MethodGet, "/api/v1/store/product/"+product.Slug, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Export
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/products/export", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sheetBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	file, err := xlsx.OpenBinary(sheetBytes)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	assert.Len(t, file.Sheets[0].Rows, 2)

	// Delete
	status, raw = env.do(t, http.MethodDelete, "/api/v1/admin/product/delete/"+product.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "deleted successfully")
	status, _ = env.do(t, http.MethodGet, "/api/v1/admin/product/"+product.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateAddressOfAnotherUserIsForbidden(t *testing.T) {
	env := setupApp(t)
	victimID, _ := env.signUp(t, "victim", "victim@example.com")
	_, token := env.signUp(t, "intruder", "intruder@example.com")

	status, raw := env.do(t, http.MethodPut, "/api/v1/store/users/address/"+victimID, token, map[string]string{
		"street": "1 Fake St", "city": "X", "state": "Y", "postalCode": "0", "country": "IN", "phoneNumber": "1",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(raw), `"success":false`)
}

func TestCashOnDeliveryOrderFlow(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, token := env.customer(t, "buyer")

	laptop := env.createProduct(t, adminToken, "Laptop", "1000", 5)
	mouse := env.createProduct(t, adminToken, "Mouse", "25.50", 10)

	// Ordering without an address on file is rejected
	_, homeless := env.signUp(t, "nomad", "nomad@example.com")
	status, _ := env.placeOrder(t, homeless, models.PaymentCOD, line(laptop.ID, 1))
	assert.Equal(t, http.StatusBadRequest, status)

	status, order := env.placeOrder(t, token, models.PaymentCOD, line(laptop.ID, 2), line(mouse.ID, 2))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.DeliveryPending, order.DeliveryStatus)
	assert.Equal(t, "2051.00", order.TotalAmount.StringFixed(2))
	assert.Nil(t, order.GatewayOrderID)
	assert.Len(t, order.Items, 2)

	// Nothing is reserved before delivery
	assert.Equal(t, 5, env.stock(t, adminToken, laptop.ID))

	// Customers cannot move deliveries along
	status, _ = env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, token, map[string]string{"status": "SHIPPED"})
	assert.Equal(t, http.StatusForbidden, status)

	status, raw := env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, adminToken, map[string]string{"status": "BOXED"})
	assert.Equal(t, http.StatusBadRequest, status, string(raw))

	status, _ = env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, adminToken, map[string]string{"status": "SHIPPED"})
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, adminToken, map[string]string{"status": "DELIVERED"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, env.stock(t, adminToken, laptop.ID))
	assert.Equal(t, 8, env.stock(t, adminToken, mouse.ID))

	_, delivered := env.orderStatus(t, token, order.ID)
	assert.Equal(t, models.OrderCompleted, delivered.Status)
	assert.Equal(t, models.DeliveryDelivered, delivered.DeliveryStatus)

	// A repeated delivery does not decrement again
	status, _ = env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, adminToken, map[string]string{"status": "DELIVERED"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, env.stock(t, adminToken, laptop.ID))

	// Dashboard reflects the completed order
	status, raw = env.do(t, http.MethodGet, "/api/v1/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var dash struct {
		Data models.DashboardStats `json:"data"`
	}
	decode(t, raw, &dash)
	assert.Equal(t, int64(2), dash.Data.TotalProducts)
	assert.Equal(t, int64(1), dash.Data.TotalOrders)
	assert.Equal(t, "2051.00", dash.Data.TotalIncome.StringFixed(2))

	// Admin listing is paginated
	status, raw = env.do(t, http.MethodGet, "/api/v1/admin/orders?page=1&size=5", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var listing struct {
		Pagination struct {
			CurrentPage int   `json:"currentPage"`
			PageSize    int   `json:"pageSize"`
			TotalOrders int64 `json:"totalOrders"`
			TotalPages  int   `json:"totalPages"`
		} `json:"pagination"`
	}
	decode(t, raw, &listing)
	assert.Equal(t, 1, listing.Pagination.CurrentPage)
	assert.Equal(t, 5, listing.Pagination.PageSize)
	assert.Equal(t, int64(1), listing.Pagination.TotalOrders)
	assert.Equal(t, 1, listing.Pagination.TotalPages)
}

func TestDeliveryBeyondStockIsRejected(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, token := env.customer(t, "buyer")
	monitor := env.createProduct(t, adminToken, "Monitor", "200", 1)

	status, order := env.placeOrder(t, token, models.PaymentCOD, line(monitor.ID, 3))
	require.Equal(t, http.StatusCreated, status)

	status, raw := env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, adminToken, map[string]string{"status": "DELIVERED"})
	assert.Equal(t, http.StatusConflict, status, string(raw))
	assert.Equal(t, 1, env.stock(t, adminToken, monitor.ID))

	_, current := env.orderStatus(t, token, order.ID)
	assert.Equal(t, models.OrderPending, current.Status)
	assert.NotEqual(t, models.DeliveryDelivered, current.DeliveryStatus)
}

func TestOnlineOrderClientConfirmation(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, token := env.customer(t, "buyer")
	_, otherToken := env.customer(t, "stranger")
	headset := env.createProduct(t, adminToken, "Headset", "150", 10)

	status, order := env.placeOrder(t, token, models.PaymentOnline, line(headset.ID, 2))
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, order.GatewayOrderID)
	gatewayOrderID := *order.GatewayOrderID

	// Strangers cannot see the order
	status, _ = env.orderStatus(t, otherToken, order.ID)
	assert.Equal(t, http.StatusNotFound, status)

	// Unpaid online orders cannot be delivered
	status, _ = env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, adminToken, map[string]string{"status": "DELIVERED"})
	assert.Equal(t, http.StatusBadRequest, status)

	verify := map[string]string{
		"orderId":           order.ID,
		"externalOrderId":   gatewayOrderID,
		"externalPaymentId": "pay_1",
		"signature":         payment.Sign(payment.ConfirmationMessage(gatewayOrderID, "pay_1"), keySecret),
	}
	status, raw := env.do(t, http.MethodPost, "/api/v1/store/order/payment/verify", token, verify)
	require.Equal(t, http.StatusOK, status, string(raw))
	var verified struct {
		OrderID   string `json:"orderId"`
		PaymentID string `json:"paymentId"`
	}
	decode(t, raw, &verified)
	assert.Equal(t, order.ID, verified.OrderID)
	assert.Equal(t, "pay_1", verified.PaymentID)

	_, paid := env.orderStatus(t, token, order.ID)
	assert.Equal(t, models.OrderCompleted, paid.Status)

	// A paid order cannot be removed as failed
	status, _ = env.do(t, http.MethodDelete, "/api/v1/store/order/"+order.ID, token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Delivery now decrements stock once
	status, _ = env.do(t, http.MethodPut, "/api/v1/admin/order/update/"+order.ID, adminToken, map[string]string{"status": "DELIVERED"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 8, env.stock(t, adminToken, headset.ID))
}

func TestOnlineOrderTamperedConfirmation(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, token := env.customer(t, "buyer")
	headset := env.createProduct(t, adminToken, "Headset", "150", 10)

	status, order := env.placeOrder(t, token, models.PaymentOnline, line(headset.ID, 1))
	require.Equal(t, http.StatusCreated, status)

	status, raw := env.do(t, http.MethodPost, "/api/v1/store/order/payment/verify", token, map[string]string{
		"orderId":           order.ID,
		"externalOrderId":   *order.GatewayOrderID,
		"externalPaymentId": "pay_1",
		"signature":         payment.Sign(payment.ConfirmationMessage(*order.GatewayOrderID, "pay_2"), keySecret),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), `"success":false`)

	_, cancelled := env.orderStatus(t, token, order.ID)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	// The failed order can be cleaned up by its owner
	status, _ = env.do(t, http.MethodDelete, "/api/v1/store/order/"+order.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.orderStatus(t, token, order.ID)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOnlineOrderGatewayDown(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, token := env.customer(t, "buyer")
	headset := env.createProduct(t, adminToken, "Headset", "150", 10)

	env.gateway.fail = true
	status, _ := env.placeOrder(t, token, models.PaymentOnline, line(headset.ID, 1))
	assert.Equal(t, http.StatusInternalServerError, status)

	status, raw := env.do(t, http.MethodGet, "/api/v1/store/orders", token, nil)
	require.Equal(t, http.StatusOK, status)
	var mine struct {
		Data []models.Order `json:"data"`
	}
	decode(t, raw, &mine)
	assert.Empty(t, mine.Data)
}

func TestPaymentWebhook(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, token := env.customer(t, "buyer")
	headset := env.createProduct(t, adminToken, "Headset", "150", 10)

	status, order := env.placeOrder(t, token, models.PaymentOnline, line(headset.ID, 1))
	require.Equal(t, http.StatusCreated, status)
	gatewayOrderID := *order.GatewayOrderID

	body := []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":%q,"status":"captured"}}}}`,
		gatewayOrderID))

	// Wrong secret
	status, _ = env.webhook(t, body, payment.Sign(body, "not-the-secret"), "evt_1")
	assert.Equal(t, http.StatusBadRequest, status)
	_, current := env.orderStatus(t, token, order.ID)
	assert.Equal(t, models.OrderPending, current.Status)

	signature := payment.Sign(body, webhookSecret)
	status, raw := env.webhook(t, body, signature, "evt_1")
	require.Equal(t, http.StatusOK, status, string(raw))
	_, current = env.orderStatus(t, token, order.ID)
	assert.Equal(t, models.OrderCompleted, current.Status)

	// Redelivery is acknowledged without effect
	status, _ = env.webhook(t, body, signature, "evt_1")
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.webhook(t, body, signature, "")
	assert.Equal(t, http.StatusOK, status)

	// A cancellation arriving after payment keeps the order
	cancel := []byte(fmt.Sprintf(
		`{"event":"order.cancelled","payload":{"order":{"entity":{"id":%q,"status":"cancelled"}}}}`,
		gatewayOrderID))
	status, _ = env.webhook(t, cancel, payment.Sign(cancel, webhookSecret), "evt_2")
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.orderStatus(t, token, order.ID)
	assert.Equal(t, http.StatusOK, status)

	// Unknown orders are acknowledged
	stray := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_nope","status":"captured"}}}}`)
	status, _ = env.webhook(t, stray, payment.Sign(stray, webhookSecret), "evt_3")
	assert.Equal(t, http.StatusOK, status)
}

func TestPaymentWebhookCancelsUnpaidOrder(t *testing.T) {
	env := setupApp(t)
	_, adminToken := env.signUp(t, "admin", adminEmail)
	_, token := env.customer(t, "buyer")
	headset := env.createProduct(t, adminToken, "Headset", "150", 10)

	_, failed := env.placeOrder(t, token, models.PaymentOnline, line(headset.ID, 1))
	_, abandoned := env.placeOrder(t, token, models.PaymentOnline, line(headset.ID, 1))

	body := []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_f","order_id":%q,"status":"failed"}}}}`,
		*failed.GatewayOrderID))
	status, _ := env.webhook(t, body, payment.Sign(body, webhookSecret), "evt_f")
	require.Equal(t, http.StatusOK, status)
	_, current := env.orderStatus(t, token, failed.ID)
	assert.Equal(t, models.OrderCancelled, current.Status)

	body = []byte(fmt.Sprintf(
		`{"event":"order.cancelled","payload":{"order":{"entity":{"id":%q,"status":"cancelled"}}}}`,
		*abandoned.GatewayOrderID))
	status, _ = env.webhook(t, body, payment.Sign(body, webhookSecret), "evt_c")
	require.Equal(t, http.StatusOK, status)
	status, _ = env.orderStatus(t, token, abandoned.ID)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestEndpointsWithoutAuth(t *testing.T) {
	env := setupApp(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/store/order/payment"},
		{http.MethodPost, "/api/v1/store/order/payment/verify"},
		{http.MethodGet, "/api/v1/store/orders"},
		{http.MethodGet, "/api/v1/admin/products"},
		{http.MethodGet, "/api/v1/admin/dashboard"},
	} {
		status, raw := env.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, route.path)
		assert.Contains(t, string(raw), `"success":false`, route.path)
	}

	status, _ := env.do(t, http.MethodGet, "/api/v1/store/orders", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
