package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/upscpath/payments-backend/internal/config"
	"github.com/upscpath/payments-backend/internal/controller"
	"github.com/upscpath/payments-backend/internal/models"
	"github.com/upscpath/payments-backend/internal/repository"
	"github.com/upscpath/payments-backend/internal/service"
	"github.com/upscpath/payments-backend/pkg/database"
)

func newTestApp(t *testing.T, secret string) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		DatabaseURL: "test",
		Dodo: config.DodoConfig{
			WebhookSecret:  secret,
			CreditPackages: map[string]int{"pdt_credits_100": 100},
			PlanProducts:   map[string]string{},
		},
		Plans: config.PlanConfig{
			MonthlyCredits: map[string]int{models.PlanBasic: 200, models.PlanPro: 400},
		},
	}

	svc := service.NewWebhookService(
		cfg,
		repository.NewUserRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewCreditLedgerRepository(db),
		repository.NewPaymentHistoryRepository(db),
		nil,
		zap.NewNop().Sugar(),
	)
	h := NewWebhookHandler(controller.NewWebhookController(svc), secret, nil, zap.NewNop().Sugar())

	app := fiber.New()
	app.Post("/api/payments/webhook", h.HandleDodoWebhook)
	return app, db
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) models.WebhookResponse {
	t.Helper()
	var out models.WebhookResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleDodoWebhook_MalformedJSON(t *testing.T) {
	app, _ := newTestApp(t, "")

	resp := postWebhook(t, app, []byte("{not json"), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.False(t, decodeResponse(t, resp).Success)
}

func TestHandleDodoWebhook_MissingType(t *testing.T) {
	app, _ := newTestApp(t, "")

	resp := postWebhook(t, app, []byte(`{"data":{"payment_id":"pay_1"}}`), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleDodoWebhook_UnknownEventAcknowledged(t *testing.T) {
	app, db := newTestApp(t, "")

	resp := postWebhook(t, app, []byte(`{"type":"refund.created","data":{}}`), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeResponse(t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, "refund.created", out.Event)

	var count int64
	require.NoError(t, db.Model(&models.PaymentHistory{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestHandleDodoWebhook_RejectsBadSignature(t *testing.T) {
	app, _ := newTestApp(t, "top-secret")

	body := []byte(`{"type":"payment.completed","data":{}}`)
	resp := postWebhook(t, app, body, map[string]string{
		"webhook-id":        "msg_1",
		"webhook-timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		"webhook-signature": "v1,AAAA",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleDodoWebhook_SignedPurchaseApplied(t *testing.T) {
	secret := "top-secret"
	app, db := newTestApp(t, secret)
	require.NoError(t, db.Create(&models.User{FullName: "Test Aspirant", Email: "aspirant@example.com"}).Error)

	body := []byte(`{"type":"payment.completed","data":{"payment_id":"pay_1","product_id":"pdt_credits_100","customer":{"email":"aspirant@example.com"}}}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("msg_1." + ts + "."))
	mac.Write(body)
	signature := "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	resp := postWebhook(t, app, body, map[string]string{
		"webhook-id":        "msg_1",
		"webhook-timestamp": ts,
		"webhook-signature": signature,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, decodeResponse(t, resp).Success)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", 1).First(&sub).Error)
	assert.Equal(t, 100, sub.CurrentCredits)
}

func TestHandleDodoWebhook_UnsignedAcceptedWithoutSecret(t *testing.T) {
	app, _ := newTestApp(t, "")

	resp := postWebhook(t, app, []byte(`{"type":"payment.completed","data":{"payment_id":"pay_1","product_id":"pdt_unknown","customer":{"email":"nobody@example.com"}}}`), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHandleDodoWebhook_StoreFailureReturns500(t *testing.T) {
	app, db := newTestApp(t, "")
	require.NoError(t, db.Create(&models.User{FullName: "Test Aspirant", Email: "aspirant@example.com"}).Error)

	// A broken store must surface as a retryable error, never a silent 200.
	require.NoError(t, db.Migrator().DropTable(&models.CreditTransaction{}))

	body := []byte(`{"type":"payment.completed","data":{"payment_id":"pay_1","product_id":"pdt_credits_100","customer":{"email":"aspirant@example.com"}}}`)
	resp := postWebhook(t, app, body, nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.False(t, decodeResponse(t, resp).Success)
}
