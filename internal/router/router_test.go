package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blues/fundgate/internal/config"
	"github.com/blues/fundgate/internal/device"
	"github.com/blues/fundgate/internal/fraud"
	"github.com/blues/fundgate/internal/handler"
	"github.com/blues/fundgate/internal/logic"
	"github.com/blues/fundgate/internal/pricing"
	"github.com/blues/fundgate/internal/repository/memory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner       = "0xa11ce00000000000000000000000000000000001"
	contributor = "0xb0b0000000000000000000000000000000000002"
	treasury    = "0x7ea5000000000000000000000000000000000009"
)

type testServer struct {
	engine    *gin.Engine
	store     *memory.Store
	campaigns *logic.CampaignLogic
	now       time.Time
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewStore().WithClock(clock)
	calc, err := pricing.NewCalculatorFromStrings("6", "6")
	require.NoError(t, err)
	detector := fraud.NewDetector(device.NewMemoryStorage(), nil, fraud.WithClock(clock))

	campaigns := logic.NewCampaignLogic(store, store, calc, detector, treasury).WithClock(clock)
	contributions := logic.NewContributionLogic(store, store, detector).WithClock(clock)
	payments := logic.NewPaymentLogic(store, store).WithClock(clock)

	cfg.Mode = gin.TestMode
	engine := Setup(Handlers{
		Campaign:     handler.NewCampaignHandler(campaigns, contributions),
		Contribution: handler.NewContributionHandler(contributions, campaigns),
		Payment:      handler.NewPaymentHandler(payments),
		Pricing:      handler.NewPricingHandler(calc),
		Device:       handler.NewDeviceHandler(contributions),
	}, cfg, nil)

	return &testServer{engine: engine, store: store, campaigns: campaigns, now: now}
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, wallet, deviceToken string, body interface{}) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if wallet != "" {
		req.Header.Set(handler.HeaderWallet, wallet)
	}
	if deviceToken != "" {
		req.Header.Set(handler.HeaderDevice, deviceToken)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

// createCampaign 通过接口下单，再模拟链上确认
func (s *testServer) createCampaign(t *testing.T, deviceToken string) int64 {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/v1/campaigns", owner, deviceToken, gin.H{
		"project_id":   "p-1",
		"funding_goal": "100",
		"purpose":      "audit",
		"months":       2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var intent struct {
		Payment struct {
			Id string `json:"id"`
		} `json:"payment"`
		Quote struct {
			Cost string `json:"cost"`
		} `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &intent))
	assert.Equal(t, "12", intent.Quote.Cost)

	w, _ = s.do(t, http.MethodPut, "/api/v1/payments/"+intent.Payment.Id, owner, deviceToken, gin.H{
		"tx_hash": fmt.Sprintf("0x%064x", 1),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payment, err := s.store.GetPayment(context.Background(), intent.Payment.Id)
	require.NoError(t, err)
	campaign, err := s.campaigns.CreateCampaign(context.Background(), payment)
	require.NoError(t, err)
	return campaign.Id
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	w, _ := s.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeviceTokenIssuedWhenMissing(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	w, _ := s.do(t, http.MethodPost, "/api/v1/devices/sessions", "", "", gin.H{"wallet": contributor})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	issued := w.Header().Get(handler.HeaderDevice)
	_, err := uuid.Parse(issued)
	assert.NoError(t, err)

	token := uuid.NewString()
	w, _ = s.do(t, http.MethodPost, "/api/v1/devices/sessions", "", token, gin.H{"wallet": contributor})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, token, w.Header().Get(handler.HeaderDevice))

	w, _ = s.do(t, http.MethodPost, "/api/v1/devices/sessions", "", token, gin.H{"wallet": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	ownerDevice := uuid.NewString()
	id := s.createCampaign(t, ownerDevice)

	w, resp := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/campaigns/%d", id), "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Id           int64   `json:"id"`
		Status       string  `json:"status"`
		Progress     float64 `json:"progress"`
		DeadlineText string  `json:"deadline_text"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, id, view.Id)
	assert.Equal(t, "active", view.Status)
	assert.Zero(t, view.Progress)
	assert.Equal(t, "2 months left", view.DeadlineText)

	w, _ = s.do(t, http.MethodGet, "/api/v1/campaigns", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 已有进行中的活动
	w, _ = s.do(t, http.MethodPost, "/api/v1/campaigns", owner, ownerDevice, gin.H{
		"project_id": "p-2", "funding_goal": "5", "purpose": "again", "months": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/extend", id), owner, ownerDevice, gin.H{"months": 13})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"field":"months"}`, string(resp.Data))

	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/extend", id), contributor, "", gin.H{"months": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/campaigns/%d", id), owner, ownerDevice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/campaigns/%d", id), "", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContributionOverHTTP(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	ownerDevice := uuid.NewString()
	id := s.createCampaign(t, ownerDevice)
	path := fmt.Sprintf("/api/v1/campaigns/%d/contributions", id)

	// 创建者本人贡献
	w, resp := s.do(t, http.MethodPost, path, owner, uuid.NewString(), gin.H{"amount": "1"})
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Contains(t, resp.Message, "self-contribution")
	var rejected struct {
		Assessment struct {
			IsAllowed bool   `json:"is_allowed"`
			RiskLevel string `json:"risk_level"`
		} `json:"assessment"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &rejected))
	assert.False(t, rejected.Assessment.IsAllowed)
	assert.Equal(t, "high", rejected.Assessment.RiskLevel)

	// 同一设备切换钱包
	w, _ = s.do(t, http.MethodPost, path, contributor, ownerDevice, gin.H{"amount": "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 无关钱包
	w, resp = s.do(t, http.MethodPost, path+"/check", contributor, uuid.NewString(), gin.H{"amount": "40"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = s.do(t, http.MethodPost, path, contributor, uuid.NewString(), gin.H{"amount": "40", "message": "go"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var intent struct {
		Payment struct {
			Recipient string `json:"recipient"`
			Status    string `json:"status"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &intent))
	assert.Equal(t, owner, intent.Payment.Recipient)
	assert.Equal(t, "awaiting_payment", intent.Payment.Status)

	w, _ = s.do(t, http.MethodPost, path, contributor, uuid.NewString(), gin.H{"amount": "0"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, path, "", uuid.NewString(), gin.H{"amount": "1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPricingOverHTTP(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	w, resp := s.do(t, http.MethodGet, "/api/v1/pricing?months=3&currency=stable", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"months":3,"cost":"18","currency":"stable"}`, string(resp.Data))

	w, _ = s.do(t, http.MethodGet, "/api/v1/pricing?months=13", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/pricing?currency=btc", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/pricing/breakdown", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var options []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &options))
	assert.Len(t, options, 12)
}

func TestContributionRateLimit(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{RateLimit: 0.001, RateBurst: 1})
	ownerDevice := uuid.NewString()
	id := s.createCampaign(t, ownerDevice)
	path := fmt.Sprintf("/api/v1/campaigns/%d/contributions/check", id)
	token := uuid.NewString()

	w, _ := s.do(t, http.MethodPost, path, contributor, token, gin.H{"amount": "1"})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodPost, path, contributor, token, gin.H{"amount": "1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 其他设备不受影响
	w, _ = s.do(t, http.MethodPost, path, contributor, uuid.NewString(), gin.H{"amount": "1"})
	assert.Equal(t, http.StatusOK, w.Code)
}
