package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"autobook/internal/service/charge"
	"autobook/pkg/utils"
)

// MockChargeService mock charge service
type MockChargeService struct {
	mock.Mock
}

func (m *MockChargeService) Charge(ctx context.Context, req *charge.ChargeRequest) (*charge.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*charge.ChargeResult), args.Error(1)
}

func (m *MockChargeService) QueryChargeResult(ctx context.Context, campaignID uint64, offerID string) (*charge.ChargeResult, error) {
	args := m.Called(ctx, campaignID, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*charge.ChargeResult), args.Error(1)
}

func (m *MockChargeService) PrewarmCampaignFilter(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChargeService) TrackCampaign(ctx context.Context, campaignID uint64) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}

func (m *MockChargeService) UntrackCampaign(ctx context.Context, campaignID uint64) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}

func chargeRequestBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"campaign_id": 1,
		"offer": map[string]interface{}{
			"offer_id":       "off_1",
			"price":          420.00,
			"currency":       "USD",
			"airline":        "UA",
			"flight_number":  "UA100",
			"route":          "SFO-JFK",
			"departure_date": "2026-10-01",
		},
	})
	return body
}

func chargeRouter(handler *ChargeHandler) *gin.Engine {
	router := gin.New()
	router.POST("/charges", func(c *gin.Context) {
		c.Set("user_id", uint64(123))
		handler.CreateCharge(c)
	})
	router.GET("/charges/:campaign_id/:offer_id", handler.QueryCharge)
	return router
}

func TestChargeHandler_CreateCharge(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("captured returns 200", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.MatchedBy(func(req *charge.ChargeRequest) bool {
			return req.CampaignID == 1 && req.Offer.OfferID == "off_1" && req.UserID == 123
		})).Return(&charge.ChargeResult{
			Status:           charge.StatusCaptured,
			IntentRef:        "pi_1",
			BookingRequestID: 100,
			Code:             utils.CodeSuccess,
		}, nil)

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response utils.Response
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, utils.CodeSuccess, response.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("challenge required returns 200", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.Anything).Return(&charge.ChargeResult{
			Status: charge.StatusChallengeRequired,
			Code:   utils.CodeChallengeRequired,
		}, nil)

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("decline returns 400", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.Anything).Return(&charge.ChargeResult{
			Status:  charge.StatusDeclined,
			Code:    utils.CodePaymentDeclined,
			Message: "payment declined: insufficient_funds",
		}, nil)

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.Response
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, utils.CodePaymentDeclined, response.Code)
	})

	t.Run("unknown campaign returns 404", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.Anything).Return(&charge.ChargeResult{
			Status: charge.StatusRejected,
			Code:   utils.CodeCampaignNotFound,
		}, nil)

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rate limited returns 429", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.Anything).Return(&charge.ChargeResult{
			Status: charge.StatusRejected,
			Code:   utils.CodeRateLimit,
		}, nil)

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("providers unavailable returns 502", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.Anything).Return(&charge.ChargeResult{
			Status: charge.StatusProviderUnavailable,
			Code:   utils.CodeProviderUnavailable,
		}, nil)

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("paused returns 503", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.Anything).Return(&charge.ChargeResult{
			Status:  charge.StatusPaused,
			Code:    utils.CodeBookingPaused,
			Message: "provider incident",
		}, nil)

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("service error returns 500", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("Charge", mock.Anything, mock.Anything).Return(nil,
			utils.NewError(utils.CodeInternalError, "charge request malformed"))

		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(chargeRequestBody()))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("missing offer returns 400 without touching the service", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		body, _ := json.Marshal(map[string]interface{}{"campaign_id": 1})
		req, _ := http.NewRequest("POST", "/charges", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Charge")
	})
}

func TestChargeHandler_QueryCharge(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("recorded outcome is returned", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("QueryChargeResult", mock.Anything, uint64(1), "off_1").Return(&charge.ChargeResult{
			Status:    charge.StatusCaptured,
			IntentRef: "pi_1",
			Code:      utils.CodeSuccess,
		}, nil)

		req, _ := http.NewRequest("GET", "/charges/1/off_1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no recorded outcome returns 404", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		mockService.On("QueryChargeResult", mock.Anything, uint64(1), "off_unknown").Return(nil, nil)

		req, _ := http.NewRequest("GET", "/charges/1/off_unknown", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad campaign id returns 400", func(t *testing.T) {
		mockService := new(MockChargeService)
		router := chargeRouter(NewChargeHandler(mockService))

		req, _ := http.NewRequest("GET", "/charges/abc/off_1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
