package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"autobook/internal/service/charge"
	"autobook/pkg/utils"
)

// ChargeHandler charge handler
type ChargeHandler struct {
	chargeService charge.ChargeService
}

// NewChargeHandler creates a charge handler
func NewChargeHandler(chargeService charge.ChargeService) *ChargeHandler {
	return &ChargeHandler{
		chargeService: chargeService,
	}
}

// CreateCharge executes a charge attempt for an offer under a campaign
func (h *ChargeHandler) CreateCharge(c *gin.Context) {
	var req charge.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Invalid parameters: "+err.Error())
		return
	}

	req.IP = c.ClientIP()
	if userID, exists := c.Get("user_id"); exists {
		req.UserID = userID.(uint64)
	}

	result, err := h.chargeService.Charge(c.Request.Context(), &req)
	if err != nil {
		utils.Error(c, utils.GetErrorCode(err), "Charge failed")
		return
	}

	c.JSON(httpStatusForCharge(result), utils.Response{
		Code:      result.Code,
		Message:   result.Message,
		Data:      result,
		Timestamp: time.Now().Unix(),
	})
}

// QueryCharge returns the recorded outcome for a campaign/offer pair
func (h *ChargeHandler) QueryCharge(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Param("campaign_id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Invalid campaign ID")
		return
	}

	offerID := c.Param("offer_id")
	if offerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Offer ID is required")
		return
	}

	result, err := h.chargeService.QueryChargeResult(c.Request.Context(), campaignID, offerID)
	if err != nil {
		utils.Error(c, utils.GetErrorCode(err), "Query failed")
		return
	}
	if result == nil {
		utils.ErrorResponse(c, http.StatusNotFound, utils.CodeCampaignNotFound, "No charge recorded for this offer")
		return
	}

	utils.SuccessResponse(c, result)
}

// PrewarmCampaigns rebuilds the campaign existence filter
func (h *ChargeHandler) PrewarmCampaigns(c *gin.Context) {
	if err := h.chargeService.PrewarmCampaignFilter(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternalError, "Prewarm failed: "+err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Campaign filter prewarmed successfully"})
}

// httpStatusForCharge maps a charge outcome to its HTTP status
func httpStatusForCharge(result *charge.ChargeResult) int {
	switch result.Status {
	case charge.StatusCaptured, charge.StatusChallengeRequired, charge.StatusInProgress:
		return http.StatusOK
	case charge.StatusProviderUnavailable:
		return http.StatusBadGateway
	case charge.StatusPaused:
		return http.StatusServiceUnavailable
	case charge.StatusRejected:
		if result.Code == utils.CodeCampaignNotFound {
			return http.StatusNotFound
		}
		if result.Code == utils.CodeRateLimit {
			return http.StatusTooManyRequests
		}
		return http.StatusBadRequest
	default: // declined
		return http.StatusBadRequest
	}
}
