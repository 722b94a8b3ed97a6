package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"autobook/internal/model"
	"autobook/internal/repository"
	"autobook/internal/service/charge"
	"autobook/pkg/utils"
)

// CreateCampaignRequest API request for creating a campaign
type CreateCampaignRequest struct {
	TripID        uint64  `json:"trip_id" binding:"required"`
	MaxPrice      float64 `json:"max_price" binding:"required,gt=0"` // decimal major units
	Currency      string  `json:"currency" binding:"required,len=3"`
	InstrumentRef string  `json:"instrument_ref" binding:"required"`
}

// CampaignHandler campaign lifecycle handler
type CampaignHandler struct {
	campaignRepo   repository.CampaignRepository
	instrumentRepo repository.InstrumentRepository
	chargeService  charge.ChargeService
}

// NewCampaignHandler creates a campaign handler
func NewCampaignHandler(campaignRepo repository.CampaignRepository, instrumentRepo repository.InstrumentRepository, chargeService charge.ChargeService) *CampaignHandler {
	return &CampaignHandler{
		campaignRepo:   campaignRepo,
		instrumentRepo: instrumentRepo,
		chargeService:  chargeService,
	}
}

// CreateCampaign creates a campaign and tracks it in the existence filter
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Invalid parameters: "+err.Error())
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	// The instrument must exist and belong to the caller
	instrument, err := h.instrumentRepo.GetByRef(c.Request.Context(), req.InstrumentRef)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}
	if instrument == nil || instrument.UserID != userID.(uint64) {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInstrumentMissing, "Payment instrument not found")
		return
	}

	campaign := &model.Campaign{
		UserID:        userID.(uint64),
		TripID:        req.TripID,
		MaxPrice:      charge.PriceToMinorUnits(req.MaxPrice, req.Currency),
		Currency:      req.Currency,
		InstrumentRef: req.InstrumentRef,
		Status:        model.CampaignStatusActive,
	}

	if err := h.campaignRepo.Create(c.Request.Context(), campaign); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}

	// A filter write failure only costs rejected charges until the next
	// prewarm, the campaign itself is durable
	_ = h.chargeService.TrackCampaign(c.Request.Context(), campaign.ID)

	utils.SuccessResponse(c, campaign)
}

// CancelCampaign cancels an active campaign
func (h *CampaignHandler) CancelCampaign(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Invalid campaign ID")
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	campaign, err := h.campaignRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}
	if campaign == nil || campaign.UserID != userID.(uint64) {
		utils.ErrorResponse(c, http.StatusNotFound, utils.CodeCampaignNotFound, "Campaign not found")
		return
	}

	cancelled, err := h.campaignRepo.Cancel(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}
	if !cancelled {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeCampaignInactive, "Campaign is not active")
		return
	}

	_ = h.chargeService.UntrackCampaign(c.Request.Context(), id)

	utils.SuccessResponse(c, gin.H{"message": "Campaign cancelled"})
}

// ListCampaigns lists campaigns for the authenticated user
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	campaigns, total, err := h.campaignRepo.ListByUser(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"list":  campaigns,
		"total": total,
		"page":  page,
		"size":  pageSize,
	})
}
