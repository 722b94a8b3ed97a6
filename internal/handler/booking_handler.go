package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"autobook/internal/repository"
	"autobook/pkg/utils"
)

// BookingHandler booking and booking request reads
type BookingHandler struct {
	requestRepo      repository.BookingRequestRepository
	bookingRepo      repository.BookingRepository
	notificationRepo repository.NotificationRepository
}

// NewBookingHandler creates a booking handler
func NewBookingHandler(requestRepo repository.BookingRequestRepository, bookingRepo repository.BookingRepository, notificationRepo repository.NotificationRepository) *BookingHandler {
	return &BookingHandler{
		requestRepo:      requestRepo,
		bookingRepo:      bookingRepo,
		notificationRepo: notificationRepo,
	}
}

// GetBookingRequest gets a booking request by ID
func (h *BookingHandler) GetBookingRequest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Invalid booking request ID")
		return
	}

	request, err := h.requestRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, utils.CodeBookingRequestNotFound, "Booking request not found")
		return
	}

	response := gin.H{"request": request}
	if booking, err := h.bookingRepo.GetByBookingRequestID(c.Request.Context(), id); err == nil && booking != nil {
		response["booking"] = booking
	}

	utils.SuccessResponse(c, response)
}

// ListBookings lists bookings for the authenticated user
func (h *BookingHandler) ListBookings(c *gin.Context) {
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

	bookings, total, err := h.bookingRepo.ListUserBookings(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"list":  bookings,
		"total": total,
		"page":  page,
		"size":  pageSize,
	})
}

// ListNotifications lists notifications for the authenticated user
func (h *BookingHandler) ListNotifications(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	notifications, total, err := h.notificationRepo.ListByUser(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"list":  notifications,
		"total": total,
		"page":  page,
		"size":  pageSize,
	})
}

// ListTripNotifications lists notifications recorded for one trip
func (h *BookingHandler) ListTripNotifications(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Invalid trip ID")
		return
	}

	notifications, err := h.notificationRepo.ListByTrip(c.Request.Context(), tripID, userID.(uint64))
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"list": notifications})
}

// MarkNotificationRead marks a notification as read
func (h *BookingHandler) MarkNotificationRead(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "Invalid notification ID")
		return
	}

	if err := h.notificationRepo.MarkRead(c.Request.Context(), id, userID.(uint64)); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeDatabaseError, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Notification marked read"})
}
