package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"autobook/internal/model"
)

func setupBookingRequestMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm DB: %v", err)
	}

	return gormDB, mock
}

func TestBookingRequestRepository_CreateWithIntent(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	intent := &model.PaymentIntent{
		IntentRef:      "pi_abc123",
		Provider:       model.ProviderPrimary,
		CampaignID:     1,
		Amount:         42000,
		Currency:       "USD",
		Status:         model.IntentStatusSucceeded,
		IdempotencyKey: "key123",
	}
	request := &model.BookingRequest{
		ID:            100,
		CampaignID:    1,
		OfferSnapshot: []byte(`{"offer_id":"off_1","price":42000,"currency":"USD"}`),
		Status:        model.BookingRequestStatusPending,
	}

	// Both rows land inside the same transaction
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `payment_intents`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `booking_requests`").
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectCommit()

	err := repo.CreateWithIntent(ctx, request, intent)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if request.PaymentIntentRef != "pi_abc123" {
		t.Errorf("Expected request to carry intent ref, got %q", request.PaymentIntentRef)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestBookingRequestRepository_CreateWithIntent_RollsBackTogether(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	intent := &model.PaymentIntent{
		IntentRef:      "pi_abc123",
		Provider:       model.ProviderPrimary,
		CampaignID:     1,
		Amount:         42000,
		Currency:       "USD",
		Status:         model.IntentStatusSucceeded,
		IdempotencyKey: "key123",
	}
	request := &model.BookingRequest{
		ID:            100,
		CampaignID:    1,
		OfferSnapshot: []byte(`{}`),
		Status:        model.BookingRequestStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `payment_intents`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `booking_requests`").
		WillReturnError(gorm.ErrInvalidData)
	mock.ExpectRollback()

	err := repo.CreateWithIntent(ctx, request, intent)
	if err == nil {
		t.Error("Expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestBookingRequestRepository_GetByIntentRef_NotFound(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM `booking_requests` WHERE payment_intent_ref = \\?").
		WithArgs("pi_unknown", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	request, err := repo.GetByIntentRef(ctx, "pi_unknown")
	if err != nil {
		t.Errorf("Expected no error for not found, got %v", err)
	}
	if request != nil {
		t.Errorf("Expected nil request, got %+v", request)
	}
}

func TestBookingRequestRepository_ClaimForProcessing(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `booking_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.ClaimForProcessing(ctx, 100)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !claimed {
		t.Error("Expected claim to succeed")
	}
}

func TestBookingRequestRepository_ClaimForProcessing_AlreadyClaimed(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	// A duplicate delivery loses the conditional update
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `booking_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	claimed, err := repo.ClaimForProcessing(ctx, 100)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if claimed {
		t.Error("Expected claim to fail for non-pending request")
	}
}

func TestBookingRequestRepository_MarkDone(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `booking_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	done, err := repo.MarkDone(ctx, 100)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !done {
		t.Error("Expected done transition to apply")
	}
}

func TestBookingRequestRepository_MarkFailed_NotProcessing(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `booking_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	failed, err := repo.MarkFailed(ctx, 100, "airline rejected booking")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if failed {
		t.Error("Expected failed transition to be rejected outside processing")
	}
}

func TestBookingRequestRepository_ListStalePending(t *testing.T) {
	db, mock := setupBookingRequestMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewBookingRequestRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "campaign_id", "payment_intent_ref", "status", "attempts"}).
		AddRow(100, 1, "pi_abc", model.BookingRequestStatusPending, 1).
		AddRow(101, 2, "pi_def", model.BookingRequestStatusPending, 0)

	mock.ExpectQuery("SELECT \\* FROM `booking_requests` WHERE status = \\? AND updated_at < \\?").
		WillReturnRows(rows)

	requests, err := repo.ListStalePending(ctx, time.Now().Add(-10*time.Minute), 50)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(requests) != 2 {
		t.Errorf("Expected 2 stale requests, got %d", len(requests))
	}
}
