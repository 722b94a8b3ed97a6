package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"autobook/internal/model"
)

func setupCampaignMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
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

func TestCampaignRepository_GetByID(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "user_id", "trip_id", "max_price", "currency", "instrument_ref", "status"}).
		AddRow(1, 10, 20, 50000, "USD", "pm_123", model.CampaignStatusActive)

	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE id = \\?").
		WithArgs(uint64(1), 1).
		WillReturnRows(rows)

	campaign, err := repo.GetByID(ctx, 1)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if campaign == nil {
		t.Fatal("Expected campaign, got nil")
	}
	if campaign.MaxPrice != 50000 || !campaign.IsActive() {
		t.Errorf("Unexpected campaign: %+v", campaign)
	}
}

func TestCampaignRepository_GetByID_NotFound(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE id = \\?").
		WithArgs(uint64(99), 1).
		WillReturnError(gorm.ErrRecordNotFound)

	campaign, err := repo.GetByID(ctx, 99)
	if err != nil {
		t.Errorf("Expected no error for not found, got %v", err)
	}
	if campaign != nil {
		t.Errorf("Expected nil campaign, got %+v", campaign)
	}
}

func TestCampaignRepository_Cancel(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cancelled, err := repo.Cancel(ctx, 1)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !cancelled {
		t.Error("Expected cancel to apply")
	}
}

func TestCampaignRepository_Cancel_AlreadyCancelled(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	cancelled, err := repo.Cancel(ctx, 1)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cancelled {
		t.Error("Expected cancel of non-active campaign to be a no-op")
	}
}

func TestCampaignRepository_ListActiveIDs(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)

	mock.ExpectQuery("SELECT `id` FROM `campaigns` WHERE status = \\?").
		WithArgs(model.CampaignStatusActive).
		WillReturnRows(rows)

	ids, err := repo.ListActiveIDs(ctx)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("Expected 3 active IDs, got %d", len(ids))
	}
}
