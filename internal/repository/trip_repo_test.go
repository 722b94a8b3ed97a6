package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupTripMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
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

func TestTripRepository_LowerBestPrice(t *testing.T) {
	db, mock := setupTripMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewTripRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `trips` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	lowered, err := repo.LowerBestPrice(ctx, 1, 38000)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !lowered {
		t.Error("Expected best price to be lowered")
	}
}

func TestTripRepository_LowerBestPrice_NotBetter(t *testing.T) {
	db, mock := setupTripMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewTripRepository(db)
	ctx := context.Background()

	// The SQL condition rejects a price that does not beat the current best
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `trips` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	lowered, err := repo.LowerBestPrice(ctx, 1, 99000)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if lowered {
		t.Error("Expected no update for a worse price")
	}
}
