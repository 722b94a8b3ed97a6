package database

import (
	"fmt"

	"gorm.io/gorm"

	"autobook/internal/model"
	"autobook/pkg/log"
)

// AutoMigrate auto migrate database table schema
func AutoMigrate(db *gorm.DB) error {
	log.Info("Starting database migration...")

	models := []interface{}{
		&model.User{},
		&model.Trip{},
		&model.Campaign{},
		&model.PaymentInstrument{},
		&model.PaymentIntent{},
		&model.BookingRequest{},
		&model.Booking{},
		&model.Notification{},
	}

	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
		log.Infof("Migrated model: %T", model)
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes create additional indexes
func CreateIndexes(db *gorm.DB) error {
	log.Info("Creating additional indexes...")

	indexes := []struct {
		table string
		name  string
		sql   string
	}{
		{
			table: "campaigns",
			name:  "idx_campaigns_user_status",
			sql:   "CREATE INDEX IF NOT EXISTS idx_campaigns_user_status ON campaigns (user_id, status)",
		},
		{
			table: "booking_requests",
			name:  "idx_booking_requests_status_updated",
			sql:   "CREATE INDEX IF NOT EXISTS idx_booking_requests_status_updated ON booking_requests (status, updated_at)",
		},
		{
			table: "payment_intents",
			name:  "idx_payment_intents_campaign_status",
			sql:   "CREATE INDEX IF NOT EXISTS idx_payment_intents_campaign_status ON payment_intents (campaign_id, status, created_at)",
		},
		{
			table: "notifications",
			name:  "idx_notifications_user_created",
			sql:   "CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at)",
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			log.Warnf("Failed to create index %s on table %s: %v", idx.name, idx.table, err)
		} else {
			log.Infof("Created index: %s on table %s", idx.name, idx.table)
		}
	}

	log.Info("Index creation completed")
	return nil
}

// DropTables drop all tables
func DropTables(db *gorm.DB) error {
	log.Warn("Dropping all tables...")

	tables := []string{
		"notifications",
		"bookings",
		"booking_requests",
		"payment_intents",
		"payment_instruments",
		"campaigns",
		"trips",
		"users",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)).Error; err != nil {
			log.Warnf("Failed to drop table %s: %v", table, err)
		} else {
			log.Infof("Dropped table: %s", table)
		}
	}

	log.Warn("All tables dropped")
	return nil
}

// CheckTables check if tables exist
func CheckTables(db *gorm.DB) error {
	log.Info("Checking database tables...")

	tables := []string{
		"users",
		"trips",
		"campaigns",
		"payment_instruments",
		"payment_intents",
		"booking_requests",
		"bookings",
		"notifications",
	}

	for _, table := range tables {
		var count int64
		err := db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", table).Scan(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}

		if count > 0 {
			log.Infof("Table exists: %s", table)
		} else {
			log.Warnf("Table not found: %s", table)
		}
	}

	log.Info("Table check completed")
	return nil
}
