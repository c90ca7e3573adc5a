package database

import (
	"fmt"

	"gorm.io/gorm"

	"librarycore/internal/models"
)

// constraints gorm tags cannot express.
var schemaStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_rental
		ON rentals (book_copy_id) WHERE status = 'Borrowed'`,
	`DO $$ BEGIN
		ALTER TABLE reservations ADD CONSTRAINT chk_reservation_window CHECK (end_time > start_time);
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
	`DO $$ BEGIN
		ALTER TABLE book_copies ADD CONSTRAINT chk_book_copy_status
			CHECK (status IN ('available', 'unavailable', 'lost'));
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
}

// Migrate creates or updates every table the core needs.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.IDSequence{},
		&models.Book{},
		&models.BookCopy{},
		&models.Customer{},
		&models.Author{},
		&models.Invoice{},
		&models.Payment{},
		&models.Rental{},
		&models.StudyRoom{},
		&models.Reservation{},
		&models.Event{},
		&models.ExhibitionAttendance{},
		&models.SeminarAttendance{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	for _, stmt := range schemaStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply schema constraint: %w", err)
		}
	}
	return nil
}
