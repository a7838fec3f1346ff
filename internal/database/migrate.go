package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"SafeHold/internal/models"
)

func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Dispute{},
		&models.EscrowLedgerEntry{},
		&models.Notification{},
	)
	if err != nil {
		log.Printf("Error migrating database: %v", err)
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}
