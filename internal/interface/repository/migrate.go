package repository

import "gorm.io/gorm"

// AutoMigrate creates or updates the passenger and outbox tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Passengers{}, &OutboxMessages{})
}
