package database

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"manifesthub/internal/config"
	"manifesthub/internal/models"
)

var DB *gorm.DB

func Connect(dsn string) error {
	if dsn == "" {
		return errors.New("empty DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(60 * time.Minute)

	DB = db
	return nil
}

func AutoMigrateAndSeed() error {
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Manifest{},
	); err != nil {
		return err
	}
	return seedAdmin()
}

// seedAdmin creates the configured admin account once. Without
// ADMIN_USERNAME/ADMIN_PASSWORD admins come only from registration with
// the admin secret.
func seedAdmin() error {
	if config.Current.AdminUsername == "" || config.Current.AdminPassword == "" {
		return nil
	}
	var count int64
	DB.Model(&models.User{}).Where("username = ?", config.Current.AdminUsername).Count(&count)
	if count > 0 {
		return nil
	}
	user := models.User{
		Username: config.Current.AdminUsername,
		Role:     models.RoleAdmin,
	}
	if err := user.SetPassword(config.Current.AdminPassword); err != nil {
		return err
	}
	if err := DB.Create(&user).Error; err != nil {
		return err
	}
	log.Info("seeded admin account", "username", user.Username)
	return nil
}
