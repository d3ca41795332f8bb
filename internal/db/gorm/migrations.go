// Package gorm provides GORM-based database operations for quickpen.
package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: identity tables
		{
			ID: "001_users",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&User{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&AuthToken{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("users", "auth_tokens")
			},
		},

		// Migration 002: sprint records
		{
			ID: "002_sprints",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Sprint{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("sprints")
			},
		},
	})

	return m.Migrate()
}
