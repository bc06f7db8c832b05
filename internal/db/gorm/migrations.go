package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
//
// The complaints and complaint_normalizations tables are owned by the
// intake/normalization services in production; the migrations here create
// them with compatible shapes so local and test deployments are
// self-contained.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: complaint tables
		{
			ID: "001_complaints",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Complaint{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ComplaintNormalization{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("complaint_normalizations", "complaints")
			},
		},

		// Migration 002: incidents table with unique title index
		{
			ID: "002_incidents",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Incident{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("incidents")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}
