package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/item-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createItemsTable(),
		createProcessRunsTable(),
		createProcessFailuresTable(),
	})

	return m.Migrate()
}

func createItemsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_items",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ItemModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_items_status_created ON items (status, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ItemModel{})
		},
	}
}

func createProcessRunsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_process_runs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ProcessRunModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_process_runs_started_at ON process_runs (started_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ProcessRunModel{})
		},
	}
}

func createProcessFailuresTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_process_failures",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ProcessFailureModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_process_failures_run_id ON process_failures (run_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ProcessFailureModel{})
		},
	}
}
