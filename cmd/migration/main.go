package main

import (
	"flag"
	"log"
	"songxs_platform/catalog/schema"
	"songxs_platform/cmd/migration/versions"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	dbUri := flag.String("db_uri", "", "Database URI")
	flag.Parse()

	if *dbUri == "" {
		log.Fatalf("Missing --db_uri arg")
	}

	db, err := gorm.Open(postgres.Open(*dbUri), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	migration := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID:      "1",
			Migrate: versions.Migration_1_lastfm_columns,
			Rollback: func(txn *gorm.DB) error {
				type Track struct{}
				for _, column := range []string{"lastfm_tags", "lastfm_playcount", "lastfm_listeners"} {
					if err := txn.Migrator().DropColumn(&Track{}, column); err != nil {
						return err
					}
				}
				return nil
			},
		},
	})

	migration.InitSchema(func(txn *gorm.DB) error {
		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(schema.AllModels()...)
	})

	if err := migration.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("migration completed successfully")
}
