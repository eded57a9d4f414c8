package versions

import (
	"log"

	"gorm.io/gorm"
)

// Adds the Last.fm enrichment columns to tracks that predate the complete
// fetch mode.
func Migration_1_lastfm_columns(txn *gorm.DB) error {
	log.Println("adding lastfm columns to tracks")

	type Track struct {
		LastfmTags      string `gorm:"size:500"`
		LastfmPlaycount *int
		LastfmListeners *int
	}

	for _, column := range []string{"LastfmTags", "LastfmPlaycount", "LastfmListeners"} {
		if txn.Migrator().HasColumn(&Track{}, column) {
			continue
		}
		if err := txn.Migrator().AddColumn(&Track{}, column); err != nil {
			return err
		}
	}

	return nil
}
