package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrTrackNotFound        = errors.New("track not found")
	ErrSplitSheetNotFound   = errors.New("split sheet not found")
	ErrCollaboratorNotFound = errors.New("collaborator not found")
	ErrArtistNotCached      = errors.New("artist cache entry not found")
	ErrDbAccessFailed       = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

// GetUserTrack loads a track only if it is owned by the given user. A track
// owned by another tenant is reported as not found, never as forbidden.
func GetUserTrack(trackId, userId uuid.UUID, db *gorm.DB) (Track, error) {
	var track Track

	result := db.First(&track, "id = ? AND user_id = ?", trackId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return track, ErrTrackNotFound
		}
		slog.Error("sql error in get user track", "track_id", trackId, "user_id", userId, "error", result.Error)
		return track, ErrDbAccessFailed
	}

	return track, nil
}

func GetSplitSheet(splitSheetId uuid.UUID, db *gorm.DB) (SplitSheet, error) {
	var sheet SplitSheet

	result := db.Preload("Collaborators").First(&sheet, "id = ?", splitSheetId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return sheet, ErrSplitSheetNotFound
		}
		slog.Error("sql error in get split sheet", "split_sheet_id", splitSheetId, "error", result.Error)
		return sheet, ErrDbAccessFailed
	}

	return sheet, nil
}

func GetCollaboratorByToken(token string, db *gorm.DB) (Collaborator, error) {
	var collaborator Collaborator

	result := db.First(&collaborator, "signature_token = ?", token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return collaborator, ErrCollaboratorNotFound
		}
		slog.Error("sql error in get collaborator by token", "error", result.Error)
		return collaborator, ErrDbAccessFailed
	}

	return collaborator, nil
}

func GetArtistCacheEntry(artistId string, db *gorm.DB) (ArtistCacheEntry, error) {
	var entry ArtistCacheEntry

	result := db.First(&entry, "artist_id = ?", artistId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return entry, ErrArtistNotCached
		}
		slog.Error("sql error in get artist cache entry", "artist_id", artistId, "error", result.Error)
		return entry, ErrDbAccessFailed
	}

	return entry, nil
}

// AllModels lists every persisted record type, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Track{}, &ArtistCacheEntry{}, &SplitSheet{}, &Collaborator{},
	}
}
