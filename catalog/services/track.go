package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"songxs_platform/catalog/auth"
	"songxs_platform/catalog/schema"
	"songxs_platform/utils"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultListLimit = 100

type TrackService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *TrackService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)
	r.Get("/search", s.Search)
	r.Get("/stats", s.Stats)
	r.Get("/export", s.ExportCsv)

	r.Get("/{track_id}", s.Get)
	r.Delete("/{track_id}", s.Delete)
	r.Put("/{track_id}/clearance", s.UpdateClearance)

	return r
}

type TrackInfo struct {
	Id        uuid.UUID `json:"id"`
	TrackName string    `json:"track_name"`
	Artists   string    `json:"artists"`
	Album     string    `json:"album"`
	Isrc      string    `json:"isrc"`
	Upc       string    `json:"upc"`

	SpotifyUrl    string `json:"spotify_url"`
	SpotifyId     string `json:"spotify_id"`
	AlbumImageUrl string `json:"album_image_url"`

	Tempo            *float64 `json:"tempo"`
	Energy           *float64 `json:"energy"`
	Danceability     *float64 `json:"danceability"`
	Valence          *float64 `json:"valence"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Key              *int     `json:"key"`
	Mode             *int     `json:"mode"`
	TimeSignature    *int     `json:"time_signature"`

	ArtistFollowers  *int   `json:"artist_followers"`
	ArtistPopularity *int   `json:"artist_popularity"`
	ArtistGenres     string `json:"artist_genres"`
	ArtistImageUrl   string `json:"artist_image_url"`
	ArtistCountry    string `json:"artist_country"`
	ArtistCity       string `json:"artist_city"`

	InstagramUsername  string `json:"instagram_username"`
	InstagramFollowers *int   `json:"instagram_followers"`
	TiktokUsername     string `json:"tiktok_username"`
	TiktokFollowers    *int   `json:"tiktok_followers"`

	ClearanceType  string   `json:"clearance_type"`
	ClearancePrice *float64 `json:"clearance_price"`

	LastfmTags      string `json:"lastfm_tags"`
	LastfmPlaycount *int   `json:"lastfm_playcount"`
	LastfmListeners *int   `json:"lastfm_listeners"`

	CreatedAt string `json:"created_at"`
}

func convertToTrackInfo(track *schema.Track) TrackInfo {
	return TrackInfo{
		Id:                 track.Id,
		TrackName:          track.TrackName,
		Artists:            track.Artists,
		Album:              track.Album,
		Isrc:               track.Isrc,
		Upc:                track.Upc,
		SpotifyUrl:         track.SpotifyUrl,
		SpotifyId:          track.SpotifyId,
		AlbumImageUrl:      track.AlbumImageUrl,
		Tempo:              track.Tempo,
		Energy:             track.Energy,
		Danceability:       track.Danceability,
		Valence:            track.Valence,
		Acousticness:       track.Acousticness,
		Instrumentalness:   track.Instrumentalness,
		Key:                track.Key,
		Mode:               track.Mode,
		TimeSignature:      track.TimeSignature,
		ArtistFollowers:    track.ArtistFollowers,
		ArtistPopularity:   track.ArtistPopularity,
		ArtistGenres:       track.ArtistGenres,
		ArtistImageUrl:     track.ArtistImageUrl,
		ArtistCountry:      track.ArtistCountry,
		ArtistCity:         track.ArtistCity,
		InstagramUsername:  track.InstagramUsername,
		InstagramFollowers: track.InstagramFollowers,
		TiktokUsername:     track.TiktokUsername,
		TiktokFollowers:    track.TiktokFollowers,
		ClearanceType:      track.ClearanceType,
		ClearancePrice:     track.ClearancePrice,
		LastfmTags:         track.LastfmTags,
		LastfmPlaycount:    track.LastfmPlaycount,
		LastfmListeners:    track.LastfmListeners,
		CreatedAt:          track.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (s *TrackService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	limit := defaultListLimit
	if param := r.URL.Query().Get("limit"); param != "" {
		limit, err = strconv.Atoi(param)
		if err != nil || limit < 1 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
	}

	var tracks []schema.Track
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC").Limit(limit).Find(&tracks)
	if result.Error != nil {
		slog.Error("sql error listing tracks", "user_id", user.Id, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]TrackInfo, 0, len(tracks))
	for i := range tracks {
		infos = append(infos, convertToTrackInfo(&tracks[i]))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *TrackService) Search(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing query parameter 'q'", http.StatusBadRequest)
		return
	}

	pattern := "%" + query + "%"

	var tracks []schema.Track
	result := s.db.
		Where("user_id = ?", user.Id).
		Where("track_name LIKE ? OR artists LIKE ? OR isrc LIKE ?", pattern, pattern, pattern).
		Order("created_at DESC").
		Find(&tracks)
	if result.Error != nil {
		slog.Error("sql error searching tracks", "user_id", user.Id, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]TrackInfo, 0, len(tracks))
	for i := range tracks {
		infos = append(infos, convertToTrackInfo(&tracks[i]))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *TrackService) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	trackId, err := utils.URLParamUUID(r, "track_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	track, err := schema.GetUserTrack(trackId, user.Id, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTrackNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJsonResponse(w, convertToTrackInfo(&track))
}

func (s *TrackService) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	trackId, err := utils.URLParamUUID(r, "track_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		track, err := schema.GetUserTrack(trackId, user.Id, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTrackNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Delete(&track)
		if result.Error != nil {
			slog.Error("sql error deleting track", "track_id", trackId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting track: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type clearanceRequest struct {
	ClearanceType  string   `json:"clearance_type"`
	ClearancePrice *float64 `json:"clearance_price"`
}

// UpdateClearance sets a track's clearance classification and price. FreeClear
// forces the price to zero; the other types require a non-negative price.
func (s *TrackService) UpdateClearance(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	trackId, err := utils.URLParamUUID(r, "track_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params clearanceRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if !schema.ValidClearanceType(params.ClearanceType) {
		http.Error(w, fmt.Sprintf("invalid clearance type %q, must be one of %v, %v, %v",
			params.ClearanceType, schema.EasyClear, schema.PreClear, schema.FreeClear), http.StatusUnprocessableEntity)
		return
	}

	price := 0.0
	if params.ClearanceType == schema.FreeClear {
		if params.ClearancePrice != nil && *params.ClearancePrice != 0 {
			http.Error(w, fmt.Sprintf("%v tracks must have a price of 0", schema.FreeClear), http.StatusUnprocessableEntity)
			return
		}
	} else {
		if params.ClearancePrice == nil {
			http.Error(w, fmt.Sprintf("clearance price is required for %v tracks", params.ClearanceType), http.StatusUnprocessableEntity)
			return
		}
		if *params.ClearancePrice < 0 {
			http.Error(w, "clearance price cannot be negative", http.StatusUnprocessableEntity)
			return
		}
		price = *params.ClearancePrice
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		track, err := schema.GetUserTrack(trackId, user.Id, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTrackNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		track.ClearanceType = params.ClearanceType
		track.ClearancePrice = &price

		result := txn.Save(&track)
		if result.Error != nil {
			slog.Error("sql error updating track clearance", "track_id", trackId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating clearance: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type catalogStats struct {
	TotalTracks    int64 `json:"total_tracks"`
	TracksWithIsrc int64 `json:"tracks_with_isrc"`
	TracksWithUpc  int64 `json:"tracks_with_upc"`
}

func (s *TrackService) Stats(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats, err := userCatalogStats(user.Id, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, stats)
}

func userCatalogStats(userId uuid.UUID, db *gorm.DB) (catalogStats, error) {
	var stats catalogStats

	if result := db.Model(&schema.Track{}).Where("user_id = ?", userId).Count(&stats.TotalTracks); result.Error != nil {
		slog.Error("sql error counting tracks", "user_id", userId, "error", result.Error)
		return catalogStats{}, schema.ErrDbAccessFailed
	}
	if result := db.Model(&schema.Track{}).Where("user_id = ? AND isrc != ''", userId).Count(&stats.TracksWithIsrc); result.Error != nil {
		slog.Error("sql error counting tracks with isrc", "user_id", userId, "error", result.Error)
		return catalogStats{}, schema.ErrDbAccessFailed
	}
	if result := db.Model(&schema.Track{}).Where("user_id = ? AND upc != ''", userId).Count(&stats.TracksWithUpc); result.Error != nil {
		slog.Error("sql error counting tracks with upc", "user_id", userId, "error", result.Error)
		return catalogStats{}, schema.ErrDbAccessFailed
	}

	return stats, nil
}

var exportHeader = []string{
	"track_name", "artists", "album", "isrc", "upc", "spotify_url",
	"tempo", "energy", "danceability", "valence",
	"artist_followers", "artist_popularity", "artist_genres",
	"artist_country", "artist_city",
	"instagram_followers", "tiktok_followers",
	"clearance_type", "clearance_price",
	"lastfm_tags", "created_at",
}

func (s *TrackService) ExportCsv(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var tracks []schema.Track
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC").Find(&tracks)
	if result.Error != nil {
		slog.Error("sql error exporting tracks", "user_id", user.Id, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.csv"`)

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		slog.Error("error writing csv header", "error", err)
		return
	}

	for i := range tracks {
		if err := writer.Write(exportRow(&tracks[i])); err != nil {
			slog.Error("error writing csv row", "track_id", tracks[i].Id, "error", err)
			return
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Error("error flushing csv export", "error", err)
	}
}

func exportRow(track *schema.Track) []string {
	return []string{
		track.TrackName, track.Artists, track.Album, track.Isrc, track.Upc, track.SpotifyUrl,
		formatFloat(track.Tempo), formatFloat(track.Energy), formatFloat(track.Danceability), formatFloat(track.Valence),
		formatInt(track.ArtistFollowers), formatInt(track.ArtistPopularity), track.ArtistGenres,
		track.ArtistCountry, track.ArtistCity,
		formatInt(track.InstagramFollowers), formatInt(track.TiktokFollowers),
		track.ClearanceType, formatFloat(track.ClearancePrice),
		track.LastfmTags, track.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func formatFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func formatInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}
