package services

import (
	"log/slog"
	"net/http"
	"songxs_platform/catalog/auth"
	"songxs_platform/catalog/schema"
	"songxs_platform/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type AdminService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *AdminService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)
	r.Use(auth.AdminOnly())

	r.Get("/users", s.Users)
	r.Get("/users/{user_id}/tracks", s.UserTracks)
	r.Get("/stats", s.Stats)

	return r
}

type adminUserInfo struct {
	UserInfo
	TrackCount int64 `json:"track_count"`
}

func (s *AdminService) Users(w http.ResponseWriter, r *http.Request) {
	var users []schema.User
	result := s.db.Order("created_at ASC").Find(&users)
	if result.Error != nil {
		slog.Error("sql error listing users", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]adminUserInfo, 0, len(users))
	for i := range users {
		var count int64
		result := s.db.Model(&schema.Track{}).Where("user_id = ?", users[i].Id).Count(&count)
		if result.Error != nil {
			slog.Error("sql error counting user tracks", "user_id", users[i].Id, "error", result.Error)
			http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
			return
		}
		infos = append(infos, adminUserInfo{UserInfo: convertToUserInfo(&users[i]), TrackCount: count})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *AdminService) UserTracks(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var tracks []schema.Track
	result := s.db.Where("user_id = ?", userId).Order("created_at DESC").Find(&tracks)
	if result.Error != nil {
		slog.Error("sql error listing user tracks", "user_id", userId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]TrackInfo, 0, len(tracks))
	for i := range tracks {
		infos = append(infos, convertToTrackInfo(&tracks[i]))
	}

	utils.WriteJsonResponse(w, infos)
}

type globalStats struct {
	TotalUsers     int64 `json:"total_users"`
	TotalAdmins    int64 `json:"total_admins"`
	TotalTracks    int64 `json:"total_tracks"`
	TracksWithIsrc int64 `json:"tracks_with_isrc"`
}

func (s *AdminService) Stats(w http.ResponseWriter, r *http.Request) {
	var stats globalStats

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, s.db.Model(&schema.User{})},
		{&stats.TotalAdmins, s.db.Model(&schema.User{}).Where("is_admin = ?", true)},
		{&stats.TotalTracks, s.db.Model(&schema.Track{})},
		{&stats.TracksWithIsrc, s.db.Model(&schema.Track{}).Where("isrc != ''")},
	}

	for _, c := range counts {
		if result := c.query.Count(c.dest); result.Error != nil {
			slog.Error("sql error computing global stats", "error", result.Error)
			http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJsonResponse(w, stats)
}
