package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"songxs_platform/catalog/auth"
	"songxs_platform/catalog/schema"
	"songxs_platform/utils"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SplitSheetService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *SplitSheetService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)
	r.Use(auth.AdminOnly())

	r.Post("/create", s.Create)
	r.Get("/list/{track_id}", s.ListForTrack)
	r.Get("/{split_sheet_id}", s.Get)

	return r
}

// SignRoutes are mounted outside the authenticated router. Possession of a
// collaborator's signing token is the only authorization for these endpoints.
func (s *SplitSheetService) SignRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{token}", s.SigningContext)
	r.Post("/{token}", s.Sign)

	return r
}

type collaboratorRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	Percentage float64 `json:"percentage"`
	IpiCae     string  `json:"ipi_cae"`
	Pro        string  `json:"pro"`
}

type createSplitSheetRequest struct {
	TrackId       uuid.UUID             `json:"track_id"`
	Notes         string                `json:"notes"`
	Collaborators []collaboratorRequest `json:"collaborators"`
}

type CollaboratorInfo struct {
	Id         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Percentage float64   `json:"percentage"`
	IpiCae     string    `json:"ipi_cae"`
	Pro        string    `json:"pro"`
	Signed     bool      `json:"signed"`
	SignedAt   *string   `json:"signed_at"`

	// Only populated in responses to the sheet's creator; signing links are
	// distributed out of band.
	SignatureToken string `json:"signature_token,omitempty"`
}

type SplitSheetInfo struct {
	Id            uuid.UUID          `json:"id"`
	TrackId       uuid.UUID          `json:"track_id"`
	Status        string             `json:"status"`
	Notes         string             `json:"notes"`
	Collaborators []CollaboratorInfo `json:"collaborators"`
	CreatedAt     string             `json:"created_at"`
}

func convertToCollaboratorInfo(c *schema.Collaborator, includeToken bool) CollaboratorInfo {
	info := CollaboratorInfo{
		Id:         c.Id,
		Name:       c.Name,
		Email:      c.Email,
		Role:       c.Role,
		Percentage: c.Percentage,
		IpiCae:     c.IpiCae,
		Pro:        c.Pro,
		Signed:     c.Signed,
	}
	if c.SignedAt != nil {
		at := c.SignedAt.Format(time.RFC3339)
		info.SignedAt = &at
	}
	if includeToken {
		info.SignatureToken = c.SignatureToken
	}
	return info
}

func convertToSplitSheetInfo(sheet *schema.SplitSheet, includeTokens bool) SplitSheetInfo {
	collaborators := make([]CollaboratorInfo, 0, len(sheet.Collaborators))
	for i := range sheet.Collaborators {
		collaborators = append(collaborators, convertToCollaboratorInfo(&sheet.Collaborators[i], includeTokens))
	}

	return SplitSheetInfo{
		Id:            sheet.Id,
		TrackId:       sheet.TrackId,
		Status:        sheet.Status,
		Notes:         sheet.Notes,
		Collaborators: collaborators,
		CreatedAt:     sheet.CreatedAt.Format(time.RFC3339),
	}
}

func newSignatureToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("error generating signature token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (s *SplitSheetService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createSplitSheetRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if len(params.Collaborators) == 0 {
		http.Error(w, "split sheet must have at least one collaborator", http.StatusUnprocessableEntity)
		return
	}

	total := 0.0
	for _, c := range params.Collaborators {
		if c.Name == "" {
			http.Error(w, "every collaborator must have a name", http.StatusUnprocessableEntity)
			return
		}
		if c.Percentage <= 0 {
			http.Error(w, fmt.Sprintf("collaborator %v must have a positive percentage", c.Name), http.StatusUnprocessableEntity)
			return
		}
		total += c.Percentage
	}

	if !schema.WithinTolerance(total) {
		http.Error(w, fmt.Sprintf("collaborator percentages must sum to 100, got %.2f", total), http.StatusUnprocessableEntity)
		return
	}

	sheet := schema.SplitSheet{
		Id:        uuid.New(),
		Status:    schema.SplitSheetDraft,
		Notes:     params.Notes,
		CreatedBy: user.Id,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		// Split sheets can only be created for tracks in the acting admin's
		// own catalog. Another tenant's track looks like a missing track.
		track, err := schema.GetUserTrack(params.TrackId, user.Id, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTrackNotFound) {
				return CodedError(schema.ErrTrackNotFound, http.StatusNotFound)
			}
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		sheet.TrackId = track.Id

		collaborators := make([]schema.Collaborator, 0, len(params.Collaborators))
		for _, c := range params.Collaborators {
			token, err := newSignatureToken()
			if err != nil {
				slog.Error("error generating signature token", "error", err)
				return CodedError(err, http.StatusInternalServerError)
			}
			collaborators = append(collaborators, schema.Collaborator{
				Id:             uuid.New(),
				SplitSheetId:   sheet.Id,
				Name:           c.Name,
				Email:          c.Email,
				Role:           c.Role,
				Percentage:     c.Percentage,
				IpiCae:         c.IpiCae,
				Pro:            c.Pro,
				SignatureToken: token,
			})
		}
		sheet.Collaborators = collaborators

		result := txn.Create(&sheet)
		if result.Error != nil {
			slog.Error("sql error creating split sheet", "track_id", params.TrackId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating split sheet: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToSplitSheetInfo(&sheet, true))
}

func (s *SplitSheetService) ListForTrack(w http.ResponseWriter, r *http.Request) {
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

	if _, err := schema.GetUserTrack(trackId, user.Id, s.db); err != nil {
		if errors.Is(err, schema.ErrTrackNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	var sheets []schema.SplitSheet
	result := s.db.Preload("Collaborators").Where("track_id = ?", trackId).Order("created_at DESC").Find(&sheets)
	if result.Error != nil {
		slog.Error("sql error listing split sheets", "track_id", trackId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]SplitSheetInfo, 0, len(sheets))
	for i := range sheets {
		infos = append(infos, convertToSplitSheetInfo(&sheets[i], true))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *SplitSheetService) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sheetId, err := utils.URLParamUUID(r, "split_sheet_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sheet, err := schema.GetSplitSheet(sheetId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrSplitSheetNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	// Only the sheet's creator may read it. Other admins get the same not
	// found as a nonexistent sheet.
	if sheet.CreatedBy != user.Id {
		http.Error(w, schema.ErrSplitSheetNotFound.Error(), http.StatusNotFound)
		return
	}

	utils.WriteJsonResponse(w, convertToSplitSheetInfo(&sheet, true))
}

type signingContextResponse struct {
	Collaborator CollaboratorInfo `json:"collaborator"`
	SplitSheet   SplitSheetInfo   `json:"split_sheet"`
	TrackName    string           `json:"track_name"`
	Artists      string           `json:"artists"`
}

// SigningContext returns the sheet a signing token belongs to so the signer can
// review it. An unknown token gets a generic not found, revealing nothing about
// which tokens exist.
func (s *SplitSheetService) SigningContext(w http.ResponseWriter, r *http.Request) {
	token, err := utils.URLParam(r, "token")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	collaborator, err := schema.GetCollaboratorByToken(token, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrCollaboratorNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
		} else {
			http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		}
		return
	}

	sheet, err := schema.GetSplitSheet(collaborator.SplitSheetId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrSplitSheetNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
		} else {
			http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		}
		return
	}

	var track schema.Track
	result := s.db.Limit(1).Find(&track, "id = ?", sheet.TrackId)
	if result.Error != nil {
		slog.Error("sql error loading track for signing context", "track_id", sheet.TrackId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	res := signingContextResponse{
		Collaborator: convertToCollaboratorInfo(&collaborator, false),
		SplitSheet:   convertToSplitSheetInfo(&sheet, false),
		TrackName:    track.TrackName,
		Artists:      track.Artists,
	}
	utils.WriteJsonResponse(w, res)
}

type signRequest struct {
	SignatureData string `json:"signature_data"`
}

type signResponse struct {
	Signed      bool   `json:"signed"`
	SheetStatus string `json:"sheet_status"`
}

// Sign records a collaborator's signature. Signing again overwrites the
// previous signature. When the last unsigned collaborator signs, the sheet
// moves to completed in the same transaction as the signature itself.
func (s *SplitSheetService) Sign(w http.ResponseWriter, r *http.Request) {
	token, err := utils.URLParam(r, "token")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params signRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.SignatureData == "" {
		http.Error(w, "signature data is required", http.StatusUnprocessableEntity)
		return
	}

	var status string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		collaborator, err := schema.GetCollaboratorByToken(token, txn)
		if err != nil {
			if errors.Is(err, schema.ErrCollaboratorNotFound) {
				return CodedError(errors.New("not found"), http.StatusNotFound)
			}
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		now := time.Now().UTC()
		collaborator.Signed = true
		collaborator.SignedAt = &now
		collaborator.SignatureData = params.SignatureData

		result := txn.Save(&collaborator)
		if result.Error != nil {
			slog.Error("sql error saving signature", "collaborator_id", collaborator.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		sheet, err := schema.GetSplitSheet(collaborator.SplitSheetId, txn)
		if err != nil {
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		status = schema.SplitSheetPending
		if sheet.AllSigned() {
			status = schema.SplitSheetCompleted
		}

		if sheet.Status != status {
			result = txn.Model(&sheet).Update("status", status)
			if result.Error != nil {
				slog.Error("sql error updating split sheet status", "split_sheet_id", sheet.Id, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, signResponse{Signed: true, SheetStatus: status})
}
