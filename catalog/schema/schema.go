package schema

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:80;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	CreatedAt time.Time

	Tracks      []Track      `gorm:"constraint:OnDelete:CASCADE"`
	SplitSheets []SplitSheet `gorm:"foreignKey:CreatedBy"`
}

// Clearance classifications a track can carry. An empty string means the track
// has not been classified yet.
const (
	EasyClear = "EasyClear"
	PreClear  = "PreClear"
	FreeClear = "FreeClear"
)

func ValidClearanceType(clearance string) bool {
	return clearance == EasyClear || clearance == PreClear || clearance == FreeClear
}

type Track struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId uuid.UUID `gorm:"type:uuid;not null;index"`
	User   *User

	TrackName string `gorm:"size:200;not null"`
	Artists   string `gorm:"size:500"`
	Album     string `gorm:"size:200"`

	// Uniqueness of (Isrc, UserId) is enforced by a check-then-insert in the
	// ingestion pipeline, not by a db constraint. Tracks without an ISRC are
	// never deduplicated.
	Isrc string `gorm:"size:50;index"`
	Upc  string `gorm:"size:50"`

	SpotifyUrl string `gorm:"size:300"`
	SpotifyId  string `gorm:"size:100"`

	Tempo            *float64
	Energy           *float64
	Danceability     *float64
	Valence          *float64
	Acousticness     *float64
	Instrumentalness *float64
	Key              *int
	Mode             *int
	TimeSignature    *int

	// Artist enrichment snapshot, captured at import time from the artist cache.
	ArtistId         string `gorm:"size:100"`
	ArtistFollowers  *int
	ArtistPopularity *int
	ArtistGenres     string `gorm:"size:500"`
	ArtistImageUrl   string `gorm:"size:500"`

	AlbumImageUrl string `gorm:"size:500"`

	ArtistCountry string `gorm:"size:200"`
	ArtistCity    string `gorm:"size:200"`

	InstagramUsername  string `gorm:"size:100"`
	InstagramFollowers *int
	TiktokUsername     string `gorm:"size:100"`
	TiktokFollowers    *int

	ClearanceType  string `gorm:"size:50"`
	ClearancePrice *float64

	LastfmTags      string `gorm:"size:500"`
	LastfmPlaycount *int
	LastfmListeners *int

	CreatedAt time.Time
}

type ArtistCacheEntry struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Spotify artist id. One cache row per artist, shared across all tenants.
	ArtistId   string `gorm:"unique;size:100;index"`
	ArtistName string `gorm:"size:200;index"`

	SpotifyFollowers  *int
	SpotifyPopularity *int
	SpotifyGenres     string `gorm:"size:500"`
	ArtistImageUrl    string `gorm:"size:500"`

	ArtistCountry string `gorm:"size:200"`
	ArtistCity    string `gorm:"size:200"`

	InstagramUsername  string `gorm:"size:100"`
	InstagramFollowers *int
	TiktokUsername     string `gorm:"size:100"`
	TiktokFollowers    *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	SplitSheetDraft     = "draft"
	SplitSheetPending   = "pending_signatures"
	SplitSheetCompleted = "completed"
)

type SplitSheet struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TrackId uuid.UUID `gorm:"type:uuid;not null;index"`
	Track   *Track    `gorm:"constraint:OnDelete:CASCADE"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	User      *User     `gorm:"foreignKey:CreatedBy"`

	Status string `gorm:"size:50;not null;default:'draft'"`

	Notes       string `gorm:"type:text"`
	DocumentUrl string `gorm:"size:500"`

	Collaborators []Collaborator `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tolerance for the collaborator percentage sum check.
const PercentageTolerance = 0.01

func (s *SplitSheet) TotalPercentage() float64 {
	total := 0.0
	for _, c := range s.Collaborators {
		total += c.Percentage
	}
	return total
}

// WithinTolerance reports whether a collaborator percentage sum is acceptably
// close to 100. Sums landing exactly on the tolerance boundary are accepted.
func WithinTolerance(total float64) bool {
	return math.Abs(total-100.0) <= PercentageTolerance
}

func (s *SplitSheet) IsValid() bool {
	return WithinTolerance(s.TotalPercentage())
}

func (s *SplitSheet) AllSigned() bool {
	for _, c := range s.Collaborators {
		if !c.Signed {
			return false
		}
	}
	return true
}

type Collaborator struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	SplitSheetId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name  string `gorm:"size:200;not null"`
	Email string `gorm:"size:200"`
	Role  string `gorm:"size:100"`

	Percentage float64 `gorm:"not null"`

	// Performing rights identifiers (IPI/CAE number and PRO name, e.g. ASCAP).
	IpiCae string `gorm:"size:50"`
	Pro    string `gorm:"size:100"`

	Signed        bool `gorm:"not null;default:false"`
	SignedAt      *time.Time
	SignatureData string `gorm:"type:text"`

	// Possession of this token is the sole authorization for signing.
	SignatureToken string `gorm:"unique;size:100"`
}
