package services

import (
	"log"
	"net/http"
	"os"
	"songxs_platform/catalog/auth"
	"songxs_platform/catalog/enrichment"
	"songxs_platform/catalog/ingest"
	"songxs_platform/catalog/providers"
	"songxs_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Platform is the root of the catalog service. It owns the sub-services and
// mounts them onto a single router.
type Platform struct {
	user       UserService
	track      TrackService
	importer   ImportService
	splitSheet SplitSheetService
	admin      AdminService

	db *gorm.DB
}

type Providers struct {
	Metadata providers.MetadataProvider
	Features providers.AudioFeatureProvider
	Stats    providers.ArtistStatsProvider
	Location providers.LocationProvider
	Social   providers.SocialStatsProvider
	Tags     providers.TrackInfoProvider
}

func NewPlatform(db *gorm.DB, userAuth auth.IdentityProvider, p Providers) Platform {
	artists := enrichment.NewArtistCache(db, p.Stats, p.Location, p.Social)
	pipeline := ingest.NewPipeline(db, p.Metadata, p.Features, p.Tags, artists)

	return Platform{
		user:       UserService{db: db, userAuth: userAuth},
		track:      TrackService{db: db, userAuth: userAuth},
		importer:   ImportService{pipeline: pipeline, userAuth: userAuth},
		splitSheet: SplitSheetService{db: db, userAuth: userAuth},
		admin:      AdminService{db: db, userAuth: userAuth},
		db:         db,
	}
}

func (p *Platform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", p.user.Routes())
	r.Mount("/track", p.track.Routes())
	r.Mount("/import", p.importer.Routes())
	r.Mount("/splitsheet", p.splitSheet.Routes())
	r.Mount("/sign", p.splitSheet.SignRoutes())
	r.Mount("/admin", p.admin.Routes())

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
