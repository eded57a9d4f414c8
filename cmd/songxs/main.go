package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"songxs_platform/catalog/auth"
	"songxs_platform/catalog/providers"
	"songxs_platform/catalog/schema"
	"songxs_platform/catalog/services"
	"songxs_platform/utils"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type providerCredentials struct {
	SpotifyClientId     string `env:"SPOTIFY_CLIENT_ID,required"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET,required"`

	MusicBrainzUserAgent string `env:"MUSICBRAINZ_USER_AGENT" envDefault:"songxs/1.0 (support@songxs.app)"`

	LastfmApiKey string `env:"LASTFM_API_KEY"`

	// Social lookups are disabled entirely when no RapidAPI key is configured.
	RapidApiKey       string `env:"RAPIDAPI_KEY"`
	RapidApiInstagram string `env:"RAPIDAPI_INSTAGRAM_HOST" envDefault:"instagram-statistics-api.p.rapidapi.com"`
	RapidApiTiktok    string `env:"RAPIDAPI_TIKTOK_HOST" envDefault:"tiktok-scraper7.p.rapidapi.com"`
}

type songxsEnv struct {
	DatabaseUri string
	JwtSecret   string

	CorsOrigin string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	Providers providerCredentials
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func loadEnv() songxsEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		value := os.Getenv(key)
		if value == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return value
	}

	cfg := songxsEnv{
		DatabaseUri: requiredEnv("DATABASE_URI"),
		JwtSecret:   requiredEnv("JWT_SECRET"),

		CorsOrigin: utils.OptionalEnv("CORS_ORIGIN"),

		AdminUsername: utils.OptionalEnv("ADMIN_USERNAME"),
		AdminEmail:    utils.OptionalEnv("ADMIN_EMAIL"),
		AdminPassword: utils.OptionalEnv("ADMIN_PASSWORD"),
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	if err := env.Parse(&cfg.Providers); err != nil {
		log.Fatalf("error parsing provider credentials: %v", err)
	}

	return cfg
}

func initDb(uri string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	sqlDb, err := db.DB()
	if err != nil {
		log.Fatalf("error accessing underlying database handle: %v", err)
	}
	sqlDb.SetMaxOpenConns(utils.IntEnvVar("DB_MAX_CONNECTIONS", 25))

	err = db.AutoMigrate(schema.AllModels()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")
	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}

	if utils.BoolEnvVar("VERBOSE") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg := loadEnv()

	db := initDb(cfg.DatabaseUri)

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(os.Stderr),
		auth.BasicProviderArgs{
			Secret:        []byte(cfg.JwtSecret),
			AdminUsername: cfg.AdminUsername,
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
		},
	)
	if err != nil {
		log.Fatalf("error creating identity provider: %v", err)
	}

	spotify, err := providers.NewSpotifyProvider(context.Background(), cfg.Providers.SpotifyClientId, cfg.Providers.SpotifyClientSecret)
	if err != nil {
		log.Fatalf("error creating spotify client: %v", err)
	}

	social := providers.NewRapidAPISocialClient(cfg.Providers.RapidApiKey, cfg.Providers.RapidApiInstagram, cfg.Providers.RapidApiTiktok)
	if !social.Enabled() {
		slog.Info("no rapidapi key configured, social stats lookups are disabled")
	}

	platform := services.NewPlatform(db, identityProvider, services.Providers{
		Metadata: spotify,
		Features: spotify,
		Stats:    spotify,
		Location: providers.NewMusicBrainzClient(cfg.Providers.MusicBrainzUserAgent),
		Social:   social,
		Tags:     providers.NewLastfmClient(cfg.Providers.LastfmApiKey),
	})

	r := chi.NewRouter()

	allowedOrigins := []string{"*"}
	if cfg.CorsOrigin != "" {
		allowedOrigins = []string{cfg.CorsOrigin}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", platform.Routes())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
