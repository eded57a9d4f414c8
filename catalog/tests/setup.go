package tests

import (
	"bytes"
	"testing"

	"songxs_platform/catalog/auth"
	"songxs_platform/catalog/schema"
	"songxs_platform/catalog/services"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	platform  services.Platform
	api       chi.Router
	db        *gorm.DB
	providers *providerStubs
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	return setupEnv(t, auth.BasicProviderArgs{
		Secret:        []byte("290zcv02ai249"),
		AdminUsername: adminUsername,
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	})
}

// setupTestEnvNoSeed creates an env without a seeded admin, so the first user
// to sign up is promoted automatically.
func setupTestEnvNoSeed(t *testing.T) *testEnv {
	return setupEnv(t, auth.BasicProviderArgs{Secret: []byte("290zcv02ai249")})
}

func setupEnv(t *testing.T, args auth.BasicProviderArgs) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllModels()...)
	if err != nil {
		t.Fatal(err)
	}

	userAuth, err := auth.NewBasicIdentityProvider(db, auth.NewAuditLogger(new(bytes.Buffer)), args)
	if err != nil {
		t.Fatal(err)
	}

	stubs := newProviderStubs()

	platform := services.NewPlatform(db, userAuth, services.Providers{
		Metadata: stubs.metadata,
		Features: stubs.features,
		Stats:    stubs.stats,
		Location: stubs.location,
		Social:   stubs.social,
		Tags:     stubs.tags,
	})

	return &testEnv{platform: platform, api: platform.Routes(), db: db, providers: stubs}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

// promoteToAdmin flips a user's admin flag directly in the db. The auth
// middleware reloads the user row on every request, so existing tokens pick
// up the promotion immediately.
func (t *testEnv) promoteToAdmin(tb *testing.T, username string) {
	tb.Helper()

	result := t.db.Model(&schema.User{}).Where("username = ?", username).Update("is_admin", true)
	if result.Error != nil {
		tb.Fatal(result.Error)
	}
	if result.RowsAffected != 1 {
		tb.Fatalf("expected to promote 1 user, got %d", result.RowsAffected)
	}
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}
