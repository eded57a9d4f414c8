package tests

import (
	"testing"

	"songxs_platform/catalog/ingest"
	"songxs_platform/catalog/providers"
)

func checkReportCounts(t *testing.T, report ingest.Report, saved, duplicates, errors int) {
	t.Helper()

	if report.Saved != saved || report.Duplicates != duplicates || report.Errors != errors {
		t.Fatalf("expected report counts %d/%d/%d, got %d/%d/%d",
			saved, duplicates, errors, report.Saved, report.Duplicates, report.Errors)
	}
	if report.Saved+report.Duplicates+report.Errors != len(report.Results) {
		t.Fatalf("report counts %d+%d+%d do not sum to %d results",
			report.Saved, report.Duplicates, report.Errors, len(report.Results))
	}
}

func TestPlaylistImportSameArtistFastMode(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "The Regulars", 5)
	env.providers.stats.stats["artist1"] = providers.ArtistStats{Followers: 1000, Popularity: 60, Genres: []string{"indie"}}

	user, err := env.newUser("importer")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importPlaylist("playlist1", "fast")
	if err != nil {
		t.Fatal(err)
	}

	checkReportCounts(t, report, 5, 0, 0)

	// All 5 tracks share an artist: one primary lookup populates the cache, and
	// fast mode never touches the secondary providers.
	if env.providers.stats.calls != 1 {
		t.Fatalf("expected 1 artist stats lookup, got %d", env.providers.stats.calls)
	}
	if env.providers.location.calls != 0 || env.providers.social.callCount() != 0 {
		t.Fatalf("fast mode should not perform secondary lookups, got location=%d social=%d",
			env.providers.location.calls, env.providers.social.callCount())
	}

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 5 {
		t.Fatalf("expected 5 tracks, got %d", len(tracks))
	}
	for _, track := range tracks {
		if track.ArtistFollowers == nil || *track.ArtistFollowers != 1000 {
			t.Fatalf("track %v missing artist snapshot", track.TrackName)
		}
		if track.ArtistCountry != "" {
			t.Fatalf("fast mode should not populate location, got %v", track.ArtistCountry)
		}
	}
}

func TestPlaylistImportCompleteMode(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Mala Junta", 3)
	env.providers.stats.stats["artist1"] = providers.ArtistStats{Followers: 500, Popularity: 40}
	env.providers.location.locations["Mala Junta"] = providers.Location{Country: "Argentina", City: "Buenos Aires"}
	env.providers.social.followers["instagram:Mala Junta"] = providers.SocialStats{Username: "malajunta", Followers: 20000}

	user, err := env.newUser("importer")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importPlaylist("playlist1", "complete")
	if err != nil {
		t.Fatal(err)
	}

	checkReportCounts(t, report, 3, 0, 0)

	// One cache miss means one fan-out, regardless of how many tracks share the
	// artist.
	if env.providers.stats.calls != 1 || env.providers.location.calls != 1 {
		t.Fatalf("expected 1 primary and 1 location lookup, got stats=%d location=%d",
			env.providers.stats.calls, env.providers.location.calls)
	}
	if env.providers.social.callCount() != 2 {
		t.Fatalf("expected 2 social lookups (instagram + tiktok), got %d", env.providers.social.callCount())
	}

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	for _, track := range tracks {
		if track.ArtistCountry != "Argentina" || track.ArtistCity != "Buenos Aires" {
			t.Fatalf("track %v missing location snapshot", track.TrackName)
		}
		if track.InstagramUsername != "malajunta" || track.InstagramFollowers == nil || *track.InstagramFollowers != 20000 {
			t.Fatalf("track %v missing instagram snapshot", track.TrackName)
		}
	}
}

func TestReimportCountsDuplicates(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Repeat Offender", 4)

	user, err := env.newUser("importer")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importPlaylist("playlist1", "fast")
	if err != nil {
		t.Fatal(err)
	}
	checkReportCounts(t, report, 4, 0, 0)

	report, err = user.importPlaylist("playlist1", "fast")
	if err != nil {
		t.Fatal(err)
	}
	checkReportCounts(t, report, 0, 4, 0)

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 4 {
		t.Fatalf("reimport should not create rows, got %d tracks", len(tracks))
	}
}

func TestIsrcUniquenessIsPerTenant(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Shared Artist", 2)

	alice, err := env.newUser("alice")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := env.newUser("bob")
	if err != nil {
		t.Fatal(err)
	}

	report, err := alice.importPlaylist("playlist1", "fast")
	if err != nil {
		t.Fatal(err)
	}
	checkReportCounts(t, report, 2, 0, 0)

	// Same content ids, different tenant: both saves succeed.
	report, err = bob.importPlaylist("playlist1", "fast")
	if err != nil {
		t.Fatal(err)
	}
	checkReportCounts(t, report, 2, 0, 0)
}

func TestImportErrorIsolation(t *testing.T) {
	env := setupTestEnv(t)

	refs := env.providers.addArtistTracks("playlist1", "artist1", "Mixed Bag", 3)
	refs[1].Name = "" // unusable reference
	env.providers.metadata.playlists["playlist1"] = refs

	user, err := env.newUser("importer")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importPlaylist("playlist1", "fast")
	if err != nil {
		t.Fatal(err)
	}

	checkReportCounts(t, report, 2, 0, 1)

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected the 2 valid tracks to be saved, got %d", len(tracks))
	}
}

func TestPrimaryLookupFailureStillSavesTrack(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Ghost Artist", 2)
	env.providers.stats.fail = true

	user, err := env.newUser("importer")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importPlaylist("playlist1", "fast")
	if err != nil {
		t.Fatal(err)
	}

	checkReportCounts(t, report, 2, 0, 0)

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	for _, track := range tracks {
		if track.ArtistFollowers != nil {
			t.Fatal("failed lookup should leave artist fields unset")
		}
	}
}

func TestIsrcImport(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.metadata.byIsrc["USABC1234567"] = providers.TrackRef{
		SpotifyId: "track1",
		Name:      "Found Song",
		Artists:   []string{"Some Artist"},
		Isrc:      "USABC1234567",
	}

	user, err := env.newUser("importer")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importIsrcs([]string{"USABC1234567", "USXYZ0000000"}, "fast")
	if err != nil {
		t.Fatal(err)
	}

	// The unknown isrc is reported as an error so the counts still cover the
	// whole batch.
	checkReportCounts(t, report, 1, 0, 1)

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].TrackName != "Found Song" {
		t.Fatalf("unexpected tracks %v", tracks)
	}
}
