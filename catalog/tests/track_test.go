package tests

import (
	"errors"
	"strings"
	"testing"
)

func TestTrackTenancyIsolation(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Private Artist", 2)

	alice, err := env.newUser("alice")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := env.newUser("bob")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := alice.importPlaylist("playlist1", "fast"); err != nil {
		t.Fatal(err)
	}

	aliceTracks, err := alice.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceTracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(aliceTracks))
	}

	bobTracks, err := bob.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(bobTracks) != 0 {
		t.Fatalf("bob should see no tracks, got %d", len(bobTracks))
	}

	// Another tenant's track id behaves exactly like a missing one.
	trackId := aliceTracks[0].Id.String()
	if _, err := bob.getTrack(trackId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross tenant read should 404: %v", err)
	}
	if err := bob.deleteTrack(trackId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross tenant delete should 404: %v", err)
	}

	if _, err := alice.getTrack(trackId); err != nil {
		t.Fatal(err)
	}
}

func TestTrackSearch(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Findable", 3)

	user, err := env.newUser("searcher")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.importPlaylist("playlist1", "fast"); err != nil {
		t.Fatal(err)
	}

	results, err := user.searchTracks("Findable")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	results, err = user.searchTracks("song+1")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	results, err = user.searchTracks("nomatch")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestTrackDelete(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Deletable", 2)

	user, err := env.newUser("deleter")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.importPlaylist("playlist1", "fast"); err != nil {
		t.Fatal(err)
	}

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}

	if err := user.deleteTrack(tracks[0].Id.String()); err != nil {
		t.Fatal(err)
	}

	remaining, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 track after delete, got %d", len(remaining))
	}

	if _, err := user.getTrack(tracks[0].Id.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted track should 404: %v", err)
	}
}

func TestClearanceValidation(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Clearable", 1)

	user, err := env.newUser("pricer")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.importPlaylist("playlist1", "fast"); err != nil {
		t.Fatal(err)
	}

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	trackId := tracks[0].Id.String()

	price := 49.99
	if err := user.setClearance(trackId, "EasyClear", &price); err != nil {
		t.Fatal(err)
	}

	track, err := user.getTrack(trackId)
	if err != nil {
		t.Fatal(err)
	}
	if track.ClearanceType != "EasyClear" || track.ClearancePrice == nil || *track.ClearancePrice != 49.99 {
		t.Fatalf("clearance not applied: %v %v", track.ClearanceType, track.ClearancePrice)
	}

	err = user.setClearance(trackId, "MadeUpClear", &price)
	if err == nil || !strings.Contains(err.Error(), "invalid clearance type") {
		t.Fatalf("invalid clearance type should be rejected: %v", err)
	}

	negative := -1.0
	err = user.setClearance(trackId, "PreClear", &negative)
	if err == nil || !strings.Contains(err.Error(), "cannot be negative") {
		t.Fatalf("negative price should be rejected: %v", err)
	}

	err = user.setClearance(trackId, "PreClear", nil)
	if err == nil || !strings.Contains(err.Error(), "price is required") {
		t.Fatalf("missing price should be rejected: %v", err)
	}

	nonzero := 10.0
	err = user.setClearance(trackId, "FreeClear", &nonzero)
	if err == nil || !strings.Contains(err.Error(), "price of 0") {
		t.Fatalf("FreeClear with nonzero price should be rejected: %v", err)
	}

	// Failed updates must not have modified the track.
	track, err = user.getTrack(trackId)
	if err != nil {
		t.Fatal(err)
	}
	if track.ClearanceType != "EasyClear" || *track.ClearancePrice != 49.99 {
		t.Fatalf("rejected updates should not modify the track: %v %v", track.ClearanceType, track.ClearancePrice)
	}

	if err := user.setClearance(trackId, "FreeClear", nil); err != nil {
		t.Fatal(err)
	}

	track, err = user.getTrack(trackId)
	if err != nil {
		t.Fatal(err)
	}
	if track.ClearanceType != "FreeClear" || track.ClearancePrice == nil || *track.ClearancePrice != 0 {
		t.Fatalf("FreeClear should force price to 0: %v %v", track.ClearanceType, track.ClearancePrice)
	}
}

func TestTrackStats(t *testing.T) {
	env := setupTestEnv(t)

	env.providers.addArtistTracks("playlist1", "artist1", "Counted", 3)

	user, err := env.newUser("counter")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.importPlaylist("playlist1", "fast"); err != nil {
		t.Fatal(err)
	}

	var stats map[string]int64
	if err := user.Get("/track/stats").Do(&stats); err != nil {
		t.Fatal(err)
	}

	if stats["total_tracks"] != 3 || stats["tracks_with_isrc"] != 3 {
		t.Fatalf("unexpected stats %v", stats)
	}
}
