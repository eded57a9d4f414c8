package tests

import (
	"errors"
	"strings"
	"testing"

	"songxs_platform/catalog/schema"
	"songxs_platform/catalog/services"
)

func importOneTrack(t *testing.T, env *testEnv, user client) services.TrackInfo {
	t.Helper()

	env.providers.addArtistTracks("sheet-playlist", "artist1", "Split Artist", 1)

	if _, err := user.importPlaylist("sheet-playlist", "fast"); err != nil {
		t.Fatal(err)
	}

	tracks, err := user.listTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	return tracks[0]
}

func splitSheetRequest(trackId string, percentages map[string]float64) map[string]interface{} {
	collaborators := make([]map[string]interface{}, 0, len(percentages))
	for name, pct := range percentages {
		collaborators = append(collaborators, map[string]interface{}{
			"name":       name,
			"email":      strings.ToLower(name) + "@mail.com",
			"role":       "writer",
			"percentage": pct,
		})
	}
	return map[string]interface{}{
		"track_id":      trackId,
		"collaborators": collaborators,
	}
}

func TestSplitSheetIsAdminOnly(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	track := importOneTrack(t, env, admin)

	user, err := env.newUser("regular")
	if err != nil {
		t.Fatal(err)
	}

	req := splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 100})
	if _, err := user.createSplitSheet(req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular users cannot create split sheets: %v", err)
	}

	sheet, err := admin.createSplitSheet(req)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.getSplitSheet(sheet.Id.String()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular users cannot read split sheets: %v", err)
	}
}

func TestSplitSheetPercentageValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	track := importOneTrack(t, env, admin)

	_, err = admin.createSplitSheet(splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 50, "Bruno": 40}))
	if err == nil || !strings.Contains(err.Error(), "must sum to 100") {
		t.Fatalf("sum of 90 should be rejected: %v", err)
	}
	if !strings.Contains(err.Error(), "90.00") {
		t.Fatalf("rejection should report the actual sum: %v", err)
	}

	_, err = admin.createSplitSheet(splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 60, "Bruno": 50}))
	if err == nil || !strings.Contains(err.Error(), "must sum to 100") {
		t.Fatalf("sum of 110 should be rejected: %v", err)
	}

	// Within tolerance of the float comparison.
	sheet, err := admin.createSplitSheet(splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 33.33, "Bruno": 33.33, "Carla": 33.335}))
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Status != "draft" {
		t.Fatalf("new sheet should be draft, got %v", sheet.Status)
	}

	_, err = admin.createSplitSheet(map[string]interface{}{
		"track_id": track.Id.String(), "collaborators": []interface{}{},
	})
	if err == nil || !strings.Contains(err.Error(), "at least one collaborator") {
		t.Fatalf("empty collaborator list should be rejected: %v", err)
	}
}

func TestSplitSheetSigningFlow(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	track := importOneTrack(t, env, admin)

	sheet, err := admin.createSplitSheet(splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 50, "Bruno": 30, "Carla": 20}))
	if err != nil {
		t.Fatal(err)
	}

	if len(sheet.Collaborators) != 3 {
		t.Fatalf("expected 3 collaborators, got %d", len(sheet.Collaborators))
	}
	for _, c := range sheet.Collaborators {
		if c.SignatureToken == "" {
			t.Fatalf("collaborator %v has no signing token", c.Name)
		}
		if c.Signed {
			t.Fatalf("collaborator %v should start unsigned", c.Name)
		}
	}

	// Signing requires no login, just the token.
	anon := env.newClient()

	context := map[string]interface{}{}
	if err := anon.Get("/sign/" + sheet.Collaborators[0].SignatureToken).Do(&context); err != nil {
		t.Fatal(err)
	}
	if context["track_name"] != track.TrackName {
		t.Fatalf("signing context should include the track, got %v", context["track_name"])
	}

	res, err := anon.sign(sheet.Collaborators[0].SignatureToken, "signature-ana")
	if err != nil {
		t.Fatal(err)
	}
	if res["sheet_status"] != "pending_signatures" {
		t.Fatalf("sheet should be pending after first signature, got %v", res["sheet_status"])
	}

	if _, err := anon.sign(sheet.Collaborators[1].SignatureToken, "signature-bruno"); err != nil {
		t.Fatal(err)
	}

	current, err := admin.getSplitSheet(sheet.Id.String())
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != "pending_signatures" {
		t.Fatalf("sheet should still be pending, got %v", current.Status)
	}

	// The final signature completes the sheet in the same transaction.
	res, err = anon.sign(sheet.Collaborators[2].SignatureToken, "signature-carla")
	if err != nil {
		t.Fatal(err)
	}
	if res["sheet_status"] != "completed" {
		t.Fatalf("sheet should be completed after last signature, got %v", res["sheet_status"])
	}

	current, err = admin.getSplitSheet(sheet.Id.String())
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != "completed" {
		t.Fatalf("sheet should be completed, got %v", current.Status)
	}
	for _, c := range current.Collaborators {
		if !c.Signed || c.SignedAt == nil {
			t.Fatalf("collaborator %v should be signed with a timestamp", c.Name)
		}
	}
}

func TestResigningOverwrites(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	track := importOneTrack(t, env, admin)

	sheet, err := admin.createSplitSheet(splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 100}))
	if err != nil {
		t.Fatal(err)
	}

	anon := env.newClient()
	token := sheet.Collaborators[0].SignatureToken

	if _, err := anon.sign(token, "first"); err != nil {
		t.Fatal(err)
	}

	// Signing twice is accepted and replaces the previous signature.
	res, err := anon.sign(token, "second")
	if err != nil {
		t.Fatal(err)
	}
	if res["sheet_status"] != "completed" {
		t.Fatalf("sheet should remain completed, got %v", res["sheet_status"])
	}
}

func TestUnknownSigningToken(t *testing.T) {
	env := setupTestEnv(t)

	anon := env.newClient()

	err := anon.Get("/sign/not-a-real-token").Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token should 404: %v", err)
	}

	_, err = anon.sign("not-a-real-token", "sig")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("signing with unknown token should 404: %v", err)
	}
}

func TestListSplitSheetsForTrack(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	track := importOneTrack(t, env, admin)

	req := splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 100})
	if _, err := admin.createSplitSheet(req); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createSplitSheet(req); err != nil {
		t.Fatal(err)
	}

	sheets, err := admin.listSplitSheets(track.Id.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(sheets))
	}
}

func TestSplitSheetsAreScopedToOwnCatalog(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	member, err := env.newUser("member")
	if err != nil {
		t.Fatal(err)
	}
	memberTrack := importOneTrack(t, env, member)

	req := splitSheetRequest(memberTrack.Id.String(), map[string]float64{"Ana": 100})
	if _, err := admin.createSplitSheet(req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("creating a sheet on another tenant's track should look like a missing track: %v", err)
	}

	if _, err := admin.listSplitSheets(memberTrack.Id.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("listing sheets for another tenant's track should look like a missing track: %v", err)
	}

	var count int64
	if result := env.db.Model(&schema.SplitSheet{}).Count(&count); result.Error != nil {
		t.Fatal(result.Error)
	}
	if count != 0 {
		t.Fatalf("expected no sheets persisted, found %d", count)
	}
}

func TestSplitSheetHiddenFromOtherAdmins(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	track := importOneTrack(t, env, admin)

	sheet, err := admin.createSplitSheet(splitSheetRequest(track.Id.String(), map[string]float64{"Ana": 100}))
	if err != nil {
		t.Fatal(err)
	}

	other, err := env.newUser("secondadmin")
	if err != nil {
		t.Fatal(err)
	}
	env.promoteToAdmin(t, "secondadmin")

	if _, err := other.getSplitSheet(sheet.Id.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("another admin should not see the sheet: %v", err)
	}
	if _, err := other.listSplitSheets(track.Id.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("another admin should not list sheets for the creator's track: %v", err)
	}

	if _, err := admin.getSplitSheet(sheet.Id.String()); err != nil {
		t.Fatalf("creator should still read the sheet: %v", err)
	}
}
