package report

import (
	"context"
	"fmt"
	"testing"

	"bugboard/pkg/discord"
	"bugboard/pkg/domain"
)

// fakeStore is a minimal RecordStore with per-message error injection and
// call counting, so merge behavior can be pinned down precisely.
type fakeStore struct {
	byMessage map[string]domain.Bug
	nextID    int

	failCreateFor map[string]bool
	updateCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byMessage:     make(map[string]domain.Bug),
		failCreateFor: make(map[string]bool),
	}
}

func (f *fakeStore) FindByMessageID(_ context.Context, messageID string) (domain.Bug, bool, error) {
	bug, ok := f.byMessage[messageID]
	return bug, ok, nil
}

func (f *fakeStore) Create(_ context.Context, bug domain.Bug) (domain.Bug, error) {
	if f.failCreateFor[bug.DiscordMessageID] {
		return domain.Bug{}, fmt.Errorf("insert failed")
	}
	f.nextID++
	bug.ID = fmt.Sprintf("bug-%d", f.nextID)
	f.byMessage[bug.DiscordMessageID] = bug
	return bug, nil
}

func (f *fakeStore) Update(_ context.Context, id string, patch Patch) (domain.Bug, error) {
	f.updateCalls++
	for messageID, bug := range f.byMessage {
		if bug.ID != id {
			continue
		}
		if patch.SteamID != nil {
			steamID := *patch.SteamID
			bug.SteamID = &steamID
		}
		if patch.ScreenshotURL != nil {
			bug.ScreenshotURL = *patch.ScreenshotURL
		}
		if patch.ScreenshotSourceURL != nil {
			bug.ScreenshotSourceURL = *patch.ScreenshotSourceURL
		}
		f.byMessage[messageID] = bug
		return bug, nil
	}
	return domain.Bug{}, fmt.Errorf("bug %s not found", id)
}

func reportMsg(id string, fieldPairs ...string) discord.Message {
	embedFields := []discord.EmbedField{{Name: "type", Value: "gameplay"}}
	for i := 0; i+1 < len(fieldPairs); i += 2 {
		embedFields = append(embedFields, discord.EmbedField{Name: fieldPairs[i], Value: fieldPairs[i+1]})
	}
	return discord.Message{
		ID:        id,
		ChannelID: "chan-1",
		Embeds:    []discord.Embed{{Title: "Report " + id, Fields: embedFields}},
	}
}

func withImage(msg discord.Message, url string) discord.Message {
	msg.Embeds[0].Image = &discord.EmbedImage{URL: url}
	return msg
}

func TestReconcileSkipsChatter(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	summary := r.Reconcile(context.Background(), []discord.Message{
		{ID: "chat-1", Content: "gm"},
		reportMsg("msg-1"),
		{ID: "chat-2", Embeds: []discord.Embed{{Title: "no type field"}}},
	})

	if summary.Total != 3 {
		t.Fatalf("total = %d", summary.Total)
	}
	if summary.Processed != 1 || summary.NewBugs != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Results) != 1 || summary.Results[0].Outcome != OutcomeCreated {
		t.Fatalf("results = %+v", summary.Results)
	}
}

func TestReconcileSecondPassIsIdempotent(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)
	batch := []discord.Message{reportMsg("msg-1", "steam_id", validSteamID)}

	first := r.Reconcile(context.Background(), batch)
	if first.NewBugs != 1 {
		t.Fatalf("first pass = %+v", first)
	}

	second := r.Reconcile(context.Background(), batch)
	if second.NewBugs != 0 || second.ExistingBugs != 1 || second.Errors != 0 {
		t.Fatalf("second pass = %+v", second)
	}
	if second.Results[0].Outcome != OutcomeExisting {
		t.Fatalf("outcome = %q", second.Results[0].Outcome)
	}
	if store.updateCalls != 0 {
		t.Fatalf("unchanged record should not be written, got %d updates", store.updateCalls)
	}
}

func TestReconcileFillsMissingSteamID(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	r.Reconcile(context.Background(), []discord.Message{reportMsg("msg-1")})
	if bug := store.byMessage["msg-1"]; bug.SteamID != nil {
		t.Fatalf("precondition: bug should have no steam id")
	}

	// The same message now carries an id, e.g. after an edit.
	summary := r.Reconcile(context.Background(), []discord.Message{
		reportMsg("msg-1", "steam_id", validSteamID),
	})
	if summary.Results[0].Outcome != OutcomeUpdatedSteamID {
		t.Fatalf("outcome = %q", summary.Results[0].Outcome)
	}
	if summary.UpdatedWithSteamID != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	bug := store.byMessage["msg-1"]
	if bug.SteamID == nil || *bug.SteamID != validSteamID {
		t.Fatalf("steam id = %v", bug.SteamID)
	}
}

func TestReconcileNeverOverwritesSteamID(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	r.Reconcile(context.Background(), []discord.Message{reportMsg("msg-1", "steam_id", validSteamID)})

	summary := r.Reconcile(context.Background(), []discord.Message{
		reportMsg("msg-1", "steam_id", "76561198000000001"),
	})
	if summary.Results[0].Outcome != OutcomeExisting {
		t.Fatalf("outcome = %q", summary.Results[0].Outcome)
	}
	bug := store.byMessage["msg-1"]
	if bug.SteamID == nil || *bug.SteamID != validSteamID {
		t.Fatalf("stored steam id changed: %v", bug.SteamID)
	}
}

func TestReconcileExistingWithoutSteamID(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	r.Reconcile(context.Background(), []discord.Message{reportMsg("msg-1")})
	summary := r.Reconcile(context.Background(), []discord.Message{reportMsg("msg-1")})
	if summary.Results[0].Outcome != OutcomeExistingNoSteam {
		t.Fatalf("outcome = %q", summary.Results[0].Outcome)
	}
	if summary.ExistingBugs != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestReconcileRefreshesScreenshot(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	r.Reconcile(context.Background(), []discord.Message{
		withImage(reportMsg("msg-1", "steam_id", validSteamID), "https://cdn/v1.png"),
	})

	summary := r.Reconcile(context.Background(), []discord.Message{
		withImage(reportMsg("msg-1", "steam_id", validSteamID), "https://cdn/v2.png"),
	})
	if summary.Results[0].Outcome != OutcomeUpdatedImage {
		t.Fatalf("outcome = %q", summary.Results[0].Outcome)
	}
	if got := store.byMessage["msg-1"].ScreenshotURL; got != "https://cdn/v2.png" {
		t.Fatalf("screenshot = %q", got)
	}
}

func TestReconcileLeavesArchivedScreenshotAlone(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)
	batch := []discord.Message{
		withImage(reportMsg("msg-1", "steam_id", validSteamID), "https://cdn/v1.png"),
	}

	r.Reconcile(context.Background(), batch)

	// The screenshot was copied into our bucket after the first run. The
	// served URL diverges from the source, but the message itself has not
	// changed, so the next run must not touch the record.
	bug := store.byMessage["msg-1"]
	bug.ScreenshotURL = "https://objects.local/bugs/" + bug.ID
	store.byMessage["msg-1"] = bug
	store.updateCalls = 0

	summary := r.Reconcile(context.Background(), batch)
	if summary.Results[0].Outcome != OutcomeExisting {
		t.Fatalf("outcome = %q", summary.Results[0].Outcome)
	}
	if summary.UpdatedImages != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if store.updateCalls != 0 {
		t.Fatalf("archived record should not be rewritten, got %d updates", store.updateCalls)
	}
	if got := store.byMessage["msg-1"].ScreenshotURL; got != "https://objects.local/bugs/"+bug.ID {
		t.Fatalf("archived url lost: %q", got)
	}
}

func TestReconcileClearsRemovedScreenshot(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	r.Reconcile(context.Background(), []discord.Message{
		withImage(reportMsg("msg-1", "steam_id", validSteamID), "https://cdn/v1.png"),
	})

	// Attachment deleted on the Discord side: observed value is now "".
	summary := r.Reconcile(context.Background(), []discord.Message{
		reportMsg("msg-1", "steam_id", validSteamID),
	})
	if summary.Results[0].Outcome != OutcomeUpdatedImage {
		t.Fatalf("outcome = %q", summary.Results[0].Outcome)
	}
	if got := store.byMessage["msg-1"].ScreenshotURL; got != "" {
		t.Fatalf("screenshot should be cleared, got %q", got)
	}
}

func TestReconcileUpdatesSteamIDAndImageTogether(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	r.Reconcile(context.Background(), []discord.Message{reportMsg("msg-1")})

	summary := r.Reconcile(context.Background(), []discord.Message{
		withImage(reportMsg("msg-1", "steam_id", validSteamID), "https://cdn/v1.png"),
	})
	if summary.Results[0].Outcome != OutcomeUpdatedSteamIDImage {
		t.Fatalf("outcome = %q", summary.Results[0].Outcome)
	}
	if summary.UpdatedWithSteamID != 1 || summary.UpdatedImages != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if store.updateCalls != 1 {
		t.Fatalf("both fields should merge in one write, got %d", store.updateCalls)
	}
}

func TestReconcileIsolatesPerMessageFailures(t *testing.T) {
	store := newFakeStore()
	store.failCreateFor["msg-2"] = true
	r := NewReconciler(store, nil)

	summary := r.Reconcile(context.Background(), []discord.Message{
		reportMsg("msg-1"),
		reportMsg("msg-2"),
		reportMsg("msg-3"),
	})

	if summary.Processed != 3 || summary.Errors != 1 || summary.NewBugs != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Clean() {
		t.Fatalf("summary with errors must not be clean")
	}
	outcomes := make([]string, 0, len(summary.Results))
	for _, result := range summary.Results {
		outcomes = append(outcomes, result.Outcome)
	}
	want := []string{OutcomeCreated, OutcomeError, OutcomeCreated}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("outcomes = %v, want %v", outcomes, want)
		}
	}
	if summary.Results[1].Error == "" {
		t.Fatalf("failed result should carry the error message")
	}
}

func TestReconcileUsesDefaultTitleInResults(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, nil)

	msg := discord.Message{
		ID:     "msg-1",
		Embeds: []discord.Embed{{Fields: []discord.EmbedField{{Name: "type", Value: "gameplay"}}}},
	}
	summary := r.Reconcile(context.Background(), []discord.Message{msg})
	if summary.Results[0].Title != "Untitled Bug" {
		t.Fatalf("title = %q", summary.Results[0].Title)
	}
}
