package report

import (
	"context"
	"log/slog"
	"time"

	"bugboard/pkg/discord"
	"bugboard/pkg/domain"
)

// RecordStore is the slice of bug persistence the reconciler needs.
type RecordStore interface {
	FindByMessageID(ctx context.Context, messageID string) (domain.Bug, bool, error)
	Create(ctx context.Context, bug domain.Bug) (domain.Bug, error)
	Update(ctx context.Context, id string, patch Patch) (domain.Bug, error)
}

// Patch carries the fields the pipeline is allowed to merge into an existing
// record. Nil means "leave untouched"; a pointer to "" clears the value.
type Patch struct {
	SteamID             *string
	ScreenshotURL       *string
	ScreenshotSourceURL *string
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.SteamID == nil && p.ScreenshotURL == nil && p.ScreenshotSourceURL == nil
}

// Per-message reconciliation outcomes. The strings are part of the sync
// summary payload consumed by the dashboard.
const (
	OutcomeCreated             = "created"
	OutcomeExisting            = "existing"
	OutcomeExistingNoSteam     = "existing, no steam id"
	OutcomeUpdatedSteamID      = "updated with steam id"
	OutcomeUpdatedImage        = "updated image"
	OutcomeUpdatedSteamIDImage = "updated with steam id and image"
	OutcomeError               = "error"
)

// Result records what happened to a single message.
type Result struct {
	MessageID string `json:"messageId"`
	Title     string `json:"title"`
	Outcome   string `json:"outcome"`
	BugID     string `json:"bugId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Summary aggregates one reconciliation run.
type Summary struct {
	Total              int       `json:"total"`
	Processed          int       `json:"processed"`
	NewBugs            int       `json:"newBugs"`
	ExistingBugs       int       `json:"existingBugs"`
	UpdatedWithSteamID int       `json:"updatedWithSteamId"`
	UpdatedImages      int       `json:"updatedImages"`
	Errors             int       `json:"errors"`
	Timestamp          time.Time `json:"timestamp"`
	Results            []Result  `json:"results"`
}

// Clean reports whether the run finished without per-message failures.
func (s Summary) Clean() bool {
	return s.Errors == 0
}

// Reconciler applies batches of Discord messages to the bug store with
// create-or-merge semantics keyed on the source message id.
type Reconciler struct {
	store  RecordStore
	logger *slog.Logger
}

func NewReconciler(store RecordStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile processes messages strictly in batch order. Each message is a
// read-then-conditionally-write against the store, so messages are never
// handled concurrently; duplicate protection across concurrent runs is left
// to the store's unique constraint on the message id. A failure on one
// message is recorded and never aborts the rest of the batch.
func (r *Reconciler) Reconcile(ctx context.Context, msgs []discord.Message) Summary {
	summary := Summary{}

	for _, msg := range msgs {
		summary.Total++
		if !IsStructuredReport(msg) {
			continue
		}

		result := r.reconcileMessage(ctx, msg)
		summary.Results = append(summary.Results, result)
		summary.Processed++

		switch result.Outcome {
		case OutcomeCreated:
			summary.NewBugs++
		case OutcomeExisting, OutcomeExistingNoSteam:
			summary.ExistingBugs++
		case OutcomeUpdatedSteamID:
			summary.UpdatedWithSteamID++
		case OutcomeUpdatedImage:
			summary.UpdatedImages++
		case OutcomeUpdatedSteamIDImage:
			summary.UpdatedWithSteamID++
			summary.UpdatedImages++
		case OutcomeError:
			summary.Errors++
			r.logger.WarnContext(ctx, "message reconciliation failed",
				"message_id", result.MessageID, "err", result.Error)
		}
	}

	summary.Timestamp = time.Now().UTC()
	return summary
}

func (r *Reconciler) reconcileMessage(ctx context.Context, msg discord.Message) Result {
	embed, _ := msg.FirstEmbed()
	title := embed.Title
	if title == "" {
		title = defaultTitle
	}

	existing, found, err := r.store.FindByMessageID(ctx, msg.ID)
	if err != nil {
		return Result{MessageID: msg.ID, Title: title, Outcome: OutcomeError, Error: err.Error()}
	}

	if found {
		return r.mergeExisting(ctx, msg, embed, existing)
	}

	created, err := r.store.Create(ctx, BuildCandidate(msg))
	if err != nil {
		return Result{MessageID: msg.ID, Title: title, Outcome: OutcomeError, Error: err.Error()}
	}
	return Result{MessageID: msg.ID, Title: created.Title, Outcome: OutcomeCreated, BugID: created.ID}
}

// mergeExisting fills in a missing steam id and refreshes the screenshot URL.
// The steam id is re-derived from the message rather than trusted from any
// earlier pass, which keeps repeated runs over the same batch idempotent; it
// is only ever filled in, never overwritten or cleared. The screenshot is
// last-write-wins whenever the observed attachment URL differs from the
// stored source URL. Comparing against the source rather than the served URL
// keeps records whose screenshot was archived into our own bucket from
// reading as changed on every run.
func (r *Reconciler) mergeExisting(ctx context.Context, msg discord.Message, embed discord.Embed, existing domain.Bug) Result {
	var patch Patch
	steamChanged := false
	imageChanged := false

	if !existing.HasSteamID() {
		if steamID, ok := ExtractSteamID(embed, msg.Content); ok {
			patch.SteamID = &steamID
			steamChanged = true
		}
	}

	if imageURL := msg.ImageURL(); imageURL != existing.ScreenshotSourceURL {
		patch.ScreenshotURL = &imageURL
		patch.ScreenshotSourceURL = &imageURL
		imageChanged = true
	}

	result := Result{MessageID: msg.ID, Title: existing.Title, BugID: existing.ID}

	if patch.IsEmpty() {
		if existing.HasSteamID() {
			result.Outcome = OutcomeExisting
		} else {
			result.Outcome = OutcomeExistingNoSteam
		}
		return result
	}

	updated, err := r.store.Update(ctx, existing.ID, patch)
	if err != nil {
		return Result{MessageID: msg.ID, Title: existing.Title, Outcome: OutcomeError, Error: err.Error()}
	}

	result.BugID = updated.ID
	switch {
	case steamChanged && imageChanged:
		result.Outcome = OutcomeUpdatedSteamIDImage
	case steamChanged:
		result.Outcome = OutcomeUpdatedSteamID
	default:
		result.Outcome = OutcomeUpdatedImage
	}
	return result
}
