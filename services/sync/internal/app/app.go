package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"bugboard/pkg/discord"
	"bugboard/pkg/notify"
	"bugboard/pkg/queue"
	"bugboard/pkg/report"
	"bugboard/pkg/store"
)

// MessageSource abstracts the Discord API for fetch-based syncs.
type MessageSource interface {
	FetchRecent(ctx context.Context, channelIDs []string, limit int) ([]discord.Message, error)
}

// Archiver copies a screenshot into durable storage, returning the URL the
// bug should carry afterwards.
type Archiver interface {
	Archive(ctx context.Context, bugID, rawURL string) string
}

// Config holds runtime configuration.
type Config struct {
	DatabaseURL string
	Store       store.Store

	Source     MessageSource
	ChannelIDs []string
	FetchLimit int

	Archiver Archiver
	Notifier notify.Notifier
	Queue    *queue.RedisSyncQueue

	Logger *slog.Logger
}

// App runs the reconciliation pipeline over Discord bug-report channels.
type App struct {
	store      store.Store
	source     MessageSource
	reconciler *report.Reconciler
	archiver   Archiver
	notifier   notify.Notifier
	queue      *queue.RedisSyncQueue
	channelIDs []string
	fetchLimit int
	logger     *slog.Logger

	// Concurrent sync triggers for the same channels collapse into one run.
	runs singleflight.Group
}

// New constructs the sync service core.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("message source required")
	}
	if len(cfg.ChannelIDs) == 0 {
		return nil, fmt.Errorf("at least one channel id required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	fetchLimit := cfg.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = 100
	}
	return &App{
		store:      dataStore,
		source:     cfg.Source,
		reconciler: report.NewReconciler(dataStore, logger),
		archiver:   cfg.Archiver,
		notifier:   notifier,
		queue:      cfg.Queue,
		channelIDs: cfg.ChannelIDs,
		fetchLimit: fetchLimit,
		logger:     logger,
	}, nil
}

// RunSync fetches recent messages and reconciles them into the bug store.
// Concurrent callers asking for the same channel set share one run.
func (a *App) RunSync(ctx context.Context, params queue.SyncParams) (report.Summary, error) {
	channels := params.ChannelIDs
	if len(channels) == 0 {
		channels = a.channelIDs
	}
	limit := params.Limit
	if limit <= 0 {
		limit = a.fetchLimit
	}

	key := fmt.Sprintf("%s|%d", strings.Join(channels, ","), limit)
	value, err, _ := a.runs.Do(key, func() (any, error) {
		return a.runSyncOnce(ctx, channels, limit)
	})
	if err != nil {
		return report.Summary{}, err
	}
	return value.(report.Summary), nil
}

func (a *App) runSyncOnce(ctx context.Context, channels []string, limit int) (report.Summary, error) {
	a.logger.Info("sync run starting", "channels", len(channels), "limit", limit)

	msgs, err := a.source.FetchRecent(ctx, channels, limit)
	if err != nil {
		return report.Summary{}, fmt.Errorf("fetch messages: %w", err)
	}

	summary := a.reconciler.Reconcile(ctx, msgs)
	a.archiveScreenshots(ctx, summary)

	if err := a.notifier.RunCompleted(ctx, summary); err != nil {
		a.logger.Warn("run notification failed", "error", err)
	}

	a.logger.Info("sync run finished",
		"total", summary.Total,
		"processed", summary.Processed,
		"new", summary.NewBugs,
		"errors", summary.Errors,
	)
	return summary, nil
}

// archiveScreenshots moves CDN-hosted screenshots of touched bugs into our
// bucket. Only the served URL is rewritten; the source URL stays as observed
// on the message. A bug whose served URL already differs from its source was
// archived earlier and is skipped, so unchanged bugs cost nothing on repeat
// runs. Archive failures leave both URLs equal, which makes the next run
// retry. This never affects the run outcome.
func (a *App) archiveScreenshots(ctx context.Context, summary report.Summary) {
	if a.archiver == nil {
		return
	}
	for _, result := range summary.Results {
		if result.BugID == "" || result.Outcome == report.OutcomeError {
			continue
		}
		bug, ok, err := a.store.GetBug(ctx, result.BugID)
		if err != nil || !ok || bug.ScreenshotSourceURL == "" {
			continue
		}
		if bug.ScreenshotURL != bug.ScreenshotSourceURL {
			continue
		}
		archived := a.archiver.Archive(ctx, bug.ID, bug.ScreenshotSourceURL)
		if archived == bug.ScreenshotURL {
			continue
		}
		if _, err := a.store.Update(ctx, bug.ID, report.Patch{ScreenshotURL: &archived}); err != nil {
			a.logger.Warn("failed to persist archived screenshot", "bug_id", bug.ID, "error", err)
		}
	}
}

// EnqueueSync submits a background sync job. Without a queue it falls back
// to running inline and synthesizing a done job.
func (a *App) EnqueueSync(ctx context.Context, params queue.SyncParams) (queue.JobStatus, error) {
	if len(params.ChannelIDs) == 0 {
		params.ChannelIDs = a.channelIDs
	}
	if params.Limit <= 0 {
		params.Limit = a.fetchLimit
	}
	if a.queue != nil {
		return a.queue.Enqueue(ctx, params)
	}

	summary, err := a.RunSync(ctx, params)
	if err != nil {
		return queue.JobStatus{}, err
	}
	return queue.JobStatus{
		Status:  queue.StatusDone,
		Summary: &summary,
	}, nil
}

// JobStatus returns the state of a queued sync job.
func (a *App) JobStatus(ctx context.Context, jobID string) (queue.JobStatus, bool, error) {
	if a.queue == nil {
		return queue.JobStatus{}, false, errors.New("job queue not configured")
	}
	return a.queue.GetJob(ctx, jobID)
}

// StartWorkers begins consuming queued sync jobs, if a queue is configured.
func (a *App) StartWorkers(ctx context.Context, concurrency int) {
	if a.queue == nil {
		return
	}
	a.queue.Start(ctx, concurrency, a.RunSync)
}

// HandleWebhookMessage reconciles a single pushed message. Messages from
// channels outside the allowlist or from non-bot authors are ignored.
func (a *App) HandleWebhookMessage(ctx context.Context, msg discord.Message) (report.Summary, bool) {
	if !a.channelAllowed(msg.ChannelID) {
		a.logger.Debug("webhook message from unknown channel ignored", "channel_id", msg.ChannelID)
		return report.Summary{}, false
	}
	if !msg.Author.Bot {
		a.logger.Debug("webhook message from non-bot author ignored", "message_id", msg.ID)
		return report.Summary{}, false
	}
	summary := a.reconciler.Reconcile(ctx, []discord.Message{msg})
	a.archiveScreenshots(ctx, summary)
	return summary, true
}

func (a *App) channelAllowed(channelID string) bool {
	for _, id := range a.channelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}
