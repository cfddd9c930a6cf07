package domain

import "time"

type BugType string

const (
	TypeBug         BugType = "Bug"
	TypeFeature     BugType = "Feature"
	TypeImprovement BugType = "Improvement"
	TypeTask        BugType = "Task"
	TypeOther       BugType = "Other"
)

type BugStatus string

const (
	StatusNew                BugStatus = "NEW"
	StatusInProgress         BugStatus = "IN_PROGRESS"
	StatusTesting            BugStatus = "TESTING"
	StatusReadyToRelease     BugStatus = "READY_TO_RELEASE"
	StatusClosed             BugStatus = "CLOSED"
	StatusRequiresDiscussion BugStatus = "REQUIRES_DISCUSSION"
	StatusOutdated           BugStatus = "OUTDATED"
)

type BugPriority string

const (
	PriorityLow      BugPriority = "LOW"
	PriorityMedium   BugPriority = "MEDIUM"
	PriorityHigh     BugPriority = "HIGH"
	PriorityCritical BugPriority = "CRITICAL"
)

// Bug is a tracked report. Records created by the Discord pipeline carry the
// source message id as their unique external key; telemetry fields are pointers
// because absent and zero are different things (a missing fps is not 0 fps).
type Bug struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        BugType     `json:"type"`
	Status      BugStatus   `json:"status"`
	Priority    BugPriority `json:"priority"`

	AssignedToID *string `json:"assignedToId,omitempty"`

	DiscordMessageID string  `json:"discordMessageId"`
	DiscordChannelID string  `json:"discordChannelId"`
	DiscordThreadID  *string `json:"discordThreadId,omitempty"`

	SteamID *string `json:"steamId,omitempty"`

	Level          *string  `json:"level,omitempty"`
	PlayerPosition *string  `json:"playerPosition,omitempty"`
	CameraPosition *string  `json:"cameraPosition,omitempty"`
	CameraRotation *string  `json:"cameraRotation,omitempty"`
	FPS            *float64 `json:"fps,omitempty"`
	GPU            *string  `json:"gpu,omitempty"`
	CPU            *string  `json:"cpu,omitempty"`
	OS             *string  `json:"os,omitempty"`
	RAMTotal       *string  `json:"ramTotal,omitempty"`
	CurrentRAM     *string  `json:"currentRam,omitempty"`
	VRAM           *string  `json:"vram,omitempty"`
	CurrentVRAM    *string  `json:"currentVram,omitempty"`
	CustomData     *string  `json:"customData,omitempty"`

	// ScreenshotURL is what the tracker serves; ScreenshotSourceURL is the
	// attachment URL as last observed on the message. They differ once the
	// screenshot has been archived into our own bucket, and sync merges
	// compare against the source so archiving never looks like new input.
	ScreenshotURL       string `json:"screenshotUrl,omitempty"`
	ScreenshotSourceURL string `json:"screenshotSourceUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasSteamID reports whether a steam identifier is attached.
func (b Bug) HasSteamID() bool {
	return b.SteamID != nil && *b.SteamID != ""
}
