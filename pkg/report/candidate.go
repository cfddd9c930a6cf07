package report

import (
	"time"

	"bugboard/pkg/discord"
	"bugboard/pkg/domain"
)

// defaultTitle is used when a report embed carries no title.
const defaultTitle = "Untitled Bug"

// BuildCandidate turns a structured report message into a bug ready for
// creation. The caller has already checked IsStructuredReport; the store
// assigns the record identity. Workflow status is derived from reactions
// here and nowhere else; priority always starts at MEDIUM.
func BuildCandidate(msg discord.Message) domain.Bug {
	embed, _ := msg.FirstEmbed()

	typeLabel, _ := FieldValue(embed.Fields, typeFieldName)

	title := embed.Title
	if title == "" {
		title = defaultTitle
	}

	createdAt := msg.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	bug := domain.Bug{
		Title:               title,
		Description:         embed.Description,
		Type:                CategoryFromLabel(typeLabel),
		Status:              StatusFromReactions(msg.Reactions),
		Priority:            domain.PriorityMedium,
		DiscordMessageID:    msg.ID,
		DiscordChannelID:    msg.ChannelID,
		Level:               optionalField(embed.Fields, "level"),
		PlayerPosition:      optionalField(embed.Fields, "player_position"),
		CameraPosition:      optionalField(embed.Fields, "camera_position"),
		CameraRotation:      optionalField(embed.Fields, "camera_rotation"),
		FPS:                 floatField(embed.Fields, "fps"),
		GPU:                 optionalField(embed.Fields, "gpu"),
		CPU:                 optionalField(embed.Fields, "cpu"),
		OS:                  optionalField(embed.Fields, "os"),
		RAMTotal:            optionalField(embed.Fields, "ram_total"),
		CurrentRAM:          optionalField(embed.Fields, "current_ram"),
		VRAM:                optionalField(embed.Fields, "vram"),
		CurrentVRAM:         optionalField(embed.Fields, "current_vram"),
		CustomData:          optionalField(embed.Fields, "custom_data"),
		ScreenshotURL:       msg.ImageURL(),
		ScreenshotSourceURL: msg.ImageURL(),
		CreatedAt:           createdAt,
	}

	if msg.Thread != nil && msg.Thread.ID != "" {
		threadID := msg.Thread.ID
		bug.DiscordThreadID = &threadID
	}

	if steamID, ok := ExtractSteamID(embed, msg.Content); ok {
		bug.SteamID = &steamID
	}

	return bug
}
