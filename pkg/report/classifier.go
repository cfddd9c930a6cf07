package report

import (
	"strings"

	"bugboard/pkg/discord"
	"bugboard/pkg/domain"
)

// typeFieldName is the embed field that marks a message as a structured report.
const typeFieldName = "type"

// categoryLabels maps normalized report-type labels to bug categories. Labels
// come from the in-game reporter ("gameplay", "gameideas", ...) as well as the
// generic tracker vocabulary; anything unrecognized falls through to Other.
var categoryLabels = map[string]domain.BugType{
	"gameplay":    domain.TypeBug,
	"bug":         domain.TypeBug,
	"gameideas":   domain.TypeFeature,
	"feature":     domain.TypeFeature,
	"ui":          domain.TypeImprovement,
	"improvement": domain.TypeImprovement,
	"performance": domain.TypeTask,
	"task":        domain.TypeTask,
}

// IsStructuredReport reports whether the message carries a machine-generated
// bug report: at least one embed whose first embed has a "type" field.
// Anything else is ordinary chatter and is skipped without error.
func IsStructuredReport(msg discord.Message) bool {
	embed, ok := msg.FirstEmbed()
	if !ok {
		return false
	}
	_, ok = FieldValue(embed.Fields, typeFieldName)
	return ok
}

// CategoryFromLabel normalizes a free-text type label to a bug category.
// Matching is case-insensitive and total: unknown labels degrade to Other.
func CategoryFromLabel(label string) domain.BugType {
	if category, ok := categoryLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return category
	}
	return domain.TypeOther
}
