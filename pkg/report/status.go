package report

import (
	"strings"

	"bugboard/pkg/discord"
	"bugboard/pkg/domain"
)

// statusGroups are evaluated in priority order; the first group with any
// reaction count > 0 wins, regardless of how many people used a lower group.
// Each group lists the unicode glyph and its canonical text name.
var statusGroups = []struct {
	status domain.BugStatus
	emoji  []string
}{
	{domain.StatusClosed, []string{"✅", "white_check_mark"}},
	{domain.StatusRequiresDiscussion, []string{"‼️", "bangbang"}},
	{domain.StatusOutdated, []string{"❌", "❎", "x"}},
}

// StatusFromReactions derives the initial workflow status of a report from
// its emoji reactions. Unrecognized reactions leave the status at NEW. This
// is only consulted at record creation; reactions added later do not feed
// back into an already-persisted record.
func StatusFromReactions(reactions []discord.Reaction) domain.BugStatus {
	for _, group := range statusGroups {
		for _, reaction := range reactions {
			if reaction.Count <= 0 {
				continue
			}
			if emojiMatches(reaction.Emoji.Name, group.emoji) {
				return group.status
			}
		}
	}
	return domain.StatusNew
}

func emojiMatches(name string, candidates []string) bool {
	lowered := strings.ToLower(name)
	for _, candidate := range candidates {
		if lowered == candidate || name == candidate {
			return true
		}
	}
	return false
}
