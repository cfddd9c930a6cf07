package report

import (
	"regexp"
	"strings"

	"bugboard/pkg/discord"
)

// steamIDPrefix is shared by all 64-bit Steam account identifiers.
const steamIDPrefix = "765"

// steamIDFieldNames are the embed fields that may carry a player identifier,
// checked in order of how trustworthy their content tends to be.
var steamIDFieldNames = []string{
	"steam_id",
	"steamid",
	"steam",
	"player_id",
	"user_id",
	"userid",
	"owner",
}

// steamIDPatterns are tried in order against each text source. Labeled forms
// first, a bare 17-digit run last. \b keeps a 17-digit window from matching
// inside a longer digit run.
var steamIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)owner:\s*(\d{17})\b`),
	regexp.MustCompile(`(?i)steam\s?id:\s*(\d{17})\b`),
	regexp.MustCompile(`(?i)player:\s*(\d{17})\b`),
	regexp.MustCompile(`(?i)user:\s*(\d{17})\b`),
	regexp.MustCompile(`\b(\d{17})\b`),
}

var steamIDCleaner = strings.NewReplacer("<", "", ">", "", "@", "")

// ExtractSteamID scans a report for something resembling a Steam 64-bit id.
// The search is a best-effort cascade, widening its scope only when narrower
// sources fail, and returns on the first hit:
//
//  1. each known identifier field, in order — canonical token search first,
//     then the raw field value (stripped of <, > and @) as a last resort
//  2. the embed description
//  3. every embed field value, regardless of name
//  4. the raw message body
//
// The step-1 fallback can surface a non-canonical value when an identifier
// field exists but holds no 17-digit token. That matches the historical
// ingestion behavior; downstream consumers tolerate such values.
func ExtractSteamID(embed discord.Embed, messageBody string) (string, bool) {
	for _, name := range steamIDFieldNames {
		value, ok := FieldValue(embed.Fields, name)
		if !ok || value == "" {
			continue
		}
		if id, found := scanSteamID(value); found {
			return id, true
		}
		if cleaned := strings.TrimSpace(steamIDCleaner.Replace(value)); cleaned != "" {
			return cleaned, true
		}
	}

	if id, found := scanSteamID(embed.Description); found {
		return id, true
	}

	for _, field := range embed.Fields {
		if id, found := scanSteamID(field.Value); found {
			return id, true
		}
	}

	if id, found := scanSteamID(messageBody); found {
		return id, true
	}

	return "", false
}

// scanSteamID runs the pattern cascade over one text source and returns the
// first 17-digit token carrying the Steam prefix.
func scanSteamID(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, pattern := range steamIDPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			token := match[1]
			if strings.HasPrefix(token, steamIDPrefix) {
				return token, true
			}
		}
	}
	return "", false
}
