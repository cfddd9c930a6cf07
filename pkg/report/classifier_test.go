package report

import (
	"testing"

	"bugboard/pkg/discord"
	"bugboard/pkg/domain"
)

func TestIsStructuredReport(t *testing.T) {
	cases := []struct {
		name string
		msg  discord.Message
		want bool
	}{
		{
			name: "no embeds",
			msg:  discord.Message{Content: "anyone else seeing this?"},
			want: false,
		},
		{
			name: "embed without type field",
			msg: discord.Message{Embeds: []discord.Embed{{
				Title:  "random embed",
				Fields: []discord.EmbedField{{Name: "level", Value: "E01"}},
			}}},
			want: false,
		},
		{
			name: "embed with type field",
			msg: discord.Message{Embeds: []discord.Embed{{
				Fields: []discord.EmbedField{{Name: "type", Value: "gameplay"}},
			}}},
			want: true,
		},
		{
			name: "type field only on second embed",
			msg: discord.Message{Embeds: []discord.Embed{
				{Title: "preview"},
				{Fields: []discord.EmbedField{{Name: "type", Value: "gameplay"}}},
			}},
			want: false,
		},
		{
			name: "type field with empty value still counts",
			msg: discord.Message{Embeds: []discord.Embed{{
				Fields: []discord.EmbedField{{Name: "type", Value: ""}},
			}}},
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsStructuredReport(tc.msg); got != tc.want {
				t.Fatalf("IsStructuredReport = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCategoryFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  domain.BugType
	}{
		{"gameplay", domain.TypeBug},
		{"Gameplay", domain.TypeBug},
		{"  GAMEPLAY  ", domain.TypeBug},
		{"bug", domain.TypeBug},
		{"Bug", domain.TypeBug},
		{"gameideas", domain.TypeFeature},
		{"feature", domain.TypeFeature},
		{"ui", domain.TypeImprovement},
		{"improvement", domain.TypeImprovement},
		{"performance", domain.TypeTask},
		{"task", domain.TypeTask},
		{"Audio", domain.TypeOther},
		{"", domain.TypeOther},
		{"glitch", domain.TypeOther},
	}
	for _, tc := range cases {
		if got := CategoryFromLabel(tc.label); got != tc.want {
			t.Fatalf("CategoryFromLabel(%q) = %q, want %q", tc.label, got, tc.want)
		}
	}
}
