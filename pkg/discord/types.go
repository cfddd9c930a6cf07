package discord

import "time"

// Message is the slice of the Discord message payload the pipeline consumes.
// The pipeline never touches client-library objects, only these value types,
// so extraction logic can be unit tested without a live connection.
type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Embeds    []Embed    `json:"embeds"`
	Reactions []Reaction `json:"reactions,omitempty"`
	Thread    *Thread    `json:"thread,omitempty"`
	Author    Author     `json:"author"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedImage struct {
	URL         string `json:"url"`
	ProxyURL    string `json:"proxy_url,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type Reaction struct {
	Emoji Emoji `json:"emoji"`
	Count int   `json:"count"`
}

// Emoji identifies a reaction emoji. Name holds the unicode glyph for builtin
// emoji and the custom emoji name otherwise; ID is set for custom emoji only.
type Emoji struct {
	Name string  `json:"name"`
	ID   *string `json:"id"`
}

type Thread struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// FirstEmbed returns the leading embed, if any.
func (m Message) FirstEmbed() (Embed, bool) {
	if len(m.Embeds) == 0 {
		return Embed{}, false
	}
	return m.Embeds[0], true
}

// ImageURL returns the screenshot URL carried by the first embed, or "".
func (m Message) ImageURL() string {
	embed, ok := m.FirstEmbed()
	if !ok || embed.Image == nil {
		return ""
	}
	return embed.Image.URL
}
