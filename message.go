package voltgo

import "time"

// Message is an immutable snapshot of a chat message, produced from gateway
// events and REST responses; the library never fabricates one on its own.
type Message struct {
	// ID is the message identifier.
	ID EntityID
	// ChannelID identifies the channel the message was sent in.
	ChannelID EntityID
	// AuthorID identifies the sending user.
	AuthorID EntityID
	// Content is the message text body when present.
	Content string
	// Attachments lists uploaded files on the message.
	Attachments []Attachment
	// EditedAt is the last edit time, nil for unedited messages.
	EditedAt *time.Time
	// Embeds lists rich embeds on the message.
	Embeds []Embed
	// MentionIDs lists mentioned user ids.
	MentionIDs []EntityID
	// ReplyIDs lists message ids this message replies to.
	ReplyIDs []EntityID
	// Masquerade overrides the displayed author, when set.
	Masquerade *Masquerade
}

// Embed is a rich content block attached to a message.
type Embed struct {
	// Type identifies the embed variant on the wire.
	Type string
	// URL is the embed target when present.
	URL string
	// Title is the embed title when present.
	Title string
	// Description is the embed body text when present.
	Description string
}

// Masquerade overrides the displayed name and avatar of a message author.
type Masquerade struct {
	// Name is the displayed author name.
	Name string
	// Avatar is the displayed avatar URL.
	Avatar string
	// Colour is the displayed name colour.
	Colour string
}
