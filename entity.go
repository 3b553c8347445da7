package voltgo

import (
	"fmt"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

// EntityID is a service-assigned entity identifier: a 26-character ULID over
// the restricted alphabet 0-9A-HJKMNP-TV-Z, sortable by creation time.
type EntityID string

var idPattern = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

// LooksLikeID reports whether raw has the shape of an EntityID. It is used to
// tell an identifier apart from a display name in convenience lookups.
func LooksLikeID(raw string) bool {
	return idPattern.MatchString(raw)
}

// Valid reports whether the identifier has the service id shape.
func (id EntityID) Valid() bool {
	return LooksLikeID(string(id))
}

// Time extracts the creation timestamp encoded in the identifier.
func (id EntityID) Time() (time.Time, error) {
	parsed, err := ulid.Parse(string(id))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse entity id %q: %w", id, err)
	}

	return ulid.Time(parsed.Time()).UTC(), nil
}

// User is an immutable snapshot of a service user. Update events replace the
// cached value for an id; fields are never mutated in place.
type User struct {
	// ID is the user identifier.
	ID EntityID
	// Username is the unique account name.
	Username string
	// Avatar is the user's avatar attachment when set.
	Avatar *Attachment
	// Badges is the service badge bitfield.
	Badges int
	// Online reports last known presence.
	Online bool
	// Bot reports whether the account is automated.
	Bot bool
	// OwnerID identifies the owning account for bot users.
	OwnerID EntityID
}

// ChannelType identifies a channel variant.
type ChannelType string

const (
	// ChannelTypeText is a server text channel.
	ChannelTypeText ChannelType = "text"
	// ChannelTypeVoice is a server voice channel.
	ChannelTypeVoice ChannelType = "voice"
	// ChannelTypeDirect is a two-party direct message channel.
	ChannelTypeDirect ChannelType = "direct"
	// ChannelTypeGroup is a multi-party group channel.
	ChannelTypeGroup ChannelType = "group"
	// ChannelTypeSaved is the per-user saved messages channel.
	ChannelTypeSaved ChannelType = "saved"
)

// Channel is an immutable snapshot of a channel.
type Channel struct {
	// ID is the channel identifier.
	ID EntityID
	// Type is the channel variant.
	Type ChannelType
	// ServerID identifies the owning server for server channels.
	ServerID EntityID
	// Name is the channel display name.
	Name string
	// Description is the channel topic when set.
	Description string
	// RecipientIDs lists member ids for direct and group channels.
	RecipientIDs []EntityID
	// LastMessageID identifies the newest known message in the channel.
	LastMessageID EntityID
}

// Server is an immutable snapshot of a server.
type Server struct {
	// ID is the server identifier.
	ID EntityID
	// OwnerID identifies the owning user.
	OwnerID EntityID
	// Name is the server display name.
	Name string
	// Description is the server description when set.
	Description string
	// ChannelIDs lists the server's channels.
	ChannelIDs []EntityID
}

// Attachment is uploaded file metadata referenced by messages and avatars.
type Attachment struct {
	// ID is the file identifier on the storage service.
	ID string
	// Tag is the storage bucket tag.
	Tag string
	// Filename is the original file name.
	Filename string
	// ContentType is the declared MIME type.
	ContentType string
	// Size is the file size in bytes.
	Size int64
}
