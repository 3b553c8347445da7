package voltgo

import "context"

// EventKind identifies a decoded gateway event. Kinds double as the typed
// registration names accepted by Client.Listen; matching is case-insensitive.
type EventKind string

const (
	// EventReady is emitted once per connection after the authentication
	// handshake completes and the initial entity snapshot is cached.
	EventReady EventKind = "ready"
	// EventMessage is emitted when a new message is posted.
	EventMessage EventKind = "message"
	// EventMessageUpdate is emitted when an existing message is edited.
	EventMessageUpdate EventKind = "message_update"
	// EventMessageDelete is emitted when a message is deleted.
	EventMessageDelete EventKind = "message_delete"
	// EventUserUpdate is emitted when a user's profile or presence changes.
	EventUserUpdate EventKind = "user_update"
	// EventChannelCreate is emitted when a channel becomes visible.
	EventChannelCreate EventKind = "channel_create"
	// EventChannelUpdate is emitted when a channel changes.
	EventChannelUpdate EventKind = "channel_update"
	// EventChannelDelete is emitted when a channel is deleted.
	EventChannelDelete EventKind = "channel_delete"
	// EventUnknown marks an envelope the decoder does not recognize. Unknown
	// envelopes are still delivered to raw handlers.
	EventUnknown EventKind = "unknown"
)

// Event is one decoded gateway event. The concrete type selects the payload;
// handlers type-switch on it.
type Event interface {
	// EventKind returns the kind tag for this event.
	EventKind() EventKind
}

// Handler processes one decoded event. Handler errors and panics are logged
// and swallowed at the dispatch boundary; they never reach the read loop.
type Handler func(ctx context.Context, event Event) error

// RawHandler processes one raw gateway envelope before typed decoding.
type RawHandler func(ctx context.Context, payload []byte) error

// ReadyEvent carries the initial entity snapshot for a session.
type ReadyEvent struct {
	// Self is the authenticated user.
	Self *User
	// Users lists users visible at connect time.
	Users []*User
	// Servers lists servers visible at connect time.
	Servers []*Server
	// Channels lists channels visible at connect time.
	Channels []*Channel
}

// EventKind implements Event.
func (*ReadyEvent) EventKind() EventKind { return EventReady }

// MessageEvent carries a newly posted message.
type MessageEvent struct {
	// Message is the created message snapshot.
	Message *Message
}

// EventKind implements Event.
func (*MessageEvent) EventKind() EventKind { return EventMessage }

// MessageUpdateEvent carries an edited message.
type MessageUpdateEvent struct {
	// Before is the pre-edit snapshot when it was still cached, else nil.
	Before *Message
	// Message is the post-edit snapshot.
	Message *Message
}

// EventKind implements Event.
func (*MessageUpdateEvent) EventKind() EventKind { return EventMessageUpdate }

// MessageDeleteEvent carries a message deletion.
type MessageDeleteEvent struct {
	// MessageID identifies the deleted message.
	MessageID EntityID
	// ChannelID identifies the channel the message was in.
	ChannelID EntityID
	// Message is the deleted snapshot when it was still cached, else nil.
	Message *Message
}

// EventKind implements Event.
func (*MessageDeleteEvent) EventKind() EventKind { return EventMessageDelete }

// UserUpdateEvent carries a replaced user snapshot.
type UserUpdateEvent struct {
	// User is the post-update snapshot.
	User *User
}

// EventKind implements Event.
func (*UserUpdateEvent) EventKind() EventKind { return EventUserUpdate }

// ChannelCreateEvent carries a newly visible channel.
type ChannelCreateEvent struct {
	// Channel is the created channel snapshot.
	Channel *Channel
}

// EventKind implements Event.
func (*ChannelCreateEvent) EventKind() EventKind { return EventChannelCreate }

// ChannelUpdateEvent carries a replaced channel snapshot.
type ChannelUpdateEvent struct {
	// Channel is the post-update snapshot.
	Channel *Channel
}

// EventKind implements Event.
func (*ChannelUpdateEvent) EventKind() EventKind { return EventChannelUpdate }

// ChannelDeleteEvent carries a channel deletion.
type ChannelDeleteEvent struct {
	// ChannelID identifies the deleted channel.
	ChannelID EntityID
	// Channel is the deleted snapshot when it was still cached, else nil.
	Channel *Channel
}

// EventKind implements Event.
func (*ChannelDeleteEvent) EventKind() EventKind { return EventChannelDelete }

// UnknownEvent wraps an envelope with an unrecognized type tag.
type UnknownEvent struct {
	// Type is the wire type tag as received.
	Type string
	// Raw is the complete envelope payload.
	Raw []byte
}

// EventKind implements Event.
func (*UnknownEvent) EventKind() EventKind { return EventUnknown }
