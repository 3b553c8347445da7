package voltgo

import (
	"encoding/json"
	"strings"
	"time"
)

// decoder translates raw gateway envelopes into typed events, mutating the
// session store along the way. It runs only on the connection's read loop, so
// store writes are single-writer by construction.
type decoder struct {
	store *Store
}

func newDecoder(store *Store) *decoder {
	return &decoder{store: store}
}

// decode maps one envelope to a typed event. Unrecognized type tags yield an
// *UnknownEvent and no error; malformed known envelopes yield a *DecodeError
// scoped to that single envelope.
func (d *decoder) decode(envelopeType string, payload []byte) (Event, error) {
	switch strings.ToLower(envelopeType) {
	case "ready":
		return d.decodeReady(payload)
	case "message":
		return d.decodeMessage(payload)
	case "messageupdate":
		return d.decodeMessageUpdate(payload)
	case "messagedelete":
		return d.decodeMessageDelete(payload)
	case "userupdate":
		return d.decodeUserUpdate(payload)
	case "channelcreate":
		return d.decodeChannelCreate(payload)
	case "channelupdate":
		return d.decodeChannelUpdate(payload)
	case "channeldelete":
		return d.decodeChannelDelete(payload)
	default:
		return &UnknownEvent{Type: envelopeType, Raw: payload}, nil
	}
}

func (d *decoder) decodeReady(payload []byte) (Event, error) {
	var parsed wireReady
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "Ready", Reason: "malformed payload", Err: err}
	}

	event := &ReadyEvent{
		Users:    make([]*User, 0, len(parsed.Users)),
		Servers:  make([]*Server, 0, len(parsed.Servers)),
		Channels: make([]*Channel, 0, len(parsed.Channels)),
	}

	for _, rawUser := range parsed.Users {
		user := decodeWireUser(rawUser)
		if user == nil {
			continue
		}
		d.store.PutUser(user)
		event.Users = append(event.Users, user)
	}
	for _, rawServer := range parsed.Servers {
		server := decodeWireServer(rawServer)
		if server == nil {
			continue
		}
		d.store.PutServer(server)
		event.Servers = append(event.Servers, server)
	}
	for _, rawChannel := range parsed.Channels {
		channel := decodeWireChannel(rawChannel)
		if channel == nil {
			continue
		}
		d.store.PutChannel(channel)
		event.Channels = append(event.Channels, channel)
	}

	if self, known := d.store.Self(); known {
		event.Self = self
	}

	return event, nil
}

func (d *decoder) decodeMessage(payload []byte) (Event, error) {
	var parsed wireMessage
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "Message", Reason: "malformed payload", Err: err}
	}
	message := decodeWireMessage(parsed)
	if message == nil {
		return nil, &DecodeError{Type: "Message", Reason: "missing _id, channel, or author"}
	}

	d.store.PutMessage(message)
	d.bumpChannelLastMessage(message.ChannelID, message.ID)

	return &MessageEvent{Message: message}, nil
}

func (d *decoder) decodeMessageUpdate(payload []byte) (Event, error) {
	var parsed wireMessageUpdate
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "MessageUpdate", Reason: "malformed payload", Err: err}
	}
	if parsed.ID == "" {
		return nil, &DecodeError{Type: "MessageUpdate", Reason: "missing id"}
	}

	before, cached := d.store.Message(EntityID(parsed.ID))

	var after Message
	if cached {
		after = *before
	} else {
		// Dependency lost to eviction or ordering; degrade to the partial
		// data rather than dropping the event.
		after = Message{ID: EntityID(parsed.ID), ChannelID: EntityID(parsed.Channel)}
	}
	applyMessageUpdate(&after, parsed.Data)

	d.store.PutMessage(&after)

	event := &MessageUpdateEvent{Message: &after}
	if cached {
		event.Before = before
	}

	return event, nil
}

func (d *decoder) decodeMessageDelete(payload []byte) (Event, error) {
	var parsed wireMessageDelete
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "MessageDelete", Reason: "malformed payload", Err: err}
	}
	if parsed.ID == "" {
		return nil, &DecodeError{Type: "MessageDelete", Reason: "missing id"}
	}

	messageID := EntityID(parsed.ID)
	event := &MessageDeleteEvent{
		MessageID: messageID,
		ChannelID: EntityID(parsed.Channel),
	}
	if cached, exists := d.store.Message(messageID); exists {
		event.Message = cached
	}
	d.store.RemoveMessage(messageID)

	return event, nil
}

func (d *decoder) decodeUserUpdate(payload []byte) (Event, error) {
	var parsed wireUserUpdate
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "UserUpdate", Reason: "malformed payload", Err: err}
	}
	if parsed.ID == "" {
		return nil, &DecodeError{Type: "UserUpdate", Reason: "missing id"}
	}

	userID := EntityID(parsed.ID)

	var after User
	if before, cached := d.store.User(userID); cached {
		after = *before
	} else {
		after = User{ID: userID}
	}
	applyUserUpdate(&after, parsed.Data, parsed.Clear)

	d.store.PutUser(&after)

	return &UserUpdateEvent{User: &after}, nil
}

func (d *decoder) decodeChannelCreate(payload []byte) (Event, error) {
	var parsed wireChannel
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "ChannelCreate", Reason: "malformed payload", Err: err}
	}
	channel := decodeWireChannel(parsed)
	if channel == nil {
		return nil, &DecodeError{Type: "ChannelCreate", Reason: "missing _id"}
	}

	d.store.PutChannel(channel)

	return &ChannelCreateEvent{Channel: channel}, nil
}

func (d *decoder) decodeChannelUpdate(payload []byte) (Event, error) {
	var parsed wireChannelUpdate
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "ChannelUpdate", Reason: "malformed payload", Err: err}
	}
	if parsed.ID == "" {
		return nil, &DecodeError{Type: "ChannelUpdate", Reason: "missing id"}
	}

	channelID := EntityID(parsed.ID)

	var after Channel
	if before, cached := d.store.Channel(channelID); cached {
		after = *before
	} else {
		after = Channel{ID: channelID}
	}
	applyChannelUpdate(&after, parsed.Data, parsed.Clear)

	d.store.PutChannel(&after)

	return &ChannelUpdateEvent{Channel: &after}, nil
}

func (d *decoder) decodeChannelDelete(payload []byte) (Event, error) {
	var parsed wireChannelDelete
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &DecodeError{Type: "ChannelDelete", Reason: "malformed payload", Err: err}
	}
	if parsed.ID == "" {
		return nil, &DecodeError{Type: "ChannelDelete", Reason: "missing id"}
	}

	channelID := EntityID(parsed.ID)
	event := &ChannelDeleteEvent{ChannelID: channelID}
	if cached, exists := d.store.Channel(channelID); exists {
		event.Channel = cached
	}
	d.store.RemoveChannel(channelID)

	return event, nil
}

// bumpChannelLastMessage replaces the cached channel with a snapshot carrying
// the new last message id. A missing channel degrades gracefully.
func (d *decoder) bumpChannelLastMessage(channelID, messageID EntityID) {
	channel, exists := d.store.Channel(channelID)
	if !exists {
		return
	}

	updated := *channel
	updated.LastMessageID = messageID
	d.store.PutChannel(&updated)
}

func decodeWireUser(raw wireUser) *User {
	if raw.ID == "" {
		return nil
	}

	user := &User{
		ID:       EntityID(raw.ID),
		Username: raw.Username,
		Avatar:   decodeWireAttachment(raw.Avatar),
		Badges:   raw.Badges,
		Online:   raw.Online != nil && *raw.Online,
	}
	if raw.Bot != nil {
		user.Bot = true
		user.OwnerID = EntityID(raw.Bot.Owner)
	}

	return user
}

func decodeWireChannel(raw wireChannel) *Channel {
	if raw.ID == "" {
		return nil
	}

	recipients := make([]EntityID, 0, len(raw.Recipients))
	for _, recipient := range raw.Recipients {
		recipients = append(recipients, EntityID(recipient))
	}
	if len(recipients) == 0 {
		recipients = nil
	}

	return &Channel{
		ID:            EntityID(raw.ID),
		Type:          decodeChannelType(raw.ChannelType),
		ServerID:      EntityID(raw.Server),
		Name:          raw.Name,
		Description:   raw.Description,
		RecipientIDs:  recipients,
		LastMessageID: EntityID(raw.LastMessageID),
	}
}

func decodeChannelType(raw string) ChannelType {
	switch raw {
	case "TextChannel":
		return ChannelTypeText
	case "VoiceChannel":
		return ChannelTypeVoice
	case "DirectMessage":
		return ChannelTypeDirect
	case "Group":
		return ChannelTypeGroup
	case "SavedMessages":
		return ChannelTypeSaved
	default:
		return ChannelType(raw)
	}
}

func decodeWireServer(raw wireServer) *Server {
	if raw.ID == "" {
		return nil
	}

	channels := make([]EntityID, 0, len(raw.Channels))
	for _, channel := range raw.Channels {
		channels = append(channels, EntityID(channel))
	}
	if len(channels) == 0 {
		channels = nil
	}

	return &Server{
		ID:          EntityID(raw.ID),
		OwnerID:     EntityID(raw.Owner),
		Name:        raw.Name,
		Description: raw.Description,
		ChannelIDs:  channels,
	}
}

func decodeWireMessage(raw wireMessage) *Message {
	if raw.ID == "" || raw.Channel == "" || raw.Author == "" {
		return nil
	}

	message := &Message{
		ID:         EntityID(raw.ID),
		ChannelID:  EntityID(raw.Channel),
		AuthorID:   EntityID(raw.Author),
		Content:    raw.Content,
		EditedAt:   decodeWireTimestamp(raw.Edited),
		Masquerade: decodeWireMasquerade(raw.Masquerade),
	}
	for _, attachment := range raw.Attachments {
		message.Attachments = append(message.Attachments, Attachment{
			ID:          attachment.ID,
			Tag:         attachment.Tag,
			Filename:    attachment.Filename,
			ContentType: attachment.ContentType,
			Size:        attachment.Size,
		})
	}
	for _, embed := range raw.Embeds {
		message.Embeds = append(message.Embeds, Embed{
			Type:        embed.Type,
			URL:         embed.URL,
			Title:       embed.Title,
			Description: embed.Description,
		})
	}
	for _, mention := range raw.Mentions {
		message.MentionIDs = append(message.MentionIDs, EntityID(mention))
	}
	for _, reply := range raw.Replies {
		message.ReplyIDs = append(message.ReplyIDs, EntityID(reply))
	}

	return message
}

func decodeWireAttachment(raw *wireAttachment) *Attachment {
	if raw == nil {
		return nil
	}

	return &Attachment{
		ID:          raw.ID,
		Tag:         raw.Tag,
		Filename:    raw.Filename,
		ContentType: raw.ContentType,
		Size:        raw.Size,
	}
}

func decodeWireMasquerade(raw *wireMasquerade) *Masquerade {
	if raw == nil {
		return nil
	}

	return &Masquerade{
		Name:   raw.Name,
		Avatar: raw.Avatar,
		Colour: raw.Colour,
	}
}

func decodeWireTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()

	return &parsed
}

// applyMessageUpdate overlays the partial wire payload onto a cloned
// snapshot. Absent fields keep their prior values.
func applyMessageUpdate(message *Message, data wireMessage) {
	if data.Content != "" {
		message.Content = data.Content
	}
	if data.Edited != "" {
		message.EditedAt = decodeWireTimestamp(data.Edited)
	}
	if len(data.Embeds) > 0 {
		message.Embeds = nil
		for _, embed := range data.Embeds {
			message.Embeds = append(message.Embeds, Embed{
				Type:        embed.Type,
				URL:         embed.URL,
				Title:       embed.Title,
				Description: embed.Description,
			})
		}
	}
}

func applyUserUpdate(user *User, data wireUser, clear []string) {
	for _, field := range clear {
		if strings.EqualFold(field, "Avatar") {
			user.Avatar = nil
		}
	}

	if data.Username != "" {
		user.Username = data.Username
	}
	if data.Avatar != nil {
		user.Avatar = decodeWireAttachment(data.Avatar)
	}
	if data.Badges != 0 {
		user.Badges = data.Badges
	}
	if data.Online != nil {
		user.Online = *data.Online
	}
	if data.Bot != nil {
		user.Bot = true
		user.OwnerID = EntityID(data.Bot.Owner)
	}
}

func applyChannelUpdate(channel *Channel, data wireChannel, clear []string) {
	for _, field := range clear {
		if strings.EqualFold(field, "Description") {
			channel.Description = ""
		}
	}

	if data.ChannelType != "" {
		channel.Type = decodeChannelType(data.ChannelType)
	}
	if data.Server != "" {
		channel.ServerID = EntityID(data.Server)
	}
	if data.Name != "" {
		channel.Name = data.Name
	}
	if data.Description != "" {
		channel.Description = data.Description
	}
	if data.LastMessageID != "" {
		channel.LastMessageID = EntityID(data.LastMessageID)
	}
}
