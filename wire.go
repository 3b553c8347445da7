package voltgo

// Wire payload shapes exchanged with the service over REST and the gateway.
// These are plain structural descriptions of the JSON traffic; decoding them
// into domain snapshots happens in the decoder.

type wireAuthenticate struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type wirePing struct {
	Type string `json:"type"`
	Data int64  `json:"data"`
}

type wirePong struct {
	Type string `json:"type"`
	Data int64  `json:"data"`
}

type wireError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type wireReady struct {
	Type     string        `json:"type"`
	Users    []wireUser    `json:"users"`
	Servers  []wireServer  `json:"servers"`
	Channels []wireChannel `json:"channels"`
}

type wireUser struct {
	ID       string          `json:"_id"`
	Username string          `json:"username"`
	Avatar   *wireAttachment `json:"avatar,omitempty"`
	Badges   int             `json:"badges,omitempty"`
	Online   *bool           `json:"online,omitempty"`
	Bot      *wireBotInfo    `json:"bot,omitempty"`
}

type wireBotInfo struct {
	Owner string `json:"owner"`
}

type wireChannel struct {
	ID            string   `json:"_id"`
	ChannelType   string   `json:"channel_type"`
	Server        string   `json:"server,omitempty"`
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Recipients    []string `json:"recipients,omitempty"`
	LastMessageID string   `json:"last_message_id,omitempty"`
}

type wireServer struct {
	ID          string   `json:"_id"`
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Channels    []string `json:"channels,omitempty"`
}

type wireMessage struct {
	ID          string           `json:"_id"`
	Channel     string           `json:"channel"`
	Author      string           `json:"author"`
	Content     string           `json:"content,omitempty"`
	Attachments []wireAttachment `json:"attachments,omitempty"`
	Edited      string           `json:"edited,omitempty"`
	Embeds      []wireEmbed      `json:"embeds,omitempty"`
	Mentions    []string         `json:"mentions,omitempty"`
	Replies     []string         `json:"replies,omitempty"`
	Masquerade  *wireMasquerade  `json:"masquerade,omitempty"`
}

type wireAttachment struct {
	ID          string `json:"_id"`
	Tag         string `json:"tag,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

type wireEmbed struct {
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type wireMasquerade struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Colour string `json:"colour,omitempty"`
}

// wireMessageUpdate carries a partial message under data; absent fields keep
// their cached values.
type wireMessageUpdate struct {
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Channel string      `json:"channel"`
	Data    wireMessage `json:"data"`
}

type wireMessageDelete struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

// wireUserUpdate carries a partial user under data plus a list of field names
// the service cleared.
type wireUserUpdate struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	Data  wireUser `json:"data"`
	Clear []string `json:"clear,omitempty"`
}

type wireChannelUpdate struct {
	Type  string      `json:"type"`
	ID    string      `json:"id"`
	Data  wireChannel `json:"data"`
	Clear []string    `json:"clear,omitempty"`
}

type wireChannelDelete struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// wireSendMessage is the REST request body for posting a message.
type wireSendMessage struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce,omitempty"`
}
