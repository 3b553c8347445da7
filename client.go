package voltgo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"
)

const (
	// DefaultAPIBase is the production REST endpoint.
	DefaultAPIBase = "https://api.revolt.chat"
	// DefaultGatewayURL is the production gateway endpoint.
	DefaultGatewayURL = "wss://ws.revolt.chat"

	drainGrace = 5 * time.Second
)

// idSearchPattern finds an entity id embedded in arbitrary user input, so
// mentions like <@01ARZ3NDEKTSV4RRFFQ69G5FAV> resolve as ids.
var idSearchPattern = regexp.MustCompile(`[0-9A-HJKMNP-TV-Z]{26}`)

// Option mutates client configuration.
type Option func(*Client)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithAPIBase overrides the REST endpoint.
func WithAPIBase(baseURL string) Option {
	return func(client *Client) {
		if baseURL != "" {
			client.apiBase = baseURL
		}
	}
}

// WithGatewayURL overrides the gateway endpoint.
func WithGatewayURL(gatewayURL string) Option {
	return func(client *Client) {
		if gatewayURL != "" {
			client.gatewayURL = gatewayURL
		}
	}
}

// WithHTTPClient overrides the HTTP client used by the REST transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithMessageCacheLimit sets the bounded message cache capacity.
func WithMessageCacheLimit(limit int) Option {
	return func(client *Client) {
		if limit > 0 {
			client.messageLimit = limit
		}
	}
}

// WithHeartbeatInterval sets the gateway ping cadence.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(client *Client) {
		if interval > 0 {
			client.heartbeatInterval = interval
		}
	}
}

// WithMaxReconnects bounds consecutive reconnect attempts.
func WithMaxReconnects(attempts int) Option {
	return func(client *Client) {
		if attempts > 0 {
			client.maxReconnects = attempts
		}
	}
}

// Client is the top-level session facade. It wires the REST transport, cache
// store, gateway connection, and dispatcher together, and owns at most one
// live session at a time.
type Client struct {
	logger            *slog.Logger
	apiBase           string
	gatewayURL        string
	httpClient        *http.Client
	messageLimit      int
	heartbeatInterval time.Duration
	maxReconnects     int

	dispatcher *dispatcher

	mu      sync.Mutex
	running bool
	store   *Store
	rest    *restClient
	gateway *gatewayConn
}

// New creates a client. Handlers can be registered before or after the
// session starts.
func New(options ...Option) *Client {
	client := &Client{
		logger:            slog.Default(),
		apiBase:           DefaultAPIBase,
		gatewayURL:        DefaultGatewayURL,
		messageLimit:      DefaultMessageCacheLimit,
		heartbeatInterval: DefaultHeartbeatInterval,
		maxReconnects:     DefaultMaxReconnects,
	}
	for _, option := range options {
		option(client)
	}
	client.dispatcher = newDispatcher(client.logger)

	return client
}

// Listen registers a typed handler for an event name (case-insensitive, one
// of the EventKind values). Registering a second handler for the same name
// replaces the first.
func (c *Client) Listen(event string, handler Handler) {
	c.dispatcher.listen(event, handler)
}

// ListenRaw registers a raw handler keyed by wire envelope type tag
// (case-insensitive). Raw handlers receive the unparsed envelope bytes,
// including envelopes the typed decoder does not recognize.
func (c *Client) ListenRaw(event string, handler RawHandler) {
	c.dispatcher.listenRaw(event, handler)
}

// Run starts a session and blocks until context cancellation or a fatal
// error. It fetches the authenticated identity over REST, seeds a fresh
// session store, and runs the gateway connection with reconnect handling.
func (c *Client) Run(ctx context.Context, token string) error {
	store, gateway, rest, err := c.begin(token)
	if err != nil {
		return err
	}
	defer c.end()

	selfPayload, err := rest.fetchSelf(ctx)
	if err != nil {
		return fmt.Errorf("run client: %w", err)
	}
	self := decodeWireUser(*selfPayload)
	if self == nil {
		return fmt.Errorf("run client: self payload missing id")
	}
	store.SetSelf(self)

	c.logger.Info("session starting",
		"user_id", self.ID,
		"username", self.Username,
	)

	runErr := gateway.run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainGrace)
	defer cancel()
	if err := c.dispatcher.drain(drainCtx); err != nil {
		c.logger.Warn("handlers still in flight at shutdown", "error", err)
	}

	return runErr
}

// Start launches Run on its own goroutine and returns a channel that yields
// the session's terminal error exactly once.
func (c *Client) Start(ctx context.Context, token string) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx, token)
	}()

	return errCh
}

func (c *Client) begin(token string) (*Store, *gatewayConn, *restClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, nil, nil, ErrSessionActive
	}

	c.running = true
	c.store = NewStore(c.messageLimit)
	c.rest = newRESTClient(c.apiBase, token, c.httpClient)
	c.gateway = newGatewayConn(
		c.gatewayURL,
		token,
		c.store,
		c.dispatcher,
		c.logger,
		c.heartbeatInterval,
		c.maxReconnects,
	)

	return c.store, c.gateway, c.rest, nil
}

func (c *Client) end() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// State returns the gateway connection state, or StateDisconnected before the
// first session.
func (c *Client) State() ConnState {
	c.mu.Lock()
	gateway := c.gateway
	c.mu.Unlock()

	if gateway == nil {
		return StateDisconnected
	}

	return gateway.State()
}

// Cache returns the live session store, or nil outside a session.
func (c *Client) Cache() *Store {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store
}

// Self returns the session's own identity when known.
func (c *Client) Self() (*User, bool) {
	store := c.Cache()
	if store == nil {
		return nil, false
	}

	return store.Self()
}

// GetUser resolves a user from the cache. Input containing a 26-character
// service id (bare or inside a mention) resolves by identifier; anything else
// resolves by exact username. A miss returns (nil, false), never an error.
func (c *Client) GetUser(ref string) (*User, bool) {
	store := c.Cache()
	if store == nil {
		return nil, false
	}

	if id := idSearchPattern.FindString(ref); id != "" {
		return store.User(EntityID(id))
	}

	return store.UserByName(ref)
}

// SendMessage posts a message over REST and returns the created snapshot. The
// cache is populated by the echoed gateway event, not here.
func (c *Client) SendMessage(ctx context.Context, channelID EntityID, content string) (*Message, error) {
	c.mu.Lock()
	rest := c.rest
	c.mu.Unlock()
	if rest == nil {
		return nil, fmt.Errorf("send message: %w", ErrConnectionClosed)
	}

	payload, err := rest.sendMessage(ctx, channelID, content)
	if err != nil {
		return nil, err
	}

	message := decodeWireMessage(*payload)
	if message == nil {
		return nil, fmt.Errorf("send message: response payload missing ids")
	}

	return message, nil
}
