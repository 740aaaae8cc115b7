package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"pkt.systems/pslog"
)

const (
	// DefaultHeartbeat matches the interval servers expect before they
	// consider a client gone.
	DefaultHeartbeat = 30 * time.Second
	defaultWrite     = 10 * time.Second
	defaultReadLimit = 4 << 20
)

// Option configures a Socket.
type Option func(*Socket)

// WithParams adds connect parameters (for example an auth token) to the
// endpoint query.
func WithParams(params url.Values) Option {
	return func(s *Socket) {
		for key, values := range params {
			for _, value := range values {
				s.params.Add(key, value)
			}
		}
	}
}

// WithHeader sets HTTP headers sent with the websocket upgrade.
func WithHeader(header http.Header) Option {
	return func(s *Socket) { s.header = header.Clone() }
}

// WithHTTPClient overrides the client used for the upgrade request.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Socket) { s.httpClient = client }
}

// WithSerializer selects the frame serializer.
func WithSerializer(serializer Serializer) Option {
	return func(s *Socket) {
		if serializer != nil {
			s.serializer = serializer
		}
	}
}

// WithHeartbeat sets the heartbeat interval. Zero disables heartbeats.
func WithHeartbeat(interval time.Duration) Option {
	return func(s *Socket) { s.heartbeat = interval }
}

// WithJoinTimeout errors joins that are not acknowledged within d. Zero
// leaves unacknowledged joins pending indefinitely.
func WithJoinTimeout(d time.Duration) Option {
	return func(s *Socket) { s.joinTimeout = d }
}

// WithDialTimeout bounds the websocket handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Socket) { s.dialTimeout = d }
}

// WithLogger sets the socket logger.
func WithLogger(logger pslog.Logger) Option {
	return func(s *Socket) {
		if logger != nil {
			s.log = logger
		}
	}
}

// Socket multiplexes channels over one websocket connection.
type Socket struct {
	endpoint     *url.URL
	params       url.Values
	header       http.Header
	httpClient   *http.Client
	serializer   Serializer
	heartbeat    time.Duration
	joinTimeout  time.Duration
	dialTimeout  time.Duration
	writeTimeout time.Duration
	log          pslog.Logger

	connectMu sync.Mutex

	mu               sync.Mutex
	conn             *websocket.Conn
	cancel           context.CancelFunc
	closing          bool
	ref              uint64
	pendingHeartbeat string
	channels         []*Channel
}

// NewSocket constructs a socket for endpoint. The connection is not opened
// until Connect.
func NewSocket(endpoint string, opts ...Option) (*Socket, error) {
	parsed, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	s := &Socket{
		endpoint:     parsed,
		params:       url.Values{},
		serializer:   v2Serializer{},
		heartbeat:    DefaultHeartbeat,
		writeTimeout: defaultWrite,
		log:          pslog.Ctx(context.Background()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("endpoint", s.redactedEndpoint())
	return s, nil
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errors.New("socket endpoint is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse socket endpoint: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return nil, fmt.Errorf("socket endpoint must use ws, wss, http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("socket endpoint must include a host")
	}
	if !strings.HasSuffix(parsed.Path, "/websocket") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/websocket"
	}
	return parsed, nil
}

// EndpointURL returns the full upgrade URL including protocol version and
// connect params.
func (s *Socket) EndpointURL() string {
	u := *s.endpoint
	query := u.Query()
	for key, values := range s.params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("vsn", s.serializer.Version())
	u.RawQuery = query.Encode()
	return u.String()
}

func (s *Socket) redactedEndpoint() string {
	u := *s.endpoint
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// Connect opens the connection. It is a no-op while already connected and
// never reconnects on its own after a disconnect.
func (s *Socket) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.connectMu.Lock()
	defer s.connectMu.Unlock()
	if s.Connected() {
		return nil
	}
	dialCtx := ctx
	if s.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.dialTimeout)
		defer cancel()
	}
	var header http.Header
	if s.header != nil {
		header = s.header.Clone()
	}
	conn, _, err := websocket.Dial(dialCtx, s.EndpointURL(), &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: s.httpClient,
	})
	if err != nil {
		s.log.Warn("socket connect failed", "err", err)
		return fmt.Errorf("connect %s: %w", s.redactedEndpoint(), err)
	}
	conn.SetReadLimit(defaultReadLimit)

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.closing = false
	s.pendingHeartbeat = ""
	s.mu.Unlock()

	go s.readLoop(loopCtx, conn)
	if s.heartbeat > 0 {
		go s.heartbeatLoop(loopCtx, conn)
	}
	s.log.Info("socket connected", "vsn", s.serializer.Version(), "heartbeat", s.heartbeat.String())
	return nil
}

// Connected reports whether the socket currently holds a live connection.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close closes the connection. Channels that are still registered receive
// ErrSocketClosed on their error handlers.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	if conn != nil {
		s.closing = true
	}
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.log.Info("socket close requested")
	if err := conn.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
		s.log.Debug("socket close handshake incomplete", "err", err)
	}
	s.fail(conn, ErrSocketClosed)
	return nil
}

// Channel constructs a channel bound to topic. The channel does not join
// until Join is called.
func (s *Socket) Channel(topic string, params Payload) ChannelHandle {
	ch := newChannel(s, topic, params)
	s.mu.Lock()
	s.channels = append(s.channels, ch)
	count := len(s.channels)
	s.mu.Unlock()
	s.log.Trace("socket channel registered", "topic", topic, "channels", count)
	return ch
}

func (s *Socket) makeRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ref++
	return strconv.FormatUint(s.ref, 10)
}

func (s *Socket) send(msg Message) error {
	data, err := s.serializer.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Event, err)
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Event, err)
	}
	s.log.Trace("socket frame sent", "topic", msg.Topic, "event", msg.Event, "ref", msg.Ref)
	return nil
}

func (s *Socket) remove(ch *Channel) {
	s.mu.Lock()
	kept := s.channels[:0]
	for _, existing := range s.channels {
		if existing != ch {
			kept = append(kept, existing)
		}
	}
	for i := len(kept); i < len(s.channels); i++ {
		s.channels[i] = nil
	}
	s.channels = kept
	count := len(kept)
	s.mu.Unlock()
	s.log.Trace("socket channel removed", "topic", ch.topic, "channels", count)
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.fail(conn, fmt.Errorf("%w: %v", ErrDisconnected, err))
			return
		}
		msg, err := s.serializer.Decode(data)
		if err != nil {
			s.log.Warn("socket frame dropped", "err", err)
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Socket) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		pending := s.pendingHeartbeat
		s.mu.Unlock()
		if pending != "" {
			s.log.Warn("socket heartbeat timeout", "ref", pending)
			s.fail(conn, ErrHeartbeatTimeout)
			return
		}
		ref := s.makeRef()
		s.mu.Lock()
		s.pendingHeartbeat = ref
		s.mu.Unlock()
		if err := s.send(Message{Ref: ref, Topic: topicPhoenix, Event: eventHeartbeat, Payload: EmptyPayload}); err != nil {
			s.log.Debug("socket heartbeat send failed", "err", err)
		}
	}
}

func (s *Socket) dispatch(msg Message) {
	if msg.Topic == topicPhoenix {
		if msg.Event == eventReply {
			s.mu.Lock()
			if msg.Ref != "" && msg.Ref == s.pendingHeartbeat {
				s.pendingHeartbeat = ""
			}
			s.mu.Unlock()
		}
		return
	}
	s.mu.Lock()
	targets := make([]*Channel, 0, 1)
	for _, ch := range s.channels {
		if ch.topic == msg.Topic {
			targets = append(targets, ch)
		}
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		s.log.Trace("socket frame unrouted", "topic", msg.Topic, "event", msg.Event)
		return
	}
	for _, ch := range targets {
		ch.trigger(msg)
	}
}

// fail tears down conn once and reports err to every registered channel.
func (s *Socket) fail(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	cancel := s.cancel
	s.cancel = nil
	closing := s.closing
	s.pendingHeartbeat = ""
	channels := append([]*Channel(nil), s.channels...)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = conn.CloseNow()
	if closing {
		err = ErrSocketClosed
		s.log.Info("socket closed", "channels", len(channels))
	} else {
		s.log.Warn("socket disconnected", "err", err, "channels", len(channels))
	}
	for _, ch := range channels {
		ch.transportFailed(err)
	}
}
