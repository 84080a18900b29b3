// Package snoochat is a client for the real-time chat socket behind a
// social platform's chat feature. It keeps one websocket session alive,
// decodes inbound frames, runs them through registered hooks, tracks the
// joined channels and sends rate-limited messages, reactions and typing
// indicators.
package snoochat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/NeboLoop/snoochat-go-sdk/frame"
	"github.com/NeboLoop/snoochat-go-sdk/ratelimit"
)

var (
	ErrNotConnected       = errors.New("snoochat: not connected")
	ErrClientClosed       = errors.New("snoochat: client closed")
	ErrNotAuthenticated   = errors.New("snoochat: session not authenticated")
	ErrInvalidCredentials = errors.New("snoochat: invalid credentials")
	ErrMissingCredentials = errors.New("snoochat: missing access token or user id")
)

const sendQueueSize = 256

// Client owns one websocket connection to the chat provider and the
// session riding on it.
//
// Connect never retries and a dropped socket stays down: callers decide
// when to reconnect, typically by waiting on Done, refreshing the token
// with UpdateAccessToken and calling Connect again.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	lister ChannelLister
	dialer ws.Dialer
	now    func() time.Time

	mu     sync.Mutex // guards wsURL, conn, closed
	wsURL  string
	conn   *connection
	closed bool

	sessMu  sync.RWMutex
	session Session

	errMu   sync.RWMutex
	lastErr error

	// sendMu keeps request ids in queue order: it is held from taking an
	// id until the frame is on the send channel.
	sendMu sync.Mutex

	reqIDs     *frame.RequestIDs
	limiter    *ratelimit.Limiter
	channels   *ChannelRegistry
	dispatcher *Dispatcher
	listOpts   ListOptions
}

// connection is one socket and its writer goroutine. A new one is made for
// every Connect.
type connection struct {
	conn   net.Conn
	reader io.Reader
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	wmu    sync.Mutex // serialises frames written to conn
}

// NewClient creates a client for the account in creds. lister seeds the
// channel registry after login; nil uses the provider's REST API.
func NewClient(cfg Config, creds AuthResult, lister ChannelLister) (*Client, error) {
	if creds.AccessToken == "" || creds.UserID == "" {
		return nil, ErrMissingCredentials
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if lister == nil {
		lister = NewAPIClient(cfg)
	}

	header := ws.HandshakeHeaderHTTP(http.Header{
		"User-Agent":      []string{cfg.UserAgent},
		"Accept-Encoding": []string{acceptEncoding},
	})
	now := time.Now
	c := &Client{
		cfg:    cfg,
		log:    cfg.Logger,
		lister: lister,
		now:    now,
		dialer: ws.Dialer{Timeout: cfg.DialTimeout, Header: header},
		session: Session{
			AccessToken: creds.AccessToken,
			UserID:      creds.UserID,
		},
		reqIDs:     frame.NewRequestIDs(now()),
		limiter:    ratelimit.New(cfg.RateLimit.limiter()),
		channels:   NewChannelRegistry(),
		dispatcher: NewDispatcher(cfg.Logger, cfg.HookWorkers, cfg.HookQueueSize),
		listOpts:   DefaultListOptions(),
	}
	if cfg.ChannelPageLimit > 0 {
		c.listOpts.Limit = cfg.ChannelPageLimit
	}
	c.wsURL = buildURL(cfg, creds.UserID, creds.AccessToken)
	return c, nil
}

// buildURL renders <socket base>/?<query> for the given credentials.
func buildURL(cfg Config, userID, accessToken string) string {
	params := url.Values{
		"p":                  {"_"},
		"pv":                 {"30"},
		"sv":                 {"3.1.0"},
		"ai":                 {cfg.AppID},
		"user_id":            {userID},
		"access_token":       {accessToken},
		"SB-User-Agent":      {cfg.SBUserAgent},
		"include_extra_data": {"premium_feature_list,file_upload_size_limit,emoji_hash"},
		"expiring_session":   {"0"},
	}
	return strings.TrimRight(cfg.SocketBase, "/") + "/?" + params.Encode()
}

// URL returns the address the next Connect will dial.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wsURL
}

// UpdateAccessToken swaps the token used by the next Connect. An open
// socket is left alone; the new token takes effect on reconnect.
func (c *Client) UpdateAccessToken(token string) {
	c.sessMu.Lock()
	c.session.AccessToken = token
	userID := c.session.UserID
	c.sessMu.Unlock()

	c.mu.Lock()
	c.wsURL = buildURL(c.cfg, userID, token)
	c.mu.Unlock()
}

// SetListOptions changes the query used to refresh the channel registry.
func (c *Client) SetListOptions(opts ListOptions) {
	c.mu.Lock()
	c.listOpts = opts
	c.mu.Unlock()
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Connect opens the socket. It is a no-op while a connection is open. The
// dial runs without holding the client's lock.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.conn != nil && !c.conn.isClosed() {
		c.mu.Unlock()
		return nil
	}
	target := c.wsURL
	c.mu.Unlock()

	conn, br, _, err := c.dialer.Dial(ctx, target)
	if err != nil {
		c.setErr(err)
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Close or a concurrent Connect may have won while dialing
	if c.closed {
		conn.Close()
		return ErrClientClosed
	}
	if c.conn != nil && !c.conn.isClosed() {
		conn.Close()
		return nil
	}

	var reader io.Reader = conn
	if br != nil {
		// the server spoke right after the handshake
		reader = io.MultiReader(br, conn)
	}
	cn := &connection{
		conn:   conn,
		reader: reader,
		sendCh: make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}

	c.sessMu.Lock()
	c.session.SessionKey = ""
	c.session.DisplayName = ""
	c.session.LoginError = nil
	c.sessMu.Unlock()
	c.setErr(nil)
	c.reqIDs.Reset(c.now())

	c.conn = cn
	go c.readLoop(cn)
	go c.writeLoop(cn)

	c.onOpen()
	return nil
}

// Done returns a channel closed when the current connection goes down.
// Without a connection the returned channel is already closed.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.conn.done
}

// Connected reports whether a socket is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.isClosed()
}

// Disconnect closes the current socket, if any. The client can Connect
// again afterwards.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()
	if cn == nil {
		return nil
	}
	return cn.shutdown()
}

// Close disconnects and stops the hook workers. The client cannot be
// reused. Hooks still running see their context cancelled; Close does not
// wait for them, so a hook may call it.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cn := c.conn
	c.mu.Unlock()

	var err error
	if cn != nil {
		err = cn.shutdown()
	}
	c.dispatcher.Stop()
	return err
}

// --------------------------------------------------------------------------
// Socket callbacks
// --------------------------------------------------------------------------

func (c *Client) onOpen() {
	c.log.Info().Msg("connected to chat socket")
}

// onMessage runs on the reader goroutine. Login frames update the session
// here, before any hook sees them; hooks then run on the dispatcher's
// workers.
func (c *Client) onMessage(raw string) {
	f := frame.Decode(raw)
	if c.cfg.LogFrames {
		c.log.Debug().Stringer("kind", f.Kind).Str("frame", strings.TrimSpace(raw)).Msg("inbound frame")
	}
	if f.Kind == frame.KindLoginResult {
		c.log.Info().Str("frame", strings.TrimSpace(raw)).Msg("login frame")
		c.handleLogin(f.Login)
	}
	c.dispatcher.Submit(f)
}

func (c *Client) handleLogin(l *frame.LoginResult) {
	if !l.OK() {
		c.sessMu.Lock()
		c.session.SessionKey = ""
		c.session.LoginError = l.Error
		c.sessMu.Unlock()
		c.log.Error().Err(l.Error).Msg("login rejected, socket left open without a session")
		return
	}

	c.sessMu.Lock()
	c.session.SessionKey = l.Key
	c.session.DisplayName = l.Nickname
	c.session.LoginError = nil
	c.sessMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.restTimeout())
	defer cancel()
	if err := c.RefreshChannels(ctx); err != nil {
		c.setErr(err)
		c.log.Warn().Err(err).Msg("channel refresh after login failed")
	}
}

func (c *Client) onError(err error) {
	c.setErr(err)
	c.log.Error().Err(err).Msg("chat socket error")
}

func (c *Client) onClose(cn *connection) {
	cn.close()
	c.log.Warn().Msg("chat socket closed")
}

func (c *Client) readLoop(cn *connection) {
	defer c.onClose(cn)
	for {
		data, err := cn.read()
		if data != nil {
			c.onMessage(string(data))
		}
		if err != nil {
			select {
			case <-cn.done:
			default:
				c.onError(err)
			}
			return
		}
	}
}

func (c *Client) writeLoop(cn *connection) {
	for {
		select {
		case data := <-cn.sendCh:
			if err := cn.write(data); err != nil {
				select {
				case <-cn.done:
				default:
					c.onError(fmt.Errorf("write: %w", err))
					cn.close()
				}
				return
			}
		case <-cn.done:
			return
		}
	}
}

// --------------------------------------------------------------------------
// Session & channels
// --------------------------------------------------------------------------

// Session returns a snapshot of the session state.
func (c *Client) Session() Session {
	c.sessMu.RLock()
	defer c.sessMu.RUnlock()
	return c.session
}

// LastError returns the most recent socket or refresh error since the last
// successful Connect.
func (c *Client) LastError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lastErr
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()
}

// Channels returns the channel registry.
func (c *Client) Channels() *ChannelRegistry { return c.channels }

// RefreshChannels rebuilds the registry from the channel listing. It needs
// an authenticated session.
func (c *Client) RefreshChannels(ctx context.Context) error {
	sess := c.Session()
	if !sess.Authenticated() {
		return ErrNotAuthenticated
	}
	c.mu.Lock()
	opts := c.listOpts
	c.mu.Unlock()

	snapshot, err := c.lister.ListJoinedChannels(ctx, sess.UserID, sess.SessionKey, opts)
	if err != nil {
		return err
	}
	c.channels.Rebuild(snapshot, sess.UserID)
	c.log.Info().Int("channels", c.channels.Len()).Msg("channel registry refreshed")
	return nil
}

// AddChannel records a single channel, e.g. one just created or joined.
func (c *Client) AddChannel(g GroupChannel) Channel {
	return c.channels.Add(g, c.Session().UserID)
}

func (c *Client) restTimeout() time.Duration {
	if c.cfg.RESTTimeout > 0 {
		return c.cfg.RESTTimeout
	}
	return 30 * time.Second
}

// --------------------------------------------------------------------------
// Hooks
// --------------------------------------------------------------------------

// AddHook appends h to the dispatch chain.
func (c *Client) AddHook(h Hook) { c.dispatcher.AddHook(h) }

// OnMessage registers fn for text, reaction and media messages. It never
// claims the frame, so later hooks still see it.
func (c *Client) OnMessage(fn func(ctx context.Context, f frame.Frame) error) {
	c.AddHook(func(ctx context.Context, f frame.Frame) (bool, error) {
		if !f.Kind.IsMessage() {
			return false, nil
		}
		return false, fn(ctx, f)
	})
}

// OnTyping registers fn for typing start and end frames.
func (c *Client) OnTyping(fn func(ctx context.Context, f frame.Frame) error) {
	c.AddHook(func(ctx context.Context, f frame.Frame) (bool, error) {
		if f.Kind != frame.KindTypingStart && f.Kind != frame.KindTypingEnd {
			return false, nil
		}
		return false, fn(ctx, f)
	})
}

// OnLogin registers fn for login results. The session has already been
// updated when fn runs.
func (c *Client) OnLogin(fn func(ctx context.Context, l *frame.LoginResult) error) {
	c.AddHook(func(ctx context.Context, f frame.Frame) (bool, error) {
		if f.Kind != frame.KindLoginResult {
			return false, nil
		}
		return false, fn(ctx, f.Login)
	})
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// SendMessage sends text to a channel. When the rate limiter refuses, the
// message is dropped and nil is returned.
func (c *Client) SendMessage(ctx context.Context, channelURL, text string) error {
	return c.sendLimited(ctx, channelURL, "message", func(reqID int64) (string, error) {
		return frame.EncodeMessage(frame.OutMessage{
			ChannelURL:      channelURL,
			Text:            text,
			ReqID:           reqID,
			ClientMessageID: uuid.NewString(),
		})
	})
}

// SendSnoomoji sends a reaction to a channel. Rate limited like
// SendMessage.
func (c *Client) SendSnoomoji(ctx context.Context, channelURL, snoomoji string) error {
	return c.sendLimited(ctx, channelURL, "reaction", func(reqID int64) (string, error) {
		return frame.EncodeSnoomoji(frame.OutSnoomoji{
			ChannelURL:      channelURL,
			Snoomoji:        snoomoji,
			ReqID:           reqID,
			ClientMessageID: uuid.NewString(),
		})
	})
}

// sendLimited takes a request id, consults the limiter and queues the
// encoded frame, all under sendMu. The id is spent even when the limiter
// drops the frame.
func (c *Client) sendLimited(ctx context.Context, channelURL, what string, encode func(reqID int64) (string, error)) error {
	cn, err := c.current()
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	reqID := c.reqIDs.Next()
	if !c.limiter.Allow() {
		c.log.Debug().Str("channel_url", channelURL).Msg("rate limited, " + what + " dropped")
		return nil
	}
	line, err := encode(reqID)
	if err != nil {
		return err
	}
	return cn.send(ctx, line)
}

// SendGif sends a media message to a channel. It is not rate limited.
func (c *Client) SendGif(ctx context.Context, channelURL, gifURL string) error {
	cn, err := c.current()
	if err != nil {
		return err
	}
	line, err := frame.EncodeGif(frame.OutGif{
		ChannelURL:      channelURL,
		GifURL:          gifURL,
		ClientMessageID: uuid.NewString(),
	})
	if err != nil {
		return err
	}
	return cn.send(ctx, line)
}

// StartTyping shows the typing indicator in a channel.
func (c *Client) StartTyping(ctx context.Context, channelURL string) error {
	cn, err := c.current()
	if err != nil {
		return err
	}
	line, err := frame.EncodeTypingStart(channelURL, c.now())
	if err != nil {
		return err
	}
	return cn.send(ctx, line)
}

// StopTyping clears the typing indicator in a channel.
func (c *Client) StopTyping(ctx context.Context, channelURL string) error {
	cn, err := c.current()
	if err != nil {
		return err
	}
	line, err := frame.EncodeTypingEnd(channelURL, c.now())
	if err != nil {
		return err
	}
	return cn.send(ctx, line)
}

func (c *Client) current() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.conn == nil || c.conn.isClosed() {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// --------------------------------------------------------------------------
// Connection internals
// --------------------------------------------------------------------------

func (cn *connection) isClosed() bool {
	select {
	case <-cn.done:
		return true
	default:
		return false
	}
}

func (cn *connection) close() error {
	var err error
	cn.once.Do(func() {
		close(cn.done)
		err = cn.conn.Close()
	})
	return err
}

// shutdown sends a normal-closure frame before closing.
func (cn *connection) shutdown() error {
	if cn.isClosed() {
		return nil
	}
	cn.wmu.Lock()
	_ = wsutil.WriteClientMessage(cn.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	cn.wmu.Unlock()
	return cn.close()
}

func (cn *connection) send(ctx context.Context, line string) error {
	select {
	case cn.sendCh <- []byte(line):
		return nil
	case <-cn.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cn *connection) write(data []byte) error {
	cn.wmu.Lock()
	defer cn.wmu.Unlock()
	return wsutil.WriteClientText(cn.conn, data)
}

// read returns the next text or binary message. Pings and close frames are
// answered along the way; replies are buffered and written under wmu so
// they never interleave with the writer goroutine's frames. A failed reply
// is returned as the error, alongside a complete message if one was read.
func (cn *connection) read() ([]byte, error) {
	var replies bytes.Buffer
	control := wsutil.ControlFrameHandler(&replies, ws.StateClientSide)
	flush := func() error {
		if replies.Len() == 0 {
			return nil
		}
		cn.wmu.Lock()
		_, err := cn.conn.Write(replies.Bytes())
		cn.wmu.Unlock()
		replies.Reset()
		if err != nil {
			return fmt.Errorf("write control reply: %w", err)
		}
		return nil
	}

	rd := wsutil.Reader{
		Source:         cn.reader,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			err := control(hdr, &rd)
			if ferr := flush(); err == nil {
				err = ferr
			}
			if err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		data, err := io.ReadAll(&rd)
		if err != nil {
			return nil, err
		}
		// replies to pings interleaved with a fragmented message
		return data, flush()
	}
}
