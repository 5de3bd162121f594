package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Common errors
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrConnectionLost   = errors.New("connection to daemon lost")
	ErrTimeout          = errors.New("request timeout")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// Client communicates with the keyspeakd daemon over its control
// socket. Safe for concurrent use.
type Client struct {
	mu         sync.RWMutex
	conn       net.Conn
	socketPath string

	connected atomic.Bool

	pending   map[uint32]chan *Message
	pendingMu sync.Mutex
	nextReqID atomic.Uint32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	config ClientConfig
}

// ClientConfig configures the IPC client.
type ClientConfig struct {
	SocketPath     string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults for a socket under the
// daemon's runtime directory.
func DefaultClientConfig(socketPath string) ClientConfig {
	return ClientConfig{
		SocketPath:     socketPath,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// NewClient creates a new IPC client.
func NewClient(cfg ClientConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &Client{
		socketPath: cfg.SocketPath,
		pending:    make(map[uint32]chan *Message),
		ctx:        ctx,
		cancel:     cancel,
		config:     cfg,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}

	dialer := net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.Dial("unix", c.socketPath)
	if err != nil {
		if errors.Is(err, net.ErrClosed) || isNoSocket(err) {
			return ErrDaemonNotRunning
		}
		return fmt.Errorf("connect: %w", err)
	}

	c.conn = conn
	c.connected.Store(true)

	c.wg.Add(1)
	go c.readLoop()

	return nil
}

// isNoSocket reports a dial failure that means no daemon is listening:
// either the socket file is missing or nothing accepts on it.
func isNoSocket(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	c.cancel()
	c.close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	return nil
}

// close closes the connection without signaling shutdown.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected.Store(false)

	// Cancel all pending requests
	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[uint32]chan *Message)
	c.pendingMu.Unlock()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// request sends a request and waits for a response.
func (c *Client) request(msgType MessageType, payload any) (*Message, error) {
	return c.requestWithTimeout(msgType, payload, c.config.RequestTimeout)
}

// requestWithTimeout sends a request with a custom timeout.
func (c *Client) requestWithTimeout(msgType MessageType, payload any, timeout time.Duration) (*Message, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	var data []byte
	if payload != nil {
		var err error
		data, err = Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}

	reqID := c.nextReqID.Add(1)
	msg := NewMessage(msgType, reqID, data)

	respChan := make(chan *Message, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil, ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := msg.Write(conn); err != nil {
		c.close()
		return nil, fmt.Errorf("write message: %w", err)
	}

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, ErrConnectionLost
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// readLoop reads messages from the connection.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		msg, err := ReadMessage(conn)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			c.close()
			return
		}

		c.handleMessage(msg)
	}
}

// handleMessage processes an incoming message.
func (c *Client) handleMessage(msg *Message) {
	switch msg.Header.Type {
	case MsgPong:
		// Also a response when the request was a ping.
		c.deliver(msg)

	case MsgPing:
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			pong := NewMessage(MsgPong, msg.Header.RequestID, nil)
			pong.Write(conn)
		}

	default:
		c.deliver(msg)
	}
}

// deliver routes a response to its pending request.
func (c *Client) deliver(msg *Message) {
	c.pendingMu.Lock()
	if ch, ok := c.pending[msg.Header.RequestID]; ok {
		select {
		case ch <- msg:
		default:
		}
	}
	c.pendingMu.Unlock()
}

// decodeResponse unwraps error replies and decodes the payload.
func decodeResponse(resp *Message, want MessageType, v any) error {
	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		Decode(resp.Payload, &errResp)
		return fmt.Errorf("daemon: %s", errResp.Message)
	}
	if resp.Header.Type != want {
		return fmt.Errorf("unexpected response type: %#04x", uint16(resp.Header.Type))
	}
	if v == nil {
		return nil
	}
	return Decode(resp.Payload, v)
}

// High-level API methods

// Ping checks if the daemon is responsive.
func (c *Client) Ping() error {
	resp, err := c.requestWithTimeout(MsgPing, nil, 5*time.Second)
	if err != nil {
		return err
	}
	if resp.Header.Type != MsgPong {
		return fmt.Errorf("unexpected response type: %#04x", uint16(resp.Header.Type))
	}
	return nil
}

// Status requests the daemon status.
func (c *Client) Status(includeMetrics bool) (*StatusResponse, error) {
	resp, err := c.request(MsgStatus, &StatusRequest{IncludeMetrics: includeMetrics})
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := decodeResponse(resp, MsgStatusResp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Speak asks the daemon to announce arbitrary text.
func (c *Client) Speak(text string) (*SpeakResponse, error) {
	resp, err := c.request(MsgSpeak, &SpeakRequest{Text: text})
	if err != nil {
		return nil, err
	}

	var speak SpeakResponse
	if err := decodeResponse(resp, MsgSpeakResp, &speak); err != nil {
		return nil, err
	}
	return &speak, nil
}

// SpeakKey asks the daemon to announce a key through the description
// chain.
func (c *Client) SpeakKey(code int, label string) (*SpeakKeyResponse, error) {
	resp, err := c.request(MsgSpeakKey, &SpeakKeyRequest{Code: code, Label: label})
	if err != nil {
		return nil, err
	}

	var speak SpeakKeyResponse
	if err := decodeResponse(resp, MsgSpeakKeyResp, &speak); err != nil {
		return nil, err
	}
	return &speak, nil
}

// DescribeKey resolves a key description without speaking it.
func (c *Client) DescribeKey(code int, label string) (*DescribeKeyResponse, error) {
	resp, err := c.request(MsgDescribeKey, &DescribeKeyRequest{Code: code, Label: label})
	if err != nil {
		return nil, err
	}

	var desc DescribeKeyResponse
	if err := decodeResponse(resp, MsgDescribeKeyResp, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// History requests recent announcements.
func (c *Client) History(limit int, sinceNs int64) (*HistoryResponse, error) {
	resp, err := c.request(MsgHistory, &HistoryRequest{Limit: limit, SinceNs: sinceNs})
	if err != nil {
		return nil, err
	}

	var hist HistoryResponse
	if err := decodeResponse(resp, MsgHistoryResp, &hist); err != nil {
		return nil, err
	}
	return &hist, nil
}

// PruneHistory removes announcements older than maxAge.
func (c *Client) PruneHistory(maxAge time.Duration) (*PruneHistoryResponse, error) {
	resp, err := c.request(MsgPruneHistory, &PruneHistoryRequest{
		MaxAgeSeconds: int64(maxAge / time.Second),
	})
	if err != nil {
		return nil, err
	}

	var prune PruneHistoryResponse
	if err := decodeResponse(resp, MsgPruneHistoryResp, &prune); err != nil {
		return nil, err
	}
	return &prune, nil
}

// CheckIME queries input method registration. Empty package and class
// query the daemon's own identity.
func (c *Client) CheckIME(pkg, class string) (*CheckIMEResponse, error) {
	resp, err := c.request(MsgCheckIME, &CheckIMERequest{Package: pkg, Class: class})
	if err != nil {
		return nil, err
	}

	var check CheckIMEResponse
	if err := decodeResponse(resp, MsgCheckIMEResp, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// ReloadKeymap reloads the key description table.
func (c *Client) ReloadKeymap(path string) (*ReloadKeymapResponse, error) {
	resp, err := c.request(MsgReloadKeymap, &ReloadKeymapRequest{Path: path})
	if err != nil {
		return nil, err
	}

	var reload ReloadKeymapResponse
	if err := decodeResponse(resp, MsgReloadKeymapResp, &reload); err != nil {
		return nil, err
	}
	return &reload, nil
}

// Shutdown asks the daemon to stop.
func (c *Client) Shutdown() error {
	resp, err := c.requestWithTimeout(MsgShutdown, nil, 5*time.Second)
	if err != nil {
		return err
	}
	return decodeResponse(resp, MsgShutdownAck, nil)
}
