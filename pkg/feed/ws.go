package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/setlive/setlive-go/internal/rand"
	"github.com/setlive/setlive-go/pkg/logger"
	"github.com/setlive/setlive-go/pkg/models"
)

const (
	requestIDLength  = 16
	closeMessageCode = 1000
	// DefaultTimeout bounds the wait for a subscribe/unsubscribe ack.
	DefaultTimeout = 30 * time.Second

	// eventBuffer absorbs short bursts so the read loop never blocks on a
	// slow consumer; overflow is dropped with a warning, the consumer's
	// refetch-on-event discipline makes a dropped event harmless.
	eventBuffer = 16
)

// DefaultDialer is the gorilla dialer used by WebSocketFeed: default proxy
// and handshake settings with compression enabled and the cbor subprotocol.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

// feedError is the structured error carried in a response frame.
type feedError struct {
	Code    int    `cbor:"code"`
	Message string `cbor:"message,omitempty"`
}

func (e *feedError) Error() string {
	return e.Message
}

// frame is the wire shape for both directions. Requests carry ID, Method and
// Params; responses echo the ID with Error or Result; events carry no ID and
// put the payload in Result.
type frame struct {
	ID     string          `cbor:"id,omitempty"`
	Method string          `cbor:"method,omitempty"`
	Params []any           `cbor:"params,omitempty"`
	Error  *feedError      `cbor:"error,omitempty"`
	Result cbor.RawMessage `cbor:"result,omitempty"`
}

// wireEvent is the event payload inside a pushed frame's Result.
type wireEvent struct {
	Channel string         `cbor:"channel"`
	Table   string         `cbor:"table"`
	Action  string         `cbor:"action"`
	Old     map[string]any `cbor:"old,omitempty"`
	New     map[string]any `cbor:"new,omitempty"`
}

// WebSocketFeed implements Feed over a single websocket connection. Frames
// are CBOR-encoded; subscribe/unsubscribe acks are routed to per-request
// channels by id, pushed events to per-subscription channels.
type WebSocketFeed struct {
	baseURL string
	token   string

	// Timeout bounds each subscribe/unsubscribe round trip. Zero disables
	// the wrapping; use context deadlines instead.
	Timeout time.Duration

	conn     *gorilla.Conn
	connLock sync.Mutex

	responseChannels     map[string]chan frame
	responseChannelsLock sync.RWMutex

	eventChannels     map[string]chan Event
	eventChannelsLock sync.RWMutex

	closeChan  chan int
	closeError error

	onError     func(error)
	onErrorLock sync.Mutex

	logger logger.Logger
}

var _ Feed = (*WebSocketFeed)(nil)

// NewWebSocketFeed returns an unconnected feed for the given endpoint.
func NewWebSocketFeed(baseURL, token string) *WebSocketFeed {
	return &WebSocketFeed{
		baseURL:          baseURL,
		token:            token,
		Timeout:          DefaultTimeout,
		responseChannels: make(map[string]chan frame),
		eventChannels:    make(map[string]chan Event),
		closeChan:        make(chan int),
		logger:           logger.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
}

// Logger replaces the diagnostic logger.
func (f *WebSocketFeed) Logger(l logger.Logger) *WebSocketFeed {
	f.logger = l
	return f
}

func (f *WebSocketFeed) Connect(ctx context.Context) error {
	if f.baseURL == "" {
		return ErrNoBaseURL
	}

	var header map[string][]string
	if f.token != "" {
		header = map[string][]string{"Authorization": {"Bearer " + f.token}}
	}

	conn, res, err := DefaultDialer.DialContext(ctx, fmt.Sprintf("%s/feed", f.baseURL), header)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	f.connLock.Lock()
	f.conn = conn
	f.closeChan = make(chan int)
	f.closeError = nil
	f.connLock.Unlock()

	go f.readLoop(conn, f.closeChan)
	return nil
}

// Close sends the close handshake and tears the connection down. The context
// bounds the handshake write only; local resources are released regardless.
func (f *WebSocketFeed) Close(ctx context.Context) error {
	f.connLock.Lock()
	defer f.connLock.Unlock()

	if f.conn == nil {
		return nil
	}

	select {
	case <-f.closeChan:
	default:
		close(f.closeChan)
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- f.conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(closeMessageCode, ""))
	}()
	select {
	case err := <-writeErr:
		if err != nil {
			f.logger.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	err := f.conn.Close()
	f.conn = nil
	f.dropAllEventChannels()
	return err
}

func (f *WebSocketFeed) OnError(fn func(error)) {
	f.onErrorLock.Lock()
	defer f.onErrorLock.Unlock()
	f.onError = fn
}

func (f *WebSocketFeed) Subscribe(table, filter string) (string, <-chan Event, error) {
	f.connLock.Lock()
	connected := f.conn != nil
	f.connLock.Unlock()
	if !connected {
		return "", nil, ErrNotConnected
	}

	channelID := uuid.Must(uuid.NewV4()).String()

	ch, err := f.createEventChannel(channelID)
	if err != nil {
		return "", nil, err
	}

	if err := f.call("subscribe", channelID, table, filter); err != nil {
		f.removeEventChannel(channelID)
		return "", nil, err
	}
	return channelID, ch, nil
}

func (f *WebSocketFeed) Unsubscribe(id string) error {
	defer f.removeEventChannel(id)

	f.connLock.Lock()
	connected := f.conn != nil
	f.connLock.Unlock()
	if !connected {
		return nil
	}
	return f.call("unsubscribe", id)
}

// call performs one request/response round trip.
func (f *WebSocketFeed) call(method string, params ...any) error {
	ctx := context.Background()
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	select {
	case <-f.closeChan:
		f.connLock.Lock()
		closeErr := f.closeError
		f.connLock.Unlock()
		return closeErr
	default:
	}

	id := rand.String(requestIDLength)
	responseChan, err := f.createResponseChannel(id)
	if err != nil {
		return err
	}
	defer f.removeResponseChannel(id)

	if err := f.write(&frame{ID: id, Method: method, Params: params}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	case res, open := <-responseChan:
		if !open {
			return errors.New("response channel closed")
		}
		if res.Error != nil {
			return res.Error
		}
		return nil
	}
}

func (f *WebSocketFeed) write(v any) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		return err
	}

	f.connLock.Lock()
	defer f.connLock.Unlock()
	if f.conn == nil {
		return ErrNotConnected
	}
	return f.conn.WriteMessage(gorilla.BinaryMessage, data)
}

func (f *WebSocketFeed) readLoop(conn *gorilla.Conn, closeChan chan int) {
	for {
		select {
		case <-closeChan:
			return
		default:
			_, data, err := conn.ReadMessage()
			if err != nil {
				if f.handleReadError(err, closeChan) {
					return
				}
				continue
			}
			go f.handleMessage(data)
		}
	}
}

// handleReadError reports whether the read loop should exit. A failure on a
// live connection is surfaced through the OnError callback so the owner can
// drive its state machine.
func (f *WebSocketFeed) handleReadError(err error, closeChan chan int) bool {
	if errors.Is(err, net.ErrClosed) {
		f.setCloseError(net.ErrClosed)
		return true
	}
	if gorilla.IsUnexpectedCloseError(err) || gorilla.IsCloseError(err, gorilla.CloseNormalClosure) {
		f.setCloseError(io.ErrClosedPipe)
		select {
		case <-closeChan:
			// Deliberate close, not a failure.
		default:
			f.notifyError(err)
		}
		return true
	}

	f.logger.Error(err.Error())
	return false
}

// setCloseError records why the connection went away. The read loop writes
// it while call reads it, so it shares connLock.
func (f *WebSocketFeed) setCloseError(err error) {
	f.connLock.Lock()
	f.closeError = err
	f.connLock.Unlock()
}

func (f *WebSocketFeed) notifyError(err error) {
	f.onErrorLock.Lock()
	fn := f.onError
	f.onErrorLock.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (f *WebSocketFeed) handleMessage(data []byte) {
	var fr frame
	if err := cbor.Unmarshal(data, &fr); err != nil {
		f.logger.Error("error unmarshaling frame", "error", err)
		return
	}

	if fr.ID != "" {
		responseChan, ok := f.getResponseChannel(fr.ID)
		if !ok {
			f.logger.Error("unavailable response channel", "id", fr.ID)
			return
		}
		defer close(responseChan)
		responseChan <- fr
		return
	}

	var we wireEvent
	if err := cbor.Unmarshal(fr.Result, &we); err != nil {
		f.logger.Error("error unmarshaling event", "error", err)
		return
	}
	if we.Channel == "" {
		f.logger.Error("event did not carry a channel id")
		return
	}

	ch, ok := f.getEventChannel(we.Channel)
	if !ok {
		f.logger.Warn("event for unknown channel", "channel", we.Channel)
		return
	}

	ev := Event{
		Channel: we.Channel,
		Table:   we.Table,
		Action:  Action(we.Action),
		Old:     models.RawRecord(we.Old),
		New:     models.RawRecord(we.New),
	}
	select {
	case ch <- ev:
	default:
		f.logger.Warn("dropping event, channel full", "channel", we.Channel, "table", we.Table)
	}
}

func (f *WebSocketFeed) createResponseChannel(id string) (chan frame, error) {
	f.responseChannelsLock.Lock()
	defer f.responseChannelsLock.Unlock()
	if _, ok := f.responseChannels[id]; ok {
		return nil, fmt.Errorf("%w: %v", ErrIDInUse, id)
	}
	ch := make(chan frame, 1)
	f.responseChannels[id] = ch
	return ch, nil
}

func (f *WebSocketFeed) removeResponseChannel(id string) {
	f.responseChannelsLock.Lock()
	defer f.responseChannelsLock.Unlock()
	delete(f.responseChannels, id)
}

func (f *WebSocketFeed) getResponseChannel(id string) (chan frame, bool) {
	f.responseChannelsLock.RLock()
	defer f.responseChannelsLock.RUnlock()
	ch, ok := f.responseChannels[id]
	return ch, ok
}

func (f *WebSocketFeed) createEventChannel(id string) (chan Event, error) {
	f.eventChannelsLock.Lock()
	defer f.eventChannelsLock.Unlock()
	if _, ok := f.eventChannels[id]; ok {
		return nil, fmt.Errorf("%w: %v", ErrIDInUse, id)
	}
	ch := make(chan Event, eventBuffer)
	f.eventChannels[id] = ch
	return ch, nil
}

func (f *WebSocketFeed) removeEventChannel(id string) {
	f.eventChannelsLock.Lock()
	defer f.eventChannelsLock.Unlock()
	if ch, ok := f.eventChannels[id]; ok {
		close(ch)
		delete(f.eventChannels, id)
	}
}

func (f *WebSocketFeed) getEventChannel(id string) (chan Event, bool) {
	f.eventChannelsLock.RLock()
	defer f.eventChannelsLock.RUnlock()
	ch, ok := f.eventChannels[id]
	return ch, ok
}

func (f *WebSocketFeed) dropAllEventChannels() {
	f.eventChannelsLock.Lock()
	defer f.eventChannelsLock.Unlock()
	for id, ch := range f.eventChannels {
		close(ch)
		delete(f.eventChannels, id)
	}
}
