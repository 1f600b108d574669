package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/eventbus"
	xlogger "MarketPulse/pkg/logger"
)

const (
	feedClientBuffer = 64
	feedWriteWait    = 5 * time.Second
	feedPingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type feedClient struct {
	conn *websocket.Conn
	send chan models.Event
}

// EventFeed streams every bus event to connected websocket clients. A client
// that cannot keep up with the stream is disconnected rather than allowed to
// apply backpressure to the bus.
type EventFeed struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}

	bus    *eventbus.Bus
	logger *xlogger.Logger
	sub    eventbus.Subscription
	hasSub bool
}

func NewEventFeed(bus *eventbus.Bus, logger *xlogger.Logger) *EventFeed {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &EventFeed{
		clients: make(map[*feedClient]struct{}),
		bus:     bus,
		logger:  logger,
	}
}

// Start attaches the feed to the bus as a wildcard subscriber.
func (f *EventFeed) Start() {
	f.sub = f.bus.SubscribeToAll(f.broadcast)
	f.hasSub = true
}

// Stop detaches from the bus and closes all client connections.
func (f *EventFeed) Stop() {
	if f.hasSub {
		f.bus.Unsubscribe(f.sub)
		f.hasSub = false
	}
	f.mu.Lock()
	for cl := range f.clients {
		close(cl.send)
		delete(f.clients, cl)
	}
	f.mu.Unlock()
}

func (f *EventFeed) broadcast(ev models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for cl := range f.clients {
		select {
		case cl.send <- ev:
		default:
			// slow client: drop it, the write loop exits on channel close
			close(cl.send)
			delete(f.clients, cl)
			f.logger.Warn("websocket client dropped, send buffer full")
		}
	}
}

// Serve upgrades the request and streams events until the client disconnects.
func (f *EventFeed) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &feedClient{conn: conn, send: make(chan models.Event, feedClientBuffer)}
	f.mu.Lock()
	f.clients[cl] = struct{}{}
	f.mu.Unlock()

	go f.writeLoop(cl)
	f.readLoop(cl)
	return nil
}

func (f *EventFeed) readLoop(cl *feedClient) {
	defer f.remove(cl)
	cl.conn.SetReadLimit(512)
	for {
		// inbound messages are ignored; reading only detects disconnects
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *EventFeed) writeLoop(cl *feedClient) {
	ping := time.NewTicker(feedPingPeriod)
	defer func() {
		ping.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-cl.send:
			if !ok {
				_ = cl.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(feedWriteWait))
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := cl.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *EventFeed) remove(cl *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[cl]; ok {
		close(cl.send)
		delete(f.clients, cl)
	}
	f.mu.Unlock()
	cl.conn.Close()
}
