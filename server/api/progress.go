package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/progress"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Number of events that may queue up for a slow websocket client before we start dropping them
const progressSendBufferSize = 64

type progressClient struct {
	sendQueue chan progress.Event
	nDropped  int // guarded by progressHub.lock
}

// progressHub fans progress events out to websocket clients.
// OnProgress is called on the thread of the running operation, so it must never block.
type progressHub struct {
	log     logs.Log
	lock    sync.Mutex
	clients map[*progressClient]bool
	closed  chan bool
}

func newProgressHub(log logs.Log) *progressHub {
	return &progressHub{
		log:     log,
		clients: map[*progressClient]bool{},
		closed:  make(chan bool),
	}
}

func (h *progressHub) OnProgress(ev progress.Event) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		select {
		case c.sendQueue <- ev:
		default:
			c.nDropped++
		}
	}
}

func (h *progressHub) add() *progressClient {
	c := &progressClient{
		sendQueue: make(chan progress.Event, progressSendBufferSize),
	}
	h.lock.Lock()
	h.clients[c] = true
	h.lock.Unlock()
	return c
}

func (h *progressHub) remove(c *progressClient) int {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.clients, c)
	return c.nDropped
}

func (h *progressHub) numClients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *progressHub) close() {
	select {
	case <-h.closed:
	default:
		close(h.closed)
	}
}

// httpProgress streams progress events to a websocket as JSON messages
func (s *Server) httpProgress(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpProgress websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := s.progress.add()
	defer func() {
		if dropped := s.progress.remove(client); dropped != 0 {
			s.Log.Infof("Progress websocket closed. Dropped %v events", dropped)
		}
	}()

	// We never expect messages from the client, but we must read in order to notice
	// that the connection has closed.
	readerDone := make(chan bool)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(readerDone)
				return
			}
		}
	}()

	for {
		select {
		case ev := <-client.sendQueue:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				s.Log.Infof("Progress websocket write failed: %v", err)
				return
			}
		case <-readerDone:
			return
		case <-s.progress.closed:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
			return
		}
	}
}
