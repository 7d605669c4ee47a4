package http

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/hawkins7575/toozalink-sub000/datalayer"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
)

// StatsFrame is one message on /ws/stats.
type StatsFrame struct {
	Type       string                    `json:"type"`
	Timestamp  time.Time                 `json:"timestamp"`
	Connection datalayer.ConnectionStats `json:"connection"`
	Cache      datalayer.CacheStats      `json:"cache"`
}

func (g *Gateway) statsFrame() StatsFrame {
	return StatsFrame{
		Type:       "stats",
		Timestamp:  time.Now().UTC(),
		Connection: g.service.ConnectionStats(),
		Cache:      g.service.CacheStats(),
	}
}

// handleStatsStream pushes a stats frame immediately and then every
// StatsInterval until the client disconnects or the gateway stops.
func (g *Gateway) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		g.requestsFailed.Add(1)
		g.logger.Debug("Websocket upgrade failed", "request_id", requestID(r.Context()), "error", err)
		return
	}

	g.streams.Add(1)
	defer g.streams.Done()
	g.streamClients.Add(1)
	defer g.streamClients.Add(-1)
	defer conn.Close()

	g.logger.Debug("Stats stream opened",
		"request_id", requestID(r.Context()), "remote", conn.RemoteAddr().String())

	// Reader goroutine: clients send nothing but control frames, and a read
	// error means they went away.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(g.config.StatsInterval)
	defer ticker.Stop()

	if err := g.sendFrame(conn); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-g.shutdown:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
			if err := g.sendFrame(conn); err != nil {
				g.logger.Debug("Stats stream closed", "error", err)
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) sendFrame(conn *websocket.Conn) error {
	data, err := json.Marshal(g.statsFrame())
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	g.bytesSent.Add(uint64(len(data)))
	return nil
}
