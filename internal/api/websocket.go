package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: checkWebSocketOrigin,
}

// allowedOrigins lists non-localhost origins permitted to open a push
// channel connection. Overridable via AEGIS_ALLOWED_ORIGINS (comma
// separated) for dashboards served from a non-default host.
var allowedOrigins = initAllowedOrigins()

func initAllowedOrigins() []string {
	defaults := []string{
		"http://localhost:3000",
		"http://localhost:8080",
	}
	if env := os.Getenv("AEGIS_ALLOWED_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				defaults = append(defaults, origin)
			}
		}
	}
	return defaults
}

func checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := originURL.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// pushClient is one websocket subscriber, bound to a single bus
// subscription for its mission (or the global target).
type pushClient struct {
	conn *websocket.Conn
	sub  *events.Subscription
}

// handleSubscribe upgrades to a websocket and streams a mission's events,
// or every mission's events when no missionId query parameter is given
// (spec §6 push channel: one subscription per mission or one global
// subscription).
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	target := r.URL.Query().Get("missionId")
	if target == "" {
		target = events.GlobalTarget
	}

	client := &pushClient{
		conn: conn,
		sub:  s.bus.Subscribe(target, nil),
	}

	go client.readPump(s.bus)
	go client.writePump()
}

// readPump's only job is to detect the client disconnecting; Aegis doesn't
// accept any inbound messages on this channel.
func (c *pushClient) readPump(bus *events.Bus) {
	defer func() {
		bus.Unsubscribe(c.sub)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *pushClient) writePump() {
	logger := log.WithComponent("api")
	defer c.conn.Close()

	for evt := range c.sub.Ch {
		data, err := json.Marshal(evt)
		if err != nil {
			logger.Warn().Err(err).Str("event_type", string(evt.Type)).Msg("failed to marshal event for push channel")
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
