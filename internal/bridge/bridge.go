package bridge

import (
	"encoding/json"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/log"
)

// subjectPrefix namespaces every republished event under one wildcard
// subscribers can match with "aegis.events.>".
const subjectPrefix = "aegis.events"

// wireEvent is the JSON shape republished onto NATS, independent of the
// in-process events.Event's Payload interface so external subscribers get
// a plain, stable document.
type wireEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	MissionID string          `json:"mission_id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Bridge subscribes to the global event stream and republishes every event
// onto a NATS subject scoped by mission id, for subscribers outside this
// process (spec's external-interfaces DOMAIN STACK extension).
type Bridge struct {
	conn   *natsgo.Conn
	bus    *events.Bus
	sub    *events.Subscription
	stopCh chan struct{}
	doneCh chan struct{}
}

// New connects to a NATS server at url and wires it to bus. Callers own the
// embedded server's lifecycle (if any) separately via EmbeddedServer.
func New(url string, bus *events.Bus) (*Bridge, error) {
	conn, err := natsgo.Connect(url,
		natsgo.ReconnectWait(2*time.Second),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		conn:   conn,
		bus:    bus,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start subscribes to every event on the bus and begins republishing.
func (b *Bridge) Start() {
	b.sub = b.bus.Subscribe(events.GlobalTarget, nil)
	go b.run()
}

// Stop unsubscribes from the bus and closes the NATS connection.
func (b *Bridge) Stop() {
	close(b.stopCh)
	<-b.doneCh
	b.bus.Unsubscribe(b.sub)
	b.conn.Close()
}

func (b *Bridge) run() {
	defer close(b.doneCh)
	logger := log.WithComponent("bridge")
	for {
		select {
		case <-b.stopCh:
			return
		case evt, ok := <-b.sub.Ch:
			if !ok {
				return
			}
			if err := b.publish(evt); err != nil {
				logger.Warn().Err(err).Str("event_type", string(evt.Type)).Msg("failed to republish event to nats")
			}
		}
	}
}

func (b *Bridge) publish(evt events.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(wireEvent{
		ID:        evt.ID,
		Type:      string(evt.Type),
		MissionID: evt.MissionID,
		CreatedAt: evt.CreatedAt,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	return b.conn.Publish(subject(evt), data)
}

// subject builds "aegis.events.<mission_id>.<event:type-with-dots>" so
// subscribers can wildcard on mission id, event family, or both.
func subject(evt events.Event) string {
	missionID := evt.MissionID
	if missionID == "" {
		missionID = "_"
	}
	kind := strings.ReplaceAll(string(evt.Type), ":", ".")
	return subjectPrefix + "." + missionID + "." + kind
}
