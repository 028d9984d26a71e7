package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// payloadFactories maps each event Type to a zero-value constructor for its
// payload struct, so a row read back from the store decodes into the right
// concrete type instead of a bag of map[string]interface{}.
var payloadFactories = map[Type]func() Payload{
	AgentSpawned:        func() Payload { return &AgentSpawnedPayload{} },
	AgentStatusChanged:  func() Payload { return &AgentStatusChangedPayload{} },
	AgentTaskStarted:    func() Payload { return &AgentTaskStartedPayload{} },
	AgentTaskCompleted:  func() Payload { return &AgentTaskCompletedPayload{} },
	AgentTaskFailed:     func() Payload { return &AgentTaskFailedPayload{} },
	AgentTerminated:     func() Payload { return &AgentTerminatedPayload{} },
	AgentLog:            func() Payload { return &AgentLogPayload{} },
	MissionInitialized:  func() Payload { return &MissionInitializedPayload{} },
	MissionStarted:      func() Payload { return &MissionStartedPayload{} },
	MissionProgress:     func() Payload { return &MissionProgressPayload{} },
	MissionPhaseChanged: func() Payload { return &MissionPhaseChangedPayload{} },
	MissionCompleted:    func() Payload { return &MissionCompletedPayload{} },
	MissionFailed:       func() Payload { return &MissionFailedPayload{} },
	MissionCancelled:    func() Payload { return &MissionCancelledPayload{} },
	TaskStarted:         func() Payload { return &TaskStartedPayload{} },
	TaskProgress:        func() Payload { return &TaskProgressPayload{} },
	TaskCompleted:       func() Payload { return &TaskCompletedPayload{} },
	TaskFailed:          func() Payload { return &TaskFailedPayload{} },
}

func decodePayload(typ Type, payloadJSON string) (Payload, error) {
	factory, ok := payloadFactories[typ]
	if !ok {
		return nil, fmt.Errorf("unknown event type in store: %s", typ)
	}
	payload := factory()
	if err := json.Unmarshal([]byte(payloadJSON), payload); err != nil {
		return nil, fmt.Errorf("unmarshal event payload: %w", err)
	}
	return payload, nil
}

// SQLiteStore persists events for replay to subscribers that reconnect
// after a disconnect. It is optional: the Bus works without one, trading
// away replay for zero setup.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed event store
// at path and ensures its schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		mission_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		delivered_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_mission ON events(mission_id, delivered_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save persists one event, payload serialized as JSON.
func (s *SQLiteStore) Save(evt *Event) error {
	payloadJSON, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO events (id, type, mission_id, payload, created_at, delivered_at)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		evt.ID, string(evt.Type), evt.MissionID, string(payloadJSON), evt.CreatedAt,
	)
	return err
}

// GetPending returns undelivered events for a mission, optionally filtered
// by type, oldest first.
func (s *SQLiteStore) GetPending(missionID string, types []Type) ([]*Event, error) {
	rows, err := s.db.Query(
		`SELECT id, type, mission_id, payload, created_at FROM events
		 WHERE mission_id = ? AND delivered_at IS NULL ORDER BY created_at ASC`,
		missionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Event
	for rows.Next() {
		var id, typ, mid, payloadJSON string
		var createdAt time.Time
		if err := rows.Scan(&id, &typ, &mid, &payloadJSON, &createdAt); err != nil {
			return nil, err
		}
		if len(types) > 0 && !matches(Type(typ), types) {
			continue
		}
		payload, err := decodePayload(Type(typ), payloadJSON)
		if err != nil {
			return nil, err
		}
		result = append(result, &Event{
			ID:        id,
			Type:      Type(typ),
			MissionID: mid,
			CreatedAt: createdAt,
			Payload:   payload,
		})
	}
	return result, rows.Err()
}

// MarkDelivered records that an event has been delivered so GetPending
// won't return it again.
func (s *SQLiteStore) MarkDelivered(eventID string) error {
	_, err := s.db.Exec(`UPDATE events SET delivered_at = ? WHERE id = ?`, time.Now(), eventID)
	return err
}

// Cleanup deletes delivered events older than olderThan, so a long-running
// store doesn't grow without bound.
func (s *SQLiteStore) Cleanup(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	_, err := s.db.Exec(
		`DELETE FROM events WHERE delivered_at IS NOT NULL AND created_at < ?`,
		cutoff,
	)
	return err
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
