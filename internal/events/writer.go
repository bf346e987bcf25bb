package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends audit events inside the caller's transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Event is a committed change, as handed to a Publisher.
type Event struct {
	TS         time.Time    `json:"ts"`
	Type       string       `json:"type"`
	EntityKind string       `json:"entity_kind"`
	EntityID   string       `json:"entity_id"`
	ActorID    string       `json:"actor_id,omitempty"`
	Payload    EventPayload `json:"payload,omitempty"`
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) (Event, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	evt := Event{
		TS:         w.Now().UTC(),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    payload,
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return evt, fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		evt.TS.Format(time.RFC3339), evtType, entityKind, nullable(entityID), nullable(actorID), string(data))
	if err != nil {
		return evt, fmt.Errorf("append event %s: %w", evtType, err)
	}
	return evt, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
