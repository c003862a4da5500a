package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/formiko/flagsh/internal/vec"
	"github.com/google/uuid"
)

// Типы событий жизненного цикла флага
const (
	EventFlagPlaced   = "flag.placed"
	EventFlagExtended = "flag.extended"
	EventFlagRemoved  = "flag.removed"
)

// Source - имя источника событий плагина
const Source = "flagsh"

// FlagEvent - полезная нагрузка событий флага
type FlagEvent struct {
	Key     string    `json:"key"`
	World   uuid.UUID `json:"world"`
	Pos     vec.Vec3  `json:"pos"`
	Yaw     int       `json:"yaw"`
	Variant string    `json:"variant"`
	Size    float32   `json:"size"`
	Dropped int       `json:"dropped,omitempty"` // число выпавших предметов при удалении
}

// NewFlagEnvelope упаковывает событие флага в Envelope
func NewFlagEnvelope(eventType string, ev FlagEvent) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}

	priority := 3
	if eventType == EventFlagRemoved {
		priority = 5 // удаление не должно теряться под нагрузкой
	}

	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    Source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   payload,
	}, nil
}

// DecodeFlagEvent разбирает полезную нагрузку события флага
func DecodeFlagEvent(ev *Envelope) (FlagEvent, error) {
	var fe FlagEvent
	if err := json.Unmarshal(ev.Payload, &fe); err != nil {
		return FlagEvent{}, fmt.Errorf("decode %s %s: %w", ev.EventType, ev.ID, err)
	}
	return fe, nil
}
