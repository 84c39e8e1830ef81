package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/revsplit/backend/internal/domain/shared"
)

// PayloadUpgrader rewrites a decoded payload from one schema version to the
// next. It mutates the map in place.
type PayloadUpgrader func(payload map[string]any) error

type registeredEvent struct {
	typ       reflect.Type
	upgraders map[int]PayloadUpgrader
	current   int
}

// EventSerializer converts domain events to and from the JSON stored in the
// outbox. Payloads written by an older schema version are upgraded before
// they are decoded.
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]*registeredEvent
}

// NewEventSerializer creates a new event serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]*registeredEvent),
	}
}

// Register records the concrete type to decode eventType into
func (s *EventSerializer) Register(eventType string, instance shared.DomainEvent) {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.registry[eventType]; ok {
		existing.typ = t
		return
	}
	s.registry[eventType] = &registeredEvent{typ: t, upgraders: map[int]PayloadUpgrader{}, current: 1}
}

// RegisterUpgrader adds the step from fromVersion to fromVersion+1
func (s *EventSerializer) RegisterUpgrader(eventType string, fromVersion int, up PayloadUpgrader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registry[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	if fromVersion < 1 {
		return fmt.Errorf("invalid source version %d for %s", fromVersion, eventType)
	}
	reg.upgraders[fromVersion] = up
	if fromVersion+1 > reg.current {
		reg.current = fromVersion + 1
	}
	return nil
}

// Serialize serializes a domain event to JSON bytes
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data into the type registered for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	reg, ok := s.registry[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	data, err := s.upgrade(reg, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade %s payload: %w", eventType, err)
	}

	ptr := reflect.New(reg.typ).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("registered type for %s does not implement DomainEvent", eventType)
	}
	return event, nil
}

func (s *EventSerializer) upgrade(reg *registeredEvent, data []byte) ([]byte, error) {
	if reg.current == 1 {
		return data, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	version := 1
	if v, ok := payload["schema_version"].(float64); ok && v >= 1 {
		version = int(v)
	}
	if version >= reg.current {
		return data, nil
	}

	for v := version; v < reg.current; v++ {
		up, ok := reg.upgraders[v]
		if !ok {
			return nil, fmt.Errorf("no upgrader from version %d", v)
		}
		if err := up(payload); err != nil {
			return nil, fmt.Errorf("upgrade v%d: %w", v, err)
		}
	}
	payload["schema_version"] = reg.current
	return json.Marshal(payload)
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// CurrentVersion returns the latest schema version known for eventType
func (s *EventSerializer) CurrentVersion(eventType string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registry[eventType]
	if !ok {
		return 0, false
	}
	return reg.current, true
}

// RegisteredTypes returns all registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
