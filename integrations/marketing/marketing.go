// Package marketing is the built-in integration: subscriber and segment
// subjects, the segment-subscribed trigger, and the send-email action. It
// doubles as the reference for writing integrations of your own.
package marketing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// Keys under which the integration registers its steps and subjects.
const (
	SubjectKeySubscriber        = "mailpoet:subscriber"
	SubjectKeySegment           = "mailpoet:segment"
	TriggerKeySegmentSubscribed = "mailpoet:segment:subscribed"
	ActionKeySendEmail          = "mailpoet:send-email"
)

var (
	// ErrSubscriberNotFound is returned for unknown subscriber ids.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrSegmentNotFound is returned for unknown segment ids.
	ErrSegmentNotFound = errors.New("segment not found")
)

// Subscriber is a mailing-list recipient.
type Subscriber struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
}

// Segment is a named subscriber list.
type Segment struct {
	ID   int64
	Name string
}

// SubscriberStore loads subscribers by id.
type SubscriberStore interface {
	GetSubscriber(ctx context.Context, id int64) (*Subscriber, error)
}

// SegmentStore loads segments by id.
type SegmentStore interface {
	GetSegment(ctx context.Context, id int64) (*Segment, error)
}

// MemorySubscriberStore is an in-memory SubscriberStore for tests and demos.
type MemorySubscriberStore struct {
	mu          sync.RWMutex
	subscribers map[int64]*Subscriber
}

var _ SubscriberStore = (*MemorySubscriberStore)(nil)

// NewMemorySubscriberStore creates an empty store.
func NewMemorySubscriberStore() *MemorySubscriberStore {
	return &MemorySubscriberStore{subscribers: make(map[int64]*Subscriber)}
}

// Add inserts or replaces a subscriber.
func (s *MemorySubscriberStore) Add(subscriber *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[subscriber.ID] = subscriber
}

func (s *MemorySubscriberStore) GetSubscriber(_ context.Context, id int64) (*Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subscriber, ok := s.subscribers[id]
	if !ok {
		return nil, fmt.Errorf("subscriber %d: %w", id, ErrSubscriberNotFound)
	}
	copied := *subscriber
	return &copied, nil
}

// MemorySegmentStore is an in-memory SegmentStore for tests and demos.
type MemorySegmentStore struct {
	mu       sync.RWMutex
	segments map[int64]*Segment
}

var _ SegmentStore = (*MemorySegmentStore)(nil)

// NewMemorySegmentStore creates an empty store.
func NewMemorySegmentStore() *MemorySegmentStore {
	return &MemorySegmentStore{segments: make(map[int64]*Segment)}
}

// Add inserts or replaces a segment.
func (s *MemorySegmentStore) Add(segment *Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[segment.ID] = segment
}

func (s *MemorySegmentStore) GetSegment(_ context.Context, id int64) (*Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segment, ok := s.segments[id]
	if !ok {
		return nil, fmt.Errorf("segment %d: %w", id, ErrSegmentNotFound)
	}
	copied := *segment
	return &copied, nil
}

// Register wires the whole integration into a registry. The returned trigger
// is the domain entry point: call its HandleSubscription when a subscriber
// joins a segment.
func Register(reg *registry.Registry, subscribers SubscriberStore, segments SegmentStore, mailer Mailer) (*SegmentSubscribedTrigger, error) {
	if err := reg.AddSubject(NewSubscriberSubject(subscribers)); err != nil {
		return nil, err
	}
	if err := reg.AddSubject(NewSegmentSubject(segments)); err != nil {
		return nil, err
	}
	trigger := NewSegmentSubscribedTrigger()
	if err := reg.AddTrigger(trigger); err != nil {
		return nil, err
	}
	if err := reg.AddAction(NewSendEmailAction(mailer)); err != nil {
		return nil, err
	}
	return trigger, nil
}

// argInt64 reads an integer argument that may arrive as any JSON numeric
// representation after round-tripping through storage.
func argInt64(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}
