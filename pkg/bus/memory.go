package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SigFuse/internal/domain/repository"
)

// MemoryStream is an in-process Bus used by tests and dry-run tooling.
// Ordering matches append order per topic; acks tombstone entries.
type MemoryStream struct {
	mu     sync.Mutex
	topics map[string][]repository.BusMessage
	cursor map[string]int // topic:group read position
	seq    int64
}

// NewMemoryStream creates an empty in-memory bus.
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{
		topics: make(map[string][]repository.BusMessage),
		cursor: make(map[string]int),
	}
}

func (s *MemoryStream) Publish(_ context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.topics[topic] = append(s.topics[topic], repository.BusMessage{
		ID:      fmt.Sprintf("%d-0", s.seq),
		Payload: data,
	})
	return nil
}

func (s *MemoryStream) Read(_ context.Context, topic, group, _ string, count int, _ time.Duration) ([]repository.BusMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := topic + ":" + group
	pos := s.cursor[key]
	entries := s.topics[topic]
	if pos >= len(entries) {
		return nil, nil
	}

	end := pos + count
	if end > len(entries) {
		end = len(entries)
	}
	out := make([]repository.BusMessage, end-pos)
	copy(out, entries[pos:end])
	s.cursor[key] = end
	return out, nil
}

func (s *MemoryStream) Ack(_ context.Context, _, _ string, _ ...string) error { return nil }

func (s *MemoryStream) Close() error { return nil }

// Len reports the number of entries appended to a topic.
func (s *MemoryStream) Len(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.topics[topic])
}

var _ repository.Bus = (*MemoryStream)(nil)
