package live

import (
	"sync"
	"time"

	"github.com/versolabs/studio/pkg/audio"
)

// Sink plays one decoded buffer. Implementations are expected to be fast;
// the scheduler calls Play from timer goroutines.
type Sink interface {
	Play(buf *audio.Buffer) error
}

// Scheduler queues decoded audio buffers for gapless sequential playback.
// Each buffer starts at max(now, cursor) and the cursor advances by the
// buffer's duration, so chunks that arrive faster than real time stack up
// back to back instead of overlapping.
type Scheduler struct {
	sink Sink
	now  func() time.Time

	mu     sync.Mutex
	cursor time.Time // zero means the next buffer starts immediately
	active map[int64]*time.Timer
	nextID int64
}

// NewScheduler returns a scheduler that plays through sink.
func NewScheduler(sink Sink) *Scheduler {
	return &Scheduler{
		sink:   sink,
		now:    time.Now,
		active: make(map[int64]*time.Timer),
	}
}

// Enqueue schedules buf after everything already queued. It returns the
// wall-clock time the buffer will start playing.
func (s *Scheduler) Enqueue(buf *audio.Buffer) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := now
	if s.cursor.After(now) {
		start = s.cursor
	}
	s.cursor = start.Add(buf.Duration())

	id := s.nextID
	s.nextID++
	s.active[id] = time.AfterFunc(start.Sub(now), func() {
		s.mu.Lock()
		_, live := s.active[id]
		delete(s.active, id)
		s.mu.Unlock()
		if !live {
			return
		}
		_ = s.sink.Play(buf)
	})
	return start
}

// Flush stops every pending buffer and resets the cursor, so the next
// Enqueue starts immediately. Used when the model is interrupted mid-reply.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.active {
		t.Stop()
		delete(s.active, id)
	}
	s.cursor = time.Time{}
}

// Pending returns the number of buffers queued but not yet played.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
