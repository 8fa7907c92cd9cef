package live

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Turn is one committed user-utterance/model-utterance exchange. Immutable
// once committed.
type Turn struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnAccumulator buffers partial transcript text per speaker until a
// turn-completion signal arrives. Deltas are concatenated in arrival order;
// audio fragments and transcript fragments may interleave arbitrarily.
type TurnAccumulator struct {
	mu    sync.Mutex
	user  strings.Builder
	model strings.Builder
	now   func() time.Time
}

// NewTurnAccumulator returns an empty accumulator.
func NewTurnAccumulator() *TurnAccumulator {
	return &TurnAccumulator{now: time.Now}
}

// AppendUser concatenates a user transcript delta to the in-progress turn.
func (a *TurnAccumulator) AppendUser(text string) {
	if a == nil || text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user.WriteString(text)
}

// AppendModel concatenates a model transcript delta to the in-progress turn.
func (a *TurnAccumulator) AppendModel(text string) {
	if a == nil || text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.model.WriteString(text)
}

// Commit finalizes the in-progress turn and resets both fields, ready for
// the next exchange.
func (a *TurnAccumulator) Commit() Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	turn := Turn{
		ID:        newTurnID(),
		User:      a.user.String(),
		Model:     a.model.String(),
		CreatedAt: a.now(),
	}
	a.user.Reset()
	a.model.Reset()
	return turn
}

// Snapshot returns the in-progress text without committing.
func (a *TurnAccumulator) Snapshot() (user, model string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.String(), a.model.String()
}

func newTurnID() string {
	return "t_" + ulid.Make().String()
}

// History records committed turns for the duration of the process. In-memory
// only; there is no persistence across sessions of the host process.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

// Add appends a committed turn.
func (h *History) Add(turn Turn) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
}

// Turns returns a copy of the committed history in commit order.
func (h *History) Turns() []Turn {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of committed turns.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
