package tags

import (
	"sync"

	"github.com/google/uuid"
)

// progressRetain bounds how many finished scans the board remembers.
const progressRetain = 16

// State is a coarse progress snapshot for one similarity scan.
type State struct {
	ScanID  string `json:"scan_id"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
	Done    bool   `json:"done"`
}

// Board tracks progress per scan, keyed by a correlation identifier, so
// concurrent scans do not clobber each other. Polling without an identifier
// returns the most recently started scan.
type Board struct {
	mu    sync.Mutex
	scans map[string]*State
	order []string
}

// NewBoard returns an empty progress board.
func NewBoard() *Board {
	return &Board{scans: make(map[string]*State)}
}

// Begin registers a new scan and returns its identifier.
func (b *Board) Begin(total int) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.scans[id] = &State{ScanID: id, Total: total, Message: "Starting comparison"}
	b.order = append(b.order, id)
	for len(b.order) > progressRetain {
		delete(b.scans, b.order[0])
		b.order = b.order[1:]
	}
	return id
}

// Update overwrites the scan's current position and message.
func (b *Board) Update(id string, current int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.scans[id]; ok {
		state.Current = current
		state.Message = message
	}
}

// Finish marks the scan complete.
func (b *Board) Finish(id string, current int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.scans[id]; ok {
		state.Current = current
		state.Message = message
		state.Done = true
	}
}

// Get returns a snapshot for the given scan, or the most recently started
// scan when id is empty.
func (b *Board) Get(id string) (State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == "" {
		if len(b.order) == 0 {
			return State{}, false
		}
		id = b.order[len(b.order)-1]
	}
	state, ok := b.scans[id]
	if !ok {
		return State{}, false
	}
	return *state, true
}
