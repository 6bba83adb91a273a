// Package idgen generates event and alert IDs, deterministically when a
// caller has pushed a frozen context and from crypto-random UUIDs otherwise.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// state is one frozen-context entry on the deterministic-id stack.
type state struct {
	seed      int64
	frozenNow time.Time
	counter   uint64
}

var (
	mu    sync.Mutex
	stack []*state
)

// Push enters a deterministic-id context: every NewEventID/NewAlertID call
// until the returned pop func runs derives its id from seed+a monotonic
// counter instead of crypto-random bytes, and its date segment from
// frozenNow instead of time.Now().
//
// Callers are expected to write:
//
//	defer idgen.Push(seed, now)()
//
// so the context is popped on every return path, mirroring defer mu.Unlock().
func Push(seed int64, frozenNow time.Time) (pop func()) {
	mu.Lock()
	s := &state{seed: seed, frozenNow: frozenNow}
	stack = append(stack, s)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		// Pop from the top; a well-behaved caller only ever pops its own
		// frame (the top one), since Push/pop nest like defers.
		if n := len(stack); n > 0 && stack[n-1] == s {
			stack = stack[:n-1]
		}
	}
}

// current returns the top-of-stack frozen context, or nil if none is
// pushed.
func current() *state {
	mu.Lock()
	defer mu.Unlock()
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// next increments and returns the top frame's counter. Must be called with
// a non-nil state from current().
func next(s *state) uint64 {
	mu.Lock()
	defer mu.Unlock()
	s.counter++
	return s.counter
}

// NewEventID returns a new event id: "EVT-<date>-<8 hex>". Inside a pushed
// deterministic-id context, the 8 hex chars are
// sha256(seed|counter)[:4] and the date segment comes from frozenNow; else
// they are uuid.New()[:8] and time.Now().UTC().
func NewEventID() string {
	return newID("EVT")
}

// NewAlertID returns a new alert id: "ALERT-<date>-<8 hex>", following the
// same rules as NewEventID.
func NewAlertID() string {
	return newID("ALERT")
}

func newID(prefix string) string {
	if s := current(); s != nil {
		n := next(s)
		date := s.frozenNow.UTC().Format("20060102")
		sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d", s.seed, n)))
		return fmt.Sprintf("%s-%s-%s", prefix, date, hex.EncodeToString(sum[:])[:8])
	}
	date := time.Now().UTC().Format("20060102")
	return fmt.Sprintf("%s-%s-%s", prefix, date, uuid.New().String()[:8])
}
