package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agent-trader/internal/brokererr"
	"agent-trader/internal/types"
)

// event is one line of an agent's append-only ledger log. The full record
// is never rewritten; state is rebuilt by replaying the log, which removes
// the last-writer-wins hazard of whole-document persistence.
type event struct {
	Kind        string              `json:"kind"` // decision | outcome
	At          time.Time           `json:"at"`
	Decision    *DecisionRecord     `json:"decision,omitempty"`
	DecisionID  string              `json:"decision_id,omitempty"`
	Outcome     *types.TradeOutcome `json:"outcome,omitempty"`
	Performance *TradePerformance   `json:"performance,omitempty"`
}

// Store appends ledger events to one JSONL file per agent.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(agentID string) string {
	return filepath.Join(s.dir, agentID+".jsonl")
}

// Append writes one event for agentID. Failures come back as
// PersistenceError so callers can keep in-memory state and retry on the
// next mutation.
func (s *Store) Append(agentID string, ev event) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &brokererr.PersistenceError{Op: "mkdir", Err: err}
	}
	f, err := os.OpenFile(s.path(agentID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &brokererr.PersistenceError{Op: "open", Err: err}
	}
	defer f.Close()

	b, err := json.Marshal(ev)
	if err != nil {
		return &brokererr.PersistenceError{Op: "marshal", Err: err}
	}
	if _, err := fmt.Fprintln(f, string(b)); err != nil {
		return &brokererr.PersistenceError{Op: "append", Err: err}
	}
	return nil
}

// Replay reads every event for agentID in order. A missing file means an
// empty history, not an error.
func (s *Store) Replay(agentID string) ([]event, error) {
	f, err := os.Open(s.path(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &brokererr.PersistenceError{Op: "open", Err: err}
	}
	defer f.Close()

	var events []event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event
		if err := json.Unmarshal(line, &ev); err != nil {
			// A torn trailing line from a crashed writer is skipped; the
			// events before it are intact.
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, &brokererr.PersistenceError{Op: "scan", Err: err}
	}
	return events, nil
}

// AgentIDs lists every agent with a ledger file.
func (s *Store) AgentIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &brokererr.PersistenceError{Op: "readdir", Err: err}
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".jsonl")])
	}
	return ids, nil
}
