// Package fixtures loads case and thread records from JSON documents and
// keeps a directory of them synchronised into a record sink.
package fixtures

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

// Set is a batch of records.
type Set struct {
	Cases   []review.Case  `json:"cases"`
	Threads []comms.Thread `json:"threads"`
}

// Len is the total number of records.
func (s Set) Len() int { return len(s.Cases) + len(s.Threads) }

// Merge appends other to s. Later records replace earlier ones with the same id.
func (s Set) Merge(other Set) Set {
	out := Set{
		Cases:   slices.Clone(s.Cases),
		Threads: slices.Clone(s.Threads),
	}
	for _, c := range other.Cases {
		if i := slices.IndexFunc(out.Cases, func(x review.Case) bool { return x.ID == c.ID }); i >= 0 {
			out.Cases[i] = c
		} else {
			out.Cases = append(out.Cases, c)
		}
	}
	for _, t := range other.Threads {
		if i := slices.IndexFunc(out.Threads, func(x comms.Thread) bool { return x.ID == t.ID }); i >= 0 {
			out.Threads[i] = t
		} else {
			out.Threads = append(out.Threads, t)
		}
	}
	return out
}

// line is one JSONL entry: exactly one of the fields is set.
type line struct {
	Case   *review.Case  `json:"case"`
	Thread *comms.Thread `json:"thread"`
}

// Load parses a JSON document of the form {"cases": [...], "threads": [...]}.
func Load(r io.Reader) (Set, error) {
	var set Set
	dec := json.NewDecoder(r)
	if err := dec.Decode(&set); err != nil {
		return Set{}, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := set.validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// LoadLines parses JSONL where each line is {"case": {...}} or
// {"thread": {...}}. Blank lines are skipped; the returned count is the
// number of lines that failed to parse.
func LoadLines(r io.Reader) (Set, int, error) {
	var set Set
	bad := 0
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			bad++
			continue
		}
		switch {
		case l.Case != nil && l.Case.ID != "":
			set.Cases = append(set.Cases, *l.Case)
		case l.Thread != nil && l.Thread.ID != "":
			set.Threads = append(set.Threads, *l.Thread)
		default:
			bad++
		}
	}
	if err := scanner.Err(); err != nil {
		return set, bad, fmt.Errorf("read fixture lines: %w", err)
	}
	return set, bad, nil
}

// LoadFile loads a .json or .jsonl fixture file.
func LoadFile(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".jsonl") {
		set, bad, err := LoadLines(f)
		if err != nil {
			return set, err
		}
		if bad > 0 {
			return set, fmt.Errorf("%s: %d unreadable lines", path, bad)
		}
		return set, nil
	}
	set, err := Load(f)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

func (s Set) validate() error {
	seen := make(map[string]bool, s.Len())
	for _, c := range s.Cases {
		if c.ID == "" {
			return fmt.Errorf("case %q has no id", c.ClientName)
		}
		if seen["case:"+c.ID] {
			return fmt.Errorf("duplicate case id %s", c.ID)
		}
		seen["case:"+c.ID] = true
	}
	for _, t := range s.Threads {
		if t.ID == "" {
			return fmt.Errorf("thread %q has no id", t.Subject)
		}
		if seen["thread:"+t.ID] {
			return fmt.Errorf("duplicate thread id %s", t.ID)
		}
		seen["thread:"+t.ID] = true
	}
	return nil
}

// Sink receives loaded records. *store.Store satisfies it.
type Sink interface {
	SaveCase(ctx context.Context, c review.Case) error
	SaveThread(ctx context.Context, t comms.Thread) error
}

// Apply writes every record of set into sink and returns how many were saved.
func Apply(ctx context.Context, sink Sink, set Set) (int, error) {
	n := 0
	for _, c := range set.Cases {
		if err := sink.SaveCase(ctx, c); err != nil {
			return n, fmt.Errorf("save case %s: %w", c.ID, err)
		}
		n++
	}
	for _, t := range set.Threads {
		if err := sink.SaveThread(ctx, t); err != nil {
			return n, fmt.Errorf("save thread %s: %w", t.ID, err)
		}
		n++
	}
	return n, nil
}

// Static is an in-memory repository for both record kinds. It is also a Sink,
// so a Watcher can keep it current without a database.
type Static struct {
	mu  sync.RWMutex
	set Set
}

// NewStatic returns a repository serving set.
func NewStatic(set Set) *Static {
	return &Static{set: set.Merge(Set{})}
}

func (s *Static) ListCases(ctx context.Context) ([]review.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.set.Cases), nil
}

func (s *Static) ListThreads(ctx context.Context) ([]comms.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.set.Threads), nil
}

func (s *Static) SaveCase(ctx context.Context, c review.Case) error {
	s.mu.Lock()
	s.set = s.set.Merge(Set{Cases: []review.Case{c}})
	s.mu.Unlock()
	return nil
}

func (s *Static) SaveThread(ctx context.Context, t comms.Thread) error {
	s.mu.Lock()
	s.set = s.set.Merge(Set{Threads: []comms.Thread{t}})
	s.mu.Unlock()
	return nil
}
