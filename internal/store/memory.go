package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"snappit/internal/models"
)

// Memory is an in-process Store used by tests and local development. A
// single mutex covers documents, sets and subscriptions, so batches are
// genuinely atomic and events are delivered in write order.
type Memory struct {
	mu   sync.Mutex
	docs map[string][]byte
	sets map[string]map[string]struct{}
	subs map[*memorySub]struct{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string][]byte),
		sets: make(map[string]map[string]struct{}),
		subs: make(map[*memorySub]struct{}),
	}
}

type memorySub struct {
	parent *Memory
	prefix string
	ch     chan Event
	once   sync.Once
}

func (s *memorySub) Events() <-chan Event { return s.ch }

func (s *memorySub) Close() {
	s.once.Do(func() {
		s.parent.mu.Lock()
		delete(s.parent.subs, s)
		s.parent.mu.Unlock()
		close(s.ch)
	})
}

func (m *Memory) Get(_ context.Context, path string, dest any) error {
	m.mu.Lock()
	raw, ok := m.docs[path]
	m.mu.Unlock()
	if !ok {
		return models.NewNotFoundError("Document", path)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return models.NewRemoteError(err)
	}
	return nil
}

func (m *Memory) Put(_ context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return models.NewRemoteError(err)
	}
	m.mu.Lock()
	m.docs[path] = raw
	m.notifyLocked(Event{Path: path, Raw: raw})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	if _, ok := m.docs[path]; ok {
		delete(m.docs, path)
		m.notifyLocked(Event{Path: path, Deleted: true})
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix string, each func(path string, raw []byte) error) error {
	m.mu.Lock()
	paths := make([]string, 0, len(m.docs))
	for p := range m.docs {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	snapshot := make(map[string][]byte, len(paths))
	for _, p := range paths {
		snapshot[p] = m.docs[p]
	}
	m.mu.Unlock()

	for _, p := range paths {
		if err := each(p, snapshot[p]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Members(_ context.Context, path string) ([]string, error) {
	m.mu.Lock()
	set := m.sets[path]
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	m.mu.Unlock()
	sort.Strings(members)
	return members, nil
}

func (m *Memory) Batch(_ context.Context, ops ...Op) error {
	for _, op := range ops {
		if op.Kind != OpAddMember && op.Kind != OpRemoveMember {
			return models.NewRemoteError(errInvalidOp)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case OpAddMember:
			set, ok := m.sets[op.Path]
			if !ok {
				set = make(map[string]struct{})
				m.sets[op.Path] = set
			}
			set[op.Member] = struct{}{}
		case OpRemoveMember:
			delete(m.sets[op.Path], op.Member)
		}
		m.notifyLocked(Event{Path: op.Path, Raw: m.marshalSetLocked(op.Path)})
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, prefix string) (Subscription, error) {
	sub := &memorySub{parent: m, prefix: prefix, ch: make(chan Event, 256)}
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()
	return sub, nil
}

func (m *Memory) marshalSetLocked(path string) []byte {
	members := make([]string, 0, len(m.sets[path]))
	for member := range m.sets[path] {
		members = append(members, member)
	}
	sort.Strings(members)
	raw, _ := json.Marshal(members)
	return raw
}

// notifyLocked fans an event out to matching subscribers. Sends are
// non-blocking; a subscriber that falls 256 events behind loses updates,
// matching the best-effort semantics of the real backend.
func (m *Memory) notifyLocked(ev Event) {
	for sub := range m.subs {
		if !strings.HasPrefix(ev.Path, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

var errInvalidOp = errors.New("unknown batch op kind")
