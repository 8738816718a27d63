package a2a

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrTaskNotFound is returned when a task id is unknown.
var ErrTaskNotFound = errors.New("a2a: task not found")

// defaultTaskCapacity bounds how many tasks a TaskStore retains.
const defaultTaskCapacity = 1024

// TaskStore is an in-memory, concurrency-safe task table. Once capacity is
// reached the oldest terminal tasks are evicted first.
type TaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	order    []string
	capacity int
}

// NewTaskStore returns an empty store with the default capacity.
func NewTaskStore() *TaskStore {
	return NewTaskStoreWithCapacity(defaultTaskCapacity)
}

// NewTaskStoreWithCapacity returns an empty store retaining at most n tasks.
func NewTaskStoreWithCapacity(n int) *TaskStore {
	if n <= 0 {
		n = defaultTaskCapacity
	}
	return &TaskStore{tasks: make(map[string]*Task), capacity: n}
}

// Create stores a new task.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("a2a: task %q already exists", task.ID)
	}
	s.evictLocked()
	t := cloneTask(&task)
	s.tasks[task.ID] = t
	s.order = append(s.order, task.ID)
	return nil
}

// Get returns a copy of the task.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	return cloneTask(t), nil
}

// Update applies fn to the stored task under the write lock.
func (s *TaskStore) Update(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	fn(t)
	return nil
}

// Len returns the number of retained tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *TaskStore) evictLocked() {
	for len(s.order) >= s.capacity {
		victim := -1
		for i, id := range s.order {
			if s.tasks[id].Status.State.IsTerminal() {
				victim = i
				break
			}
		}
		if victim < 0 {
			victim = 0
		}
		delete(s.tasks, s.order[victim])
		s.order = slices.Delete(s.order, victim, victim+1)
	}
}

func cloneTask(src *Task) *Task {
	dst := *src
	dst.Artifacts = nil
	for _, a := range src.Artifacts {
		a.Parts = cloneParts(a.Parts)
		dst.Artifacts = append(dst.Artifacts, a)
	}
	dst.History = nil
	for _, m := range src.History {
		dst.History = append(dst.History, cloneMessage(m))
	}
	if src.Status.Message != nil {
		m := cloneMessage(*src.Status.Message)
		dst.Status.Message = &m
	}
	return &dst
}

func cloneMessage(m Message) Message {
	m.Parts = cloneParts(m.Parts)
	return m
}

func cloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	out := make([]Part, len(parts))
	for i, p := range parts {
		p.Data = slices.Clone(p.Data)
		out[i] = p
	}
	return out
}
