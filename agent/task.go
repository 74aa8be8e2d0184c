package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusIdle means the task has been created but not started.
	StatusIdle Status = "idle"

	// StatusRunning means the agent loop is executing.
	StatusRunning Status = "running"

	// StatusAwaitingApproval means the loop is suspended on a tool call
	// approval decision.
	StatusAwaitingApproval Status = "awaiting_approval"

	// StatusCompleted means the task finished via attempt_completion or a
	// final narration.
	StatusCompleted Status = "completed"

	// StatusCancelled means the task's context was cancelled.
	StatusCancelled Status = "cancelled"

	// StatusFailed means the task hit an unrecoverable error.
	StatusFailed Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Task is one autonomous coding session: a user goal, its conversation, and
// its lifecycle status.
type Task struct {
	// ID uniquely identifies the task and keys its persisted history.
	ID string

	// Goal is the user's original request.
	Goal string

	// CreatedAt is when the task was created.
	CreatedAt time.Time

	mu     sync.Mutex
	status Status
}

// NewTask creates a task in StatusIdle.
func NewTask(goal string) *Task {
	return &Task{
		ID:        "task-" + uuid.New().String(),
		Goal:      goal,
		CreatedAt: time.Now(),
		status:    StatusIdle,
	}
}

// Status returns the task's current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// setStatus transitions the task, refusing to leave a terminal status.
func (t *Task) setStatus(s Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return false
	}
	t.status = s
	return true
}
