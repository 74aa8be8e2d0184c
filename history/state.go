package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StateKey returns the adapter key holding a task's lifecycle record.
func StateKey(taskID string) string {
	return fmt.Sprintf("task/%s/state", taskID)
}

// TaskState is the persisted lifecycle record for a task. Together with the
// messages record it is enough to resume a task after a process restart.
type TaskState struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveState writes a task's lifecycle record.
func SaveState(ctx context.Context, adapter Adapter, state TaskState) error {
	state.UpdatedAt = time.Now()
	raw, err := json.Marshal(state)
	if err != nil {
		return &SerializationError{Key: StateKey(state.ID), Err: err}
	}
	return adapter.Set(ctx, StateKey(state.ID), raw)
}

// LoadState reads a task's lifecycle record. Returns ErrKeyNotFound when
// the task has never been saved.
func LoadState(ctx context.Context, adapter Adapter, taskID string) (TaskState, error) {
	raw, ok, err := adapter.Get(ctx, StateKey(taskID))
	if err != nil {
		return TaskState{}, err
	}
	if !ok {
		return TaskState{}, ErrKeyNotFound
	}

	var state TaskState
	if err := json.Unmarshal(raw, &state); err != nil {
		return TaskState{}, &SerializationError{Key: StateKey(taskID), Err: err}
	}
	return state, nil
}
