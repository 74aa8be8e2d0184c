// Package history manages the conversation log for a task: an append-only,
// sequence-numbered record of every message, with pluggable persistence and
// a token-budgeted window for building provider requests.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/recodeai/recode"
)

// MessagesKey returns the adapter key holding a task's conversation.
func MessagesKey(taskID string) string {
	return fmt.Sprintf("task/%s/messages", taskID)
}

// Log is the append-only conversation record. Sequence numbers are assigned
// at append time, start at 0, and are gapless; appended messages are never
// mutated or reordered.
type Log struct {
	mu       sync.RWMutex
	messages []recode.Message
	adapter  Adapter
}

// NewLog creates an empty Log. If adapter is nil, an in-memory adapter is
// used.
func NewLog(adapter Adapter) *Log {
	if adapter == nil {
		adapter = NewMemoryAdapter()
	}
	return &Log{
		messages: make([]recode.Message, 0),
		adapter:  adapter,
	}
}

// Append adds messages to the log, assigning each the next sequence number.
// It returns the appended copies with sequence numbers filled in.
func (l *Log) Append(msgs ...recode.Message) []recode.Message {
	if len(msgs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	appended := make([]recode.Message, len(msgs))
	for i, msg := range msgs {
		msg.Seq = len(l.messages)
		l.messages = append(l.messages, msg)
		appended[i] = msg
	}
	return appended
}

// Messages returns a copy of all messages in sequence order.
func (l *Log) Messages() []recode.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]recode.Message, len(l.messages))
	copy(result, l.messages)
	return result
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the last n messages. If n exceeds Len, all messages are
// returned.
func (l *Log) Last(n int) []recode.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(l.messages) - n
	if start < 0 {
		start = 0
	}
	result := make([]recode.Message, len(l.messages)-start)
	copy(result, l.messages[start:])
	return result
}

// Sync persists the log to the adapter under the given key.
func (l *Log) Sync(ctx context.Context, key string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	raw, err := json.Marshal(l.messages)
	if err != nil {
		return &SerializationError{Key: key, Err: err}
	}
	return l.adapter.Set(ctx, key, raw)
}

// Reload replaces the log's contents from the adapter, restoring a
// previously synced conversation.
func (l *Log) Reload(ctx context.Context, key string) error {
	raw, ok, err := l.adapter.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrKeyNotFound
	}

	var messages []recode.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return &SerializationError{Key: key, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = messages
	return nil
}

// Adapter returns the underlying adapter.
func (l *Log) Adapter() Adapter {
	return l.adapter
}
