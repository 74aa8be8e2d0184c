package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recodeai/recode"
)

func newCall(id, name string, params map[string]string) recode.ToolUse {
	return recode.ToolUse{ID: id, Name: name, Params: params}
}

func TestExecutor_Execute(t *testing.T) {
	t.Run("success produces result with output", func(t *testing.T) {
		reg := NewRegistry()
		reg.MustRegister(Registration{
			Name: "echo",
			Handler: func(ctx context.Context, call recode.ToolUse) (string, error) {
				return "hello " + call.Param("who"), nil
			},
		})

		ex := NewExecutor(reg)
		res := ex.Execute(context.Background(), newCall("c1", "echo", map[string]string{"who": "world"}))

		assert.False(t, res.IsError)
		assert.Equal(t, "hello world", res.Content)
		assert.Equal(t, "c1", res.ToolUseID)
		assert.Equal(t, "echo", res.ToolName)
		assert.False(t, res.CompletedAt.IsZero())
	})

	t.Run("handler error becomes failed result, not panic", func(t *testing.T) {
		reg := NewRegistry()
		reg.MustRegister(Registration{
			Name: "broken",
			Handler: func(ctx context.Context, call recode.ToolUse) (string, error) {
				return "", Failf(FailureFileNotFound, "nope.txt does not exist")
			},
		})

		ex := NewExecutor(reg)
		res := ex.Execute(context.Background(), newCall("c2", "broken", nil))

		assert.True(t, res.IsError)
		assert.Contains(t, res.Content, "nope.txt does not exist")
	})

	t.Run("unknown tool becomes failed result", func(t *testing.T) {
		ex := NewExecutor(NewRegistry())
		res := ex.Execute(context.Background(), newCall("c3", "ghost", nil))

		assert.True(t, res.IsError)
		assert.Contains(t, res.Content, `no handler registered for "ghost"`)
	})

	t.Run("exactly once per call id", func(t *testing.T) {
		count := 0
		reg := NewRegistry()
		reg.MustRegister(Registration{
			Name: "counter",
			Handler: func(ctx context.Context, call recode.ToolUse) (string, error) {
				count++
				return "ok", nil
			},
		})

		ex := NewExecutor(reg)
		first := ex.Execute(context.Background(), newCall("c4", "counter", nil))
		second := ex.Execute(context.Background(), newCall("c4", "counter", nil))

		assert.False(t, first.IsError)
		assert.True(t, second.IsError)
		assert.Equal(t, 1, count)
		assert.True(t, ex.Executed("c4"))
	})

	t.Run("cancellation records cancelled outcome", func(t *testing.T) {
		reg := NewRegistry()
		reg.MustRegister(Registration{
			Name: "sleepy",
			Handler: func(ctx context.Context, call recode.ToolUse) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		ex := NewExecutor(reg)
		res := ex.Execute(ctx, newCall("c5", "sleepy", nil))

		assert.True(t, res.IsError)
		assert.Contains(t, res.Content, "interrupted")
	})

	t.Run("handler timeout records timeout outcome", func(t *testing.T) {
		reg := NewRegistry()
		reg.MustRegister(Registration{
			Name: "slow",
			Handler: func(ctx context.Context, call recode.ToolUse) (string, error) {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(time.Second):
					return "done", nil
				}
			},
		})

		ex := NewExecutor(reg, WithHandlerTimeout(10*time.Millisecond))
		res := ex.Execute(context.Background(), newCall("c6", "slow", nil))

		assert.True(t, res.IsError)
		assert.Contains(t, res.Content, "timed out")
	})

	t.Run("long output is truncated", func(t *testing.T) {
		reg := NewRegistry()
		reg.MustRegister(Registration{
			Name: "firehose",
			Handler: func(ctx context.Context, call recode.ToolUse) (string, error) {
				out := make([]byte, 5000)
				for i := range out {
					out[i] = 'x'
				}
				return string(out), nil
			},
		})

		limits := Limits{MaxChars: map[string]int{"firehose": 100}, Fallback: 100}
		ex := NewExecutor(reg, WithLimits(limits))
		res := ex.Execute(context.Background(), newCall("c7", "firehose", nil))

		assert.False(t, res.IsError)
		assert.Less(t, len(res.Content), 5000)
		assert.Contains(t, res.Content, "output truncated")
	})
}

func TestFailureKinds(t *testing.T) {
	err := Failf(FailureNonZeroExit, "exit 1")
	assert.Equal(t, FailureNonZeroExit, KindOf(err))

	wrapped := errors.Join(errors.New("outer"), err)
	assert.Equal(t, FailureNonZeroExit, KindOf(wrapped))

	assert.Equal(t, FailureKind(""), KindOf(errors.New("untyped")))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Registration{Name: "a", Handler: func(ctx context.Context, call recode.ToolUse) (string, error) { return "", nil }}))

	err := reg.Register(Registration{Name: "a", Handler: func(ctx context.Context, call recode.ToolUse) (string, error) { return "", nil }})
	var dup *ErrAlreadyRegistered
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Name)

	assert.Equal(t, 1, reg.Len())
	reg.Unregister("a")
	assert.Equal(t, 0, reg.Len())
}
