package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/recodeai/recode"
)

func call(id, name string) recode.ToolUse {
	return recode.ToolUse{ID: id, Name: name}
}

func TestGate_Evaluate(t *testing.T) {
	t.Run("allow-listed tool is auto-approved", func(t *testing.T) {
		g := NewGate(NewPolicy("read_file", "list_files"))
		if got := g.Evaluate(call("c1", "read_file")); got != StateAutoApproved {
			t.Fatalf("expected auto_approved, got %s", got)
		}
	})

	t.Run("unlisted tool awaits approval", func(t *testing.T) {
		g := NewGate(NewPolicy("read_file"))
		if got := g.Evaluate(call("c2", "execute_command")); got != StateAwaitingApproval {
			t.Fatalf("expected awaiting_approval, got %s", got)
		}
	})

	t.Run("empty policy requires approval for everything", func(t *testing.T) {
		g := NewGate(NewPolicy())
		if got := g.Evaluate(call("c3", "write_file")); got != StateAwaitingApproval {
			t.Fatalf("expected awaiting_approval, got %s", got)
		}
	})

	t.Run("completion and followup are exempt", func(t *testing.T) {
		g := NewGate(NewPolicy())
		if got := g.Evaluate(call("c4", "attempt_completion")); got != StateAutoApproved {
			t.Fatalf("expected auto_approved, got %s", got)
		}
		if got := g.Evaluate(call("c5", "ask_followup_question")); got != StateAutoApproved {
			t.Fatalf("expected auto_approved, got %s", got)
		}
	})
}

func TestGate_WaitAndDecide(t *testing.T) {
	t.Run("approve releases waiter", func(t *testing.T) {
		g := NewGate(NewPolicy())

		var wg sync.WaitGroup
		wg.Add(1)
		var got State
		go func() {
			defer wg.Done()
			got, _ = g.Wait(context.Background(), call("c1", "write_file"))
		}()

		time.Sleep(10 * time.Millisecond)
		if err := g.Approve("c1"); err != nil {
			t.Fatal(err)
		}
		wg.Wait()

		if got != StateApproved {
			t.Errorf("expected approved, got %s", got)
		}
		if g.StateOf("c1") != StateApproved {
			t.Errorf("state not recorded")
		}
	})

	t.Run("deny carries reason", func(t *testing.T) {
		g := NewGate(NewPolicy())

		var wg sync.WaitGroup
		wg.Add(1)
		var got State
		var reason string
		go func() {
			defer wg.Done()
			got, reason = g.Wait(context.Background(), call("c2", "execute_command"))
		}()

		time.Sleep(10 * time.Millisecond)
		if err := g.Deny("c2", "not on my machine"); err != nil {
			t.Fatal(err)
		}
		wg.Wait()

		if got != StateDenied {
			t.Errorf("expected denied, got %s", got)
		}
		if reason != "not on my machine" {
			t.Errorf("expected reason, got %q", reason)
		}
	})

	t.Run("cancellation forces denied", func(t *testing.T) {
		g := NewGate(NewPolicy())
		ctx, cancel := context.WithCancel(context.Background())

		var wg sync.WaitGroup
		wg.Add(1)
		var got State
		var reason string
		go func() {
			defer wg.Done()
			got, reason = g.Wait(ctx, call("c3", "write_file"))
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()
		wg.Wait()

		if got != StateDenied {
			t.Errorf("expected denied, got %s", got)
		}
		if reason != "task cancelled" {
			t.Errorf("unexpected reason %q", reason)
		}
	})

	t.Run("timeout forces denied", func(t *testing.T) {
		g := NewGate(NewPolicy(), WithDecisionTimeout(20*time.Millisecond))
		got, reason := g.Wait(context.Background(), call("c4", "execute_command"))
		if got != StateDenied {
			t.Errorf("expected denied, got %s", got)
		}
		if reason != "approval timed out" {
			t.Errorf("unexpected reason %q", reason)
		}
	})

	t.Run("decide without pending call errors", func(t *testing.T) {
		g := NewGate(NewPolicy())
		if err := g.Approve("nope"); err == nil {
			t.Error("expected error for unknown tool use")
		}
	})

	t.Run("decisions are monotonic", func(t *testing.T) {
		g := NewGate(NewPolicy())

		done := make(chan struct{})
		go func() {
			defer close(done)
			g.Wait(context.Background(), call("c5", "write_file"))
		}()

		time.Sleep(10 * time.Millisecond)
		if err := g.Approve("c5"); err != nil {
			t.Fatal(err)
		}
		<-done

		if err := g.Deny("c5", "changed my mind"); err == nil {
			t.Error("expected error reversing a terminal decision")
		}
		if g.StateOf("c5") != StateApproved {
			t.Error("terminal state must not revert")
		}
	})

	t.Run("onAwait fires before blocking", func(t *testing.T) {
		proposed := make(chan recode.ToolUse, 1)
		g := NewGate(NewPolicy(), WithOnAwait(func(tu recode.ToolUse) {
			proposed <- tu
		}))

		go g.Wait(context.Background(), call("c6", "execute_command"))

		select {
		case tu := <-proposed:
			if tu.ID != "c6" {
				t.Errorf("unexpected tool use %q", tu.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("onAwait never fired")
		}
		if g.PendingCount() != 1 {
			t.Errorf("expected one pending approval, got %d", g.PendingCount())
		}
		g.Approve("c6")
	})
}

func TestGate_DecisionBeforeWait(t *testing.T) {
	t.Run("decision after Evaluate is parked for Wait", func(t *testing.T) {
		g := NewGate(NewPolicy())
		if got := g.Evaluate(call("c1", "write_file")); got != StateAwaitingApproval {
			t.Fatalf("expected awaiting_approval, got %s", got)
		}
		if err := g.Approve("c1"); err != nil {
			t.Fatalf("approve before Wait: %v", err)
		}

		got, reason := g.Wait(context.Background(), call("c1", "write_file"))
		if got != StateApproved {
			t.Fatalf("expected approved, got %s (%s)", got, reason)
		}
	})

	t.Run("parked denial carries its reason", func(t *testing.T) {
		g := NewGate(NewPolicy())
		g.Evaluate(call("c2", "execute_command"))
		if err := g.Deny("c2", "not in this repo"); err != nil {
			t.Fatalf("deny before Wait: %v", err)
		}

		got, reason := g.Wait(context.Background(), call("c2", "execute_command"))
		if got != StateDenied {
			t.Fatalf("expected denied, got %s", got)
		}
		if reason != "not in this repo" {
			t.Fatalf("expected denial reason to survive parking, got %q", reason)
		}
	})

	t.Run("unknown id still errors", func(t *testing.T) {
		g := NewGate(NewPolicy())
		if err := g.Approve("never-seen"); err == nil {
			t.Fatal("expected an error for an id the gate never evaluated")
		}
	})

	t.Run("first parked decision wins", func(t *testing.T) {
		g := NewGate(NewPolicy())
		g.Evaluate(call("c3", "write_file"))
		if err := g.Deny("c3", "first"); err != nil {
			t.Fatalf("deny: %v", err)
		}
		if err := g.Approve("c3"); err != nil {
			t.Fatalf("second decision should be dropped, not rejected: %v", err)
		}

		got, reason := g.Wait(context.Background(), call("c3", "write_file"))
		if got != StateDenied || reason != "first" {
			t.Fatalf("expected the first decision to win, got %s (%s)", got, reason)
		}
	})
}

func TestPolicy_SetAutoApproved(t *testing.T) {
	p := NewPolicy("read_file")

	p.SetAutoApproved("execute_command", true)
	if !p.AutoApproved("execute_command") {
		t.Fatal("expected execute_command to be auto-approved after update")
	}

	p.SetAutoApproved("read_file", false)
	if p.AutoApproved("read_file") {
		t.Fatal("expected read_file to require approval after update")
	}
}
