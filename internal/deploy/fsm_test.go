package deploy

import "testing"

func TestFSM_HappyPathTransitions(t *testing.T) {
	f := NewFSM()
	if f.State() != StatePending {
		t.Fatalf("initial state = %v, want pending", f.State())
	}

	steps := []struct {
		event EventKind
		want  State
	}{
		{EventDeploy, StateDeploying},
		{EventDeploySuccess, StateDeployed},
		{EventStart, StateRunning},
		{EventPause, StatePaused},
		{EventResume, StateRunning},
		{EventStop, StateStopped},
	}

	for _, s := range steps {
		if err := f.Process(Event{Kind: s.event}); err != nil {
			t.Fatalf("Process(%s) error = %v", s.event, err)
		}
		if f.State() != s.want {
			t.Fatalf("after %s: state = %v, want %v", s.event, f.State(), s.want)
		}
	}
}

func TestFSM_DeployFailure_RecordsErrorAndRetryCount(t *testing.T) {
	f := NewFSM()
	if err := f.Process(Event{Kind: EventDeploy}); err != nil {
		t.Fatalf("Process(deploy) error = %v", err)
	}
	if err := f.Process(Event{Kind: EventDeployFailed, Message: "test error"}); err != nil {
		t.Fatalf("Process(deploy_failed) error = %v", err)
	}

	if f.State() != StateFailed {
		t.Errorf("State() = %v, want failed", f.State())
	}
	if f.Err() != "test error" {
		t.Errorf("Err() = %q, want %q", f.Err(), "test error")
	}
	if f.RetryCount() != 1 {
		t.Errorf("RetryCount() = %d, want 1", f.RetryCount())
	}
}

func TestFSM_InvalidTransitionReturnsError(t *testing.T) {
	f := NewFSM()
	err := f.Process(Event{Kind: EventStart})
	if err == nil {
		t.Fatal("Process(start) from pending should fail")
	}
	te, ok := err.(*TransitionError)
	if !ok {
		t.Fatalf("error type = %T, want *TransitionError", err)
	}
	if te.From != StatePending || te.Event != EventStart {
		t.Errorf("TransitionError = %+v, want From=pending Event=start", te)
	}
	// A rejected event must not mutate state.
	if f.State() != StatePending {
		t.Errorf("State() after invalid transition = %v, want unchanged pending", f.State())
	}
}

func TestFSM_CanRetry(t *testing.T) {
	f := NewFSM()
	if f.CanRetry(3) {
		t.Error("CanRetry() = true while pending, want false")
	}

	if err := f.Process(Event{Kind: EventDeploy}); err != nil {
		t.Fatal(err)
	}
	if err := f.Process(Event{Kind: EventDeployFailed, Message: "boom"}); err != nil {
		t.Fatal(err)
	}
	if !f.CanRetry(3) {
		t.Error("CanRetry(3) = false after 1 failure, want true")
	}

	for i := 0; i < 2; i++ {
		if err := f.Process(Event{Kind: EventDeploy}); err != nil {
			t.Fatal(err)
		}
		if err := f.Process(Event{Kind: EventDeployFailed, Message: "boom"}); err != nil {
			t.Fatal(err)
		}
	}
	if f.RetryCount() != 3 {
		t.Fatalf("RetryCount() = %d, want 3", f.RetryCount())
	}
	if f.CanRetry(3) {
		t.Error("CanRetry(3) = true at retry count 3, want false (exhausted)")
	}
}

func TestFSM_ResetClearsErrorAndRetryCount(t *testing.T) {
	f := NewFSM()
	f.Process(Event{Kind: EventDeploy})
	f.Process(Event{Kind: EventDeployFailed, Message: "boom"})

	if err := f.Process(Event{Kind: EventReset}); err != nil {
		t.Fatalf("Process(reset) error = %v", err)
	}
	if f.State() != StatePending {
		t.Errorf("State() = %v, want pending", f.State())
	}
	if f.Err() != "" {
		t.Errorf("Err() = %q, want empty after reset", f.Err())
	}
	if f.RetryCount() != 0 {
		t.Errorf("RetryCount() = %d, want 0 after reset", f.RetryCount())
	}
}

func TestFSM_RunningErrorTransition(t *testing.T) {
	f := NewFSM()
	f.Process(Event{Kind: EventDeploy})
	f.Process(Event{Kind: EventDeploySuccess})
	f.Process(Event{Kind: EventStart})

	if err := f.Process(Event{Kind: EventError, Message: "node crashed"}); err != nil {
		t.Fatalf("Process(error) error = %v", err)
	}
	if f.State() != StateFailed {
		t.Errorf("State() = %v, want failed", f.State())
	}
	if f.Err() != "node crashed" {
		t.Errorf("Err() = %q, want %q", f.Err(), "node crashed")
	}
}
