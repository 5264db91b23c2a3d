package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/authn"
	"github.com/ajime-dev/ajime-agent/internal/storage"
)

type fakeDeployBackend struct {
	pending []Deployment
	err     error
	updates []StatusUpdate
	logs    []Log
}

func (f *fakeDeployBackend) PendingDeployments(ctx context.Context, deviceID, token string) ([]Deployment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pending, nil
}

func (f *fakeDeployBackend) UpdateDeploymentStatus(ctx context.Context, deploymentID, token string, update StatusUpdate) error {
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeDeployBackend) SendDeploymentLog(ctx context.Context, deploymentID, token string, entry Log) error {
	f.logs = append(f.logs, entry)
	return nil
}

func newDeployerTokenManager(t *testing.T) *authn.Manager {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	d := &storage.Device{ID: "dev-1", Token: "bare-secret", ActivatedAt: time.Now()}
	if err := d.Save(layout); err != nil {
		t.Fatalf("seed device Save() error = %v", err)
	}
	return authn.NewManager(layout, nil)
}

func TestDeployer_UnsupportedTypeReportsFailure(t *testing.T) {
	backend := &fakeDeployBackend{pending: []Deployment{
		{ID: "dep-1", DeploymentType: "unknown_kind", Config: json.RawMessage(`{}`)},
	}}
	d := New(backend, newDeployerTokenManager(t), t.TempDir(), nil)

	if err := d.PollAndExecute(context.Background()); err != nil {
		t.Fatalf("PollAndExecute() error = %v, want nil (per-deployment errors are logged, not returned)", err)
	}

	if len(backend.updates) != 2 {
		t.Fatalf("status updates = %d, want 2 (in_progress, failed)", len(backend.updates))
	}
	if backend.updates[0].Status != "in_progress" {
		t.Errorf("first status = %q, want in_progress", backend.updates[0].Status)
	}
	if backend.updates[1].Status != "failed" {
		t.Errorf("final status = %q, want failed", backend.updates[1].Status)
	}
	if backend.updates[1].ErrorMessage == nil {
		t.Error("failed status update should carry an error message")
	}
}

func TestDeployer_PollError_Propagates(t *testing.T) {
	backend := &fakeDeployBackend{err: errors.New("network down")}
	d := New(backend, newDeployerTokenManager(t), t.TempDir(), nil)

	if err := d.PollAndExecute(context.Background()); err == nil {
		t.Fatal("PollAndExecute() error = nil, want poll failure surfaced")
	}
}

func TestDeployer_NoDeployments_IsNoop(t *testing.T) {
	backend := &fakeDeployBackend{pending: nil}
	d := New(backend, newDeployerTokenManager(t), t.TempDir(), nil)

	if err := d.PollAndExecute(context.Background()); err != nil {
		t.Fatalf("PollAndExecute() error = %v", err)
	}
	if len(backend.updates) != 0 {
		t.Errorf("updates = %d, want 0 when there is nothing pending", len(backend.updates))
	}
}
