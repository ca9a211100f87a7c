package ocrsvc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lexsuite/lexocr/internal/testutil"
)

func TestDefaults(t *testing.T) {
	if DefaultContainerName != "lexocr-easyocr" {
		t.Errorf("unexpected default container name: %s", DefaultContainerName)
	}
	if DefaultPort != "8765" {
		t.Errorf("unexpected default port: %s", DefaultPort)
	}
	if ContainerPort != "8765/tcp" {
		t.Errorf("unexpected container port: %s", ContainerPort)
	}
}

func TestNewManagerAppliesDefaults(t *testing.T) {
	mgr, err := NewManager(Config{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if mgr.containerName != DefaultContainerName {
		t.Errorf("containerName = %q, want %q", mgr.containerName, DefaultContainerName)
	}
	if mgr.imageName != DefaultImage {
		t.Errorf("imageName = %q, want %q", mgr.imageName, DefaultImage)
	}
	if mgr.hostPort != DefaultPort {
		t.Errorf("hostPort = %q, want %q", mgr.hostPort, DefaultPort)
	}
	if mgr.labels[Label] != "true" {
		t.Errorf("labels missing %s marker: %v", Label, mgr.labels)
	}
}

func TestURL(t *testing.T) {
	mgr, err := NewManager(Config{HostPort: "9999"})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if got := mgr.URL(); got != "http://localhost:9999" {
		t.Errorf("URL() = %q", got)
	}
}

// TestContainerLifecycle exercises the real Docker lifecycle. It is
// opt-in: set LEXOCR_DOCKER_TESTS=1 with Docker running and the
// recognition image available.
func TestContainerLifecycle(t *testing.T) {
	if os.Getenv("LEXOCR_DOCKER_TESTS") == "" {
		t.Skip("set LEXOCR_DOCKER_TESTS=1 to run Docker lifecycle tests")
	}
	_ = testutil.DockerClient(t)

	mgr, err := NewManager(Config{
		ContainerName: testutil.UniqueContainerName(t, "easyocr"),
		HostPort:      "18765",
		Labels:        testutil.ContainerLabels(t),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	status, err := mgr.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != StatusRunning {
		t.Fatalf("status = %s, want running", status)
	}

	if err := mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	status, err = mgr.Status(ctx)
	if err != nil {
		t.Fatalf("Status() after stop error = %v", err)
	}
	if status != StatusStopped {
		t.Fatalf("status = %s, want stopped", status)
	}
}
