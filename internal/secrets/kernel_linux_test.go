//go:build linux

package secrets

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestKernelKeyring(t *testing.T) {
	name := fmt.Sprintf("lenspost-test-%d", os.Getpid())
	if err := StoreKernel(name, "first"); err != nil {
		t.Skipf("kernel keyring unavailable: %v", err)
	}
	t.Cleanup(func() { _ = DeleteKernel(name) })

	if err := StoreKernel(name, "second value"); err != nil {
		t.Fatalf("StoreKernel (replace) failed: %v", err)
	}
	got, err := RetrieveKernel(name)
	if err != nil {
		t.Fatalf("RetrieveKernel failed: %v", err)
	}
	if got != "second value" {
		t.Errorf("RetrieveKernel = %q, want %q", got, "second value")
	}

	if err := DeleteKernel(name); err != nil {
		t.Fatalf("DeleteKernel failed: %v", err)
	}
	if _, err := RetrieveKernel(name); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := DeleteKernel(name); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
