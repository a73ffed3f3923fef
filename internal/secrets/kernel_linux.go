//go:build linux

package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const kernelKeyType = "user"

// StoreKernel stores value in the Linux kernel user keyring under name,
// replacing any previous value. The key lives in kernel memory only and is
// lost on reboot.
func StoreKernel(name, value string) error {
	if _, err := unix.AddKey(kernelKeyType, name, []byte(value), unix.KEY_SPEC_USER_KEYRING); err != nil {
		return fmt.Errorf("failed to add key to kernel keyring: %w", err)
	}
	return nil
}

func searchKernel(name string) (int, error) {
	id, err := unix.KeyctlSearch(unix.KEY_SPEC_USER_KEYRING, kernelKeyType, name, 0)
	if errors.Is(err, unix.ENOKEY) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to search kernel keyring: %w", err)
	}
	return id, nil
}

// RetrieveKernel reads name from the kernel user keyring.
func RetrieveKernel(name string) (string, error) {
	id, err := searchKernel(name)
	if err != nil {
		return "", err
	}

	size, err := unix.KeyctlBuffer(unix.KEYCTL_READ, id, nil, 0)
	if err != nil {
		return "", fmt.Errorf("failed to read kernel key: %w", err)
	}
	buf := make([]byte, size)
	n, err := unix.KeyctlBuffer(unix.KEYCTL_READ, id, buf, 0)
	if err != nil {
		return "", fmt.Errorf("failed to read kernel key: %w", err)
	}
	if n > len(buf) {
		n = len(buf)
	}
	return string(buf[:n]), nil
}

// DeleteKernel unlinks name from the kernel user keyring. A missing key
// yields ErrNotFound.
func DeleteKernel(name string) error {
	id, err := searchKernel(name)
	if err != nil {
		return err
	}
	if _, err := unix.KeyctlInt(unix.KEYCTL_UNLINK, id, unix.KEY_SPEC_USER_KEYRING, 0, 0); err != nil {
		return fmt.Errorf("failed to unlink kernel key: %w", err)
	}
	return nil
}
