//go:build !linux

package secrets

import "errors"

var errNoKernelKeyring = errors.New("kernel keyring is only available on Linux")

// StoreKernel is not available on non-Linux platforms.
func StoreKernel(_, _ string) error {
	return errNoKernelKeyring
}

// RetrieveKernel is not available on non-Linux platforms.
func RetrieveKernel(_ string) (string, error) {
	return "", errNoKernelKeyring
}

// DeleteKernel is not available on non-Linux platforms.
func DeleteKernel(_ string) error {
	return errNoKernelKeyring
}
