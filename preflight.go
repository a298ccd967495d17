package installer

import (
	"os"

	"golang.org/x/sys/unix"
)

const efiVarsPath = "/sys/firmware/efi/efivars"

// Preflight verifies conditions without which the run cannot produce a
// bootable system. It runs before device selection and the confirmation
// prompt: a machine that fails here must never be asked to sacrifice a disk.
func Preflight() error {
	if unix.Geteuid() != 0 {
		return &PreflightError{Reason: "installer must run as root"}
	}
	if !hasUEFI() {
		return &PreflightError{
			Reason: "firmware is not UEFI; systemd-boot cannot be installed on legacy BIOS",
		}
	}
	return nil
}

// hasUEFI reports whether the machine booted in UEFI mode.
func hasUEFI() bool {
	info, err := os.Stat(efiVarsPath)
	return err == nil && info.IsDir()
}
