package installer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mounter abstracts filesystem mounting so pipeline tests can run without
// privileges or real devices.
type Mounter interface {
	Mount(source, target, fstype string) error
	Unmount(target string) error
}

// UnixMounter mounts through the kernel syscalls directly instead of
// shelling out to mount(8).
type UnixMounter struct{}

func (UnixMounter) Mount(source, target, fstype string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	if fstype == "fat32" {
		fstype = "vfat"
	}
	if err := unix.Mount(source, target, fstype, 0, ""); err != nil {
		return fmt.Errorf("mounting %s on %s (%s): %w", source, target, fstype, err)
	}
	return nil
}

func (UnixMounter) Unmount(target string) error {
	err := unix.Unmount(target, 0)
	if err == unix.EINVAL || err == unix.ENOENT {
		// Not mounted (or already unmounted); nothing to release.
		return nil
	}
	if err != nil {
		return fmt.Errorf("unmounting %s: %w", target, err)
	}
	return nil
}
