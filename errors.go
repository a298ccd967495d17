package installer

import (
	"errors"
	"fmt"
)

// ErrAborted is returned when the operator declines the confirmation prompt.
// It is fatal but benign: nothing has been written to any device yet.
var ErrAborted = errors.New("installation aborted by operator")

// PreflightError reports a condition that makes an installation pointless or
// impossible before any device has been touched (not running as root, legacy
// BIOS firmware).
type PreflightError struct {
	Reason string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight check failed: %s", e.Reason)
}

// SelectionError reports that no block device is eligible as an install
// target. The inventory snapshot already excludes removable media and the
// live boot medium, so an empty candidate list is a hard stop.
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("no eligible install device: %s", e.Reason)
}

// InsufficientCapacityError reports that the selected device is too small to
// hold the fixed ESP plus a minimum viable root filesystem.
type InsufficientCapacityError struct {
	Device   string
	Capacity int64
	Required int64
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf(
		"%s holds %s but the partition plan needs at least %s",
		e.Device, HumanSize(e.Capacity), HumanSize(e.Required),
	)
}

// StageError wraps a pipeline stage failure with the stage it happened in.
// Any stage error after partitioning means the target device has been
// altered, so the stage name is part of the operator-facing message.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
