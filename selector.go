package installer

// SelectTarget picks exactly one install target from the device snapshot.
// Priority: any NVMe drive beats any other SSD, which beats any rotational
// disk, regardless of capacity. Within the winning tier the largest device
// wins, and an exact capacity tie is broken by the lexicographically
// smallest device path so repeated runs on identical hardware pick the same
// disk. The returned reason string is shown to the operator.
func SelectTarget(devices []BlockDevice) (BlockDevice, string, error) {
	if len(devices) == 0 {
		return BlockDevice{}, "", &SelectionError{Reason: "no disks detected"}
	}

	winningTier := 3
	for _, d := range devices {
		if t := d.Tier(); t < winningTier {
			winningTier = t
		}
	}

	var chosen BlockDevice
	found := false
	for _, d := range devices {
		if d.Tier() != winningTier {
			continue
		}
		if !found || d.Size > chosen.Size || (d.Size == chosen.Size && d.Path < chosen.Path) {
			chosen = d
			found = true
		}
	}
	if !found {
		return BlockDevice{}, "", &SelectionError{Reason: "no disks detected"}
	}

	reason := map[int]string{
		0: "NVMe drive",
		1: "SSD (non-rotational) drive",
		2: "largest available disk",
	}[winningTier]
	return chosen, reason, nil
}
