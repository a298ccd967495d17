package installer

import "fmt"

const (
	// First partition starts at 1MiB for alignment, matching what every
	// current partitioning tool defaults to.
	partitionOffset = 1 * MiB
	// The ESP size is fixed; systemd-boot plus a couple of kernels fit
	// comfortably.
	espSize = 1024 * MiB
	// Below this root size a desktop install cannot even unpack the base
	// package set.
	minRootSize = 4 * GiB

	espMountPoint  = "/boot"
	rootMountPoint = "/"
)

type PartitionRole string

const (
	RoleESP  PartitionRole = "esp"
	RoleRoot PartitionRole = "root"
)

// PartitionSpec describes one partition to create. Size 0 means "consume the
// remainder of the device".
type PartitionSpec struct {
	Role       PartitionRole
	Size       int64
	Filesystem string
	MountPoint string
	Label      string
}

// PartitionPlan is the concrete layout for one device, computed once from
// its capacity and never mutated afterwards. The layout is always GPT with a
// fixed-size FAT32 ESP followed by a single ext4 root consuming the rest.
type PartitionPlan struct {
	Device     string
	Capacity   int64
	Partitions []PartitionSpec
}

// PlanPartitions derives the partition plan for the selected device, or
// fails with an InsufficientCapacityError when the device cannot hold the
// ESP plus a minimum viable root.
func PlanPartitions(device BlockDevice) (PartitionPlan, error) {
	required := partitionOffset + espSize + minRootSize
	if device.Size < required {
		return PartitionPlan{}, &InsufficientCapacityError{
			Device:   device.Path,
			Capacity: device.Size,
			Required: required,
		}
	}
	return PartitionPlan{
		Device:   device.Path,
		Capacity: device.Size,
		Partitions: []PartitionSpec{
			{
				Role:       RoleESP,
				Size:       espSize,
				Filesystem: "fat32",
				MountPoint: espMountPoint,
				Label:      "ESP",
			},
			{
				Role:       RoleRoot,
				Size:       0,
				Filesystem: "ext4",
				MountPoint: rootMountPoint,
				Label:      "root",
			},
		},
	}, nil
}

// RootSize returns the capacity left for the root partition.
func (p PartitionPlan) RootSize() int64 {
	used := partitionOffset
	for _, part := range p.Partitions {
		used += part.Size
	}
	return p.Capacity - used
}

// PartitionPath returns the device node of the nth (1-based) partition,
// inserting the "p" infix for devices whose name ends in a digit (nvme0n1p1
// vs sda1).
func (p PartitionPlan) PartitionPath(n int) string {
	last := p.Device[len(p.Device)-1]
	if last >= '0' && last <= '9' {
		return fmt.Sprintf("%sp%d", p.Device, n)
	}
	return fmt.Sprintf("%s%d", p.Device, n)
}

// Describe renders the plan for the confirmation prompt, one line per
// partition.
func (p PartitionPlan) Describe() []string {
	lines := make([]string, 0, len(p.Partitions))
	for i, part := range p.Partitions {
		size := part.Size
		if size == 0 {
			size = p.RootSize()
		}
		lines = append(lines, fmt.Sprintf(
			"%s  %-5s %-6s %8s  mounted at %s",
			p.PartitionPath(i+1), string(part.Role), part.Filesystem,
			HumanSize(size), part.MountPoint,
		))
	}
	return lines
}
