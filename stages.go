package installer

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
)

// partition writes the plan to the selected device: fresh GPT label, one
// parted mkpart per planned partition. This is the point of no return.
func (p *Pipeline) partition() error {
	plan := p.session.Plan
	commands := [][]string{
		{"wipefs", "-a", plan.Device},
		{"parted", "-s", plan.Device, "mklabel", "gpt"},
	}
	start := partitionOffset
	for i, part := range plan.Partitions {
		end := "100%"
		if part.Size > 0 {
			end = fmt.Sprintf("%dMiB", (start+part.Size)/MiB)
		}
		commands = append(commands, []string{
			"parted", "-s", plan.Device, "mkpart", part.Label, part.Filesystem,
			fmt.Sprintf("%dMiB", start/MiB), end,
		})
		if part.Role == RoleESP {
			commands = append(commands, []string{
				"parted", "-s", plan.Device, "set", strconv.Itoa(i + 1), "esp", "on",
			})
		}
		start += part.Size
	}
	// Give the kernel time to pick up the new partition nodes before the
	// format stage opens them.
	commands = append(commands, []string{"udevadm", "settle"})

	for _, command := range commands {
		if _, err := p.run.Run(command[0], command[1:]...); err != nil {
			return err
		}
	}
	return nil
}

// format creates the filesystems per plan.
func (p *Pipeline) format() error {
	plan := p.session.Plan
	for i, part := range plan.Partitions {
		node := plan.PartitionPath(i + 1)
		var command []string
		switch part.Filesystem {
		case "fat32":
			command = []string{"mkfs.vfat", "-F32", "-n", part.Label, node}
		case "ext4":
			command = []string{"mkfs.ext4", "-F", "-L", part.Label, node}
		default:
			return fmt.Errorf("no mkfs handler for filesystem %q", part.Filesystem)
		}
		if _, err := p.run.Run(command[0], command[1:]...); err != nil {
			return err
		}
	}
	return nil
}

// mount mounts the planned filesystems under the target mountpoint, root
// strictly before the ESP since /boot nests inside the root tree. Every
// successful mount is recorded so cleanup can release them in reverse order.
func (p *Pipeline) mount() error {
	plan := p.session.Plan
	ordered := make([]int, 0, len(plan.Partitions))
	for i, part := range plan.Partitions {
		if part.MountPoint == rootMountPoint {
			ordered = append([]int{i}, ordered...)
		} else {
			ordered = append(ordered, i)
		}
	}
	for _, i := range ordered {
		part := plan.Partitions[i]
		mountpoint := path.Join(p.session.Target, part.MountPoint)
		if err := p.mounter.Mount(plan.PartitionPath(i+1), mountpoint, part.Filesystem); err != nil {
			return err
		}
		p.session.mounts = append(p.session.mounts, mountpoint)
	}
	return nil
}

// bootloader installs systemd-boot into the ESP and writes its loader
// configuration and one boot entry per installed kernel.
func (p *Pipeline) bootloader() error {
	chroot := Chroot{Run: p.run, Target: p.session.Target}
	// bootctl may refuse to touch EFI variables when it detects the chroot
	// as a container; retry without them before giving up.
	if _, err := chroot.Exec("bootctl", "install"); err != nil {
		if _, err := chroot.Exec("bootctl", "--no-variables", "install"); err != nil {
			return err
		}
	}

	rootPARTUUID, err := p.rootPARTUUID()
	if err != nil {
		return err
	}
	entryPrefix := p.session.StartedAt.Format("2006-01-02_15-04-05")
	for _, kernel := range p.config.Kernels {
		entry := fmt.Sprintf(
			"title   Arch Linux (%s)\nlinux   /vmlinuz-%s\ninitrd  /initramfs-%s.img\noptions root=PARTUUID=%s rw\n",
			kernel, kernel, kernel, rootPARTUUID,
		)
		name := fmt.Sprintf("%s_%s.conf", entryPrefix, kernel)
		entryPath := path.Join(p.session.Target, espMountPoint, "loader", "entries", name)
		if err := os.MkdirAll(path.Dir(entryPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(entryPath, []byte(entry), 0o644); err != nil {
			return err
		}
	}

	defaultEntry := fmt.Sprintf("%s_%s.conf", entryPrefix, p.config.Kernels[0])
	return writeLoaderConf(
		path.Join(p.session.Target, espMountPoint, "loader", "loader.conf"),
		defaultEntry,
	)
}

func (p *Pipeline) rootPARTUUID() (string, error) {
	plan := p.session.Plan
	for i, part := range plan.Partitions {
		if part.Role != RoleRoot {
			continue
		}
		out, err := p.run.Run("lsblk", "-no", "PARTUUID", plan.PartitionPath(i+1))
		if err != nil {
			return "", err
		}
		if uuid := strings.TrimSpace(out); uuid != "" {
			return uuid, nil
		}
		return "", fmt.Errorf("no PARTUUID reported for %s", plan.PartitionPath(i+1))
	}
	return "", fmt.Errorf("partition plan has no root partition")
}

// writeLoaderConf creates or merges the systemd-boot loader.conf: the
// default entry is replaced, a commented-out timeout is re-enabled to keep
// dual-boot setups selectable, everything else is preserved.
func writeLoaderConf(loaderConf, defaultEntry string) error {
	defaultLine := "default " + defaultEntry
	var lines []string
	raw, err := os.ReadFile(loaderConf)
	if err != nil {
		lines = []string{defaultLine, "timeout 15"}
	} else {
		lines = strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
		replaced := false
		for i, line := range lines {
			if strings.HasPrefix(line, "default") {
				lines[i] = defaultLine
				replaced = true
			} else if strings.HasPrefix(line, "#timeout") {
				lines[i] = strings.TrimPrefix(line, "#")
			}
		}
		if !replaced {
			lines = append([]string{defaultLine}, lines...)
		}
	}
	if err := os.MkdirAll(path.Dir(loaderConf), 0o755); err != nil {
		return err
	}
	return os.WriteFile(loaderConf, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
