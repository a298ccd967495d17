package installer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	KiB int64 = 1 << 10
	MiB       = KiB << 10
	GiB       = MiB << 10
	TiB       = GiB << 10
)

// BlockDevice is an immutable snapshot of one whole disk, taken once at the
// start of a run. Partitions and non-disk devices (loop, rom, zram) never
// appear in the inventory.
type BlockDevice struct {
	Name       string
	Path       string
	Size       int64
	Rotational bool
	Removable  bool
	Model      string
	Transport  string
}

// Tier returns the selection priority class of the device: 0 for NVMe, 1 for
// any other non-rotational disk, 2 for rotational and unknown disks. Lower
// wins.
func (d BlockDevice) Tier() int {
	switch {
	case d.Transport == "nvme" || strings.HasPrefix(d.Path, "/dev/nvme"):
		return 0
	case !d.Rotational:
		return 1
	default:
		return 2
	}
}

// Describe returns a one-line summary for the detected-disks listing.
func (d BlockDevice) Describe() string {
	kind := "HDD"
	if !d.Rotational {
		kind = "SSD/NVMe"
	}
	tran := d.Transport
	if tran == "" {
		tran = "n/a"
	}
	model := d.Model
	if model == "" {
		model = "n/a"
	}
	return fmt.Sprintf(
		"%12s | size: %8s | type: %9s | transport: %6s | model: %s",
		d.Path, HumanSize(d.Size), kind, tran, model,
	)
}

// lsblkFlag parses the ROTA/RM columns of lsblk's JSON output, which are
// native booleans on util-linux >= 2.37 and "0"/"1" strings before that.
type lsblkFlag bool

func (f *lsblkFlag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch s {
	case "true", "1":
		*f = true
	case "false", "0", "null", "":
		*f = false
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("unexpected lsblk flag value %q", s)
		}
		*f = n != 0
	}
	return nil
}

type lsblkOutput struct {
	BlockDevices []struct {
		Name string    `json:"name"`
		Type string    `json:"type"`
		Size int64     `json:"size"`
		Rota lsblkFlag `json:"rota"`
		Rm   lsblkFlag `json:"rm"`
		Model *string  `json:"model"`
		Path  string   `json:"path"`
		Tran  *string  `json:"tran"`
	} `json:"blockdevices"`
}

// ListBlockDevices enumerates all whole disks via lsblk. Removable media and
// the device backing the live boot medium are filtered out here, before
// selection ever sees them.
func ListBlockDevices(run Runner) ([]BlockDevice, error) {
	out, err := run.Run("lsblk", "-J", "-b", "-o", "NAME,TYPE,SIZE,ROTA,RM,MODEL,PATH,TRAN")
	if err != nil {
		return nil, fmt.Errorf("enumerating disks: %w", err)
	}
	var parsed lsblkOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("parsing lsblk output: %w", err)
	}
	bootDisk := liveBootDisk(run)
	devices := []BlockDevice{}
	for _, b := range parsed.BlockDevices {
		if !strings.EqualFold(b.Type, "disk") {
			continue
		}
		path := b.Path
		if path == "" {
			path = "/dev/" + b.Name
		}
		if bool(b.Rm) || path == bootDisk {
			continue
		}
		model, tran := "", ""
		if b.Model != nil {
			model = strings.TrimSpace(*b.Model)
		}
		if b.Tran != nil {
			tran = strings.ToLower(strings.TrimSpace(*b.Tran))
		}
		devices = append(devices, BlockDevice{
			Name:       b.Name,
			Path:       path,
			Size:       b.Size,
			Rotational: bool(b.Rota),
			Removable:  bool(b.Rm),
			Model:      model,
			Transport:  tran,
		})
	}
	return devices, nil
}

const liveBootMountpoint = "/run/archiso/bootmnt"

// liveBootDisk resolves the whole-disk path behind the mounted live medium,
// or "" when the medium is not disk-backed (PXE, virtual CD).
func liveBootDisk(run Runner) string {
	src, err := run.Run("findmnt", "-no", "SOURCE", liveBootMountpoint)
	if err != nil {
		return ""
	}
	src = strings.TrimSpace(src)
	if src == "" || !strings.HasPrefix(src, "/dev/") {
		return ""
	}
	parent, err := run.Run("lsblk", "-no", "PKNAME", src)
	if err != nil {
		return src
	}
	if parent = strings.TrimSpace(parent); parent != "" {
		return "/dev/" + parent
	}
	return src
}

// HumanSize returns a human-readable version of a byte count, appending a
// size suffix as needed.
func HumanSize(size int64) string {
	switch {
	case size < KiB:
		return fmt.Sprintf("%dB", size)
	case size < MiB:
		return fmt.Sprintf("%.2fKiB", float64(size)/float64(KiB))
	case size < GiB:
		return fmt.Sprintf("%.2fMiB", float64(size)/float64(MiB))
	case size < TiB:
		return fmt.Sprintf("%.2fGiB", float64(size)/float64(GiB))
	default:
		return fmt.Sprintf("%.2fTiB", float64(size)/float64(TiB))
	}
}
