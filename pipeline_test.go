package installer

import (
	"errors"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockPacmanConf = `[options]
HoldPkg = pacman glibc
#[multilib]
#Include = /etc/pacman.d/mirrorlist
[core]
Include = /etc/pacman.d/mirrorlist
`

func testConfig() ConfigSpec {
	return ConfigSpec{
		Hostname:         "arch-lukas",
		Locale:           LocaleSpec{Lang: "en_US.UTF-8", Keymap: "de"},
		Kernels:          []string{"linux"},
		RootPasswordHash: "$6$roothash",
		Users: []UserSpec{{
			Name:         "lukas",
			PasswordHash: "$6$userhash",
			Wheel:        true,
			Git:          GitIdentity{Name: "Lukas Heiligenbrunner", Email: "lukas@example.org"},
		}},
		Repositories:   []RepositorySpec{{Name: "repo", URL: "https://repo.heili.eu/$arch"}},
		EnableMultilib: true,
		Packages:       []string{"firefox", "steam"},
		Services:       []string{"NetworkManager.service", "gdm.service"},
	}
}

func testDevice() BlockDevice {
	return BlockDevice{Name: "sda", Path: "/dev/sda", Size: 256 * GiB, Transport: "sata"}
}

// newTestPipeline redirects everything that would touch the live system into
// a temp dir.
func newTestPipeline(t *testing.T, run Runner, mounter Mounter) *Pipeline {
	t.Helper()
	device := testDevice()
	plan, err := PlanPartitions(device)
	require.NoError(t, err)

	p := NewPipeline(run, mounter, testConfig(), device, plan)
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(path.Join(target, "etc"), 0o755))
	p.session.Target = target
	// The target's pacman.conf exists once the base install has run.
	require.NoError(t, os.WriteFile(
		path.Join(target, "etc", "pacman.conf"), []byte(stockPacmanConf), 0o644,
	))
	p.livePacmanConf = path.Join(t.TempDir(), "pacman.conf")
	require.NoError(t, os.WriteFile(p.livePacmanConf, []byte(stockPacmanConf), 0o644))
	p.retryInterval = 0
	return p
}

// happyHandler answers the queries stages make; every mutation command just
// succeeds.
func happyHandler(name string, args []string) (string, error) {
	if name == "lsblk" && len(args) > 0 && args[0] == "-no" {
		return "0f3712cd-a581-43ea-ae27-7b5c8b56b917\n", nil
	}
	return "", nil
}

func TestPipelineHappyPathRunsStagesInOrder(t *testing.T) {
	run := &fakeRunner{handler: happyHandler}
	mounter := &fakeMounter{}
	p := newTestPipeline(t, run, mounter)

	require.NoError(t, p.Execute())
	assert.Equal(t, []Stage{
		StagePartition, StageFormat, StageMount, StageBaseInstall,
		StageConfigure, StageBootloader, StageCleanup,
	}, p.Session().Completed())

	lines := run.commandLines()
	order := []string{
		"wipefs -a /dev/sda",
		"parted -s /dev/sda mklabel gpt",
		"parted -s /dev/sda mkpart ESP fat32 1MiB 1025MiB",
		"parted -s /dev/sda set 1 esp on",
		"parted -s /dev/sda mkpart root ext4 1025MiB 100%",
		"mkfs.vfat -F32 -n ESP /dev/sda1",
		"mkfs.ext4 -F -L root /dev/sda2",
		"pacstrap -K " + p.session.Target,
	}
	last := -1
	for _, want := range order {
		found := -1
		for i, line := range lines {
			if strings.HasPrefix(line, want) {
				found = i
				break
			}
		}
		require.GreaterOrEqual(t, found, 0, "command %q not run", want)
		assert.Greater(t, found, last, "command %q out of order", want)
		last = found
	}

	// Root is mounted before the ESP; cleanup releases them in reverse.
	require.Equal(t, []string{p.session.Target, path.Join(p.session.Target, "boot")}, mounter.mounted)
	assert.Equal(t, []string{path.Join(p.session.Target, "boot"), p.session.Target}, mounter.unmounted)

	// The package set travels into pacstrap.
	assert.True(t, run.called("pacstrap", "-K", p.session.Target))
	for _, line := range lines {
		if strings.HasPrefix(line, "pacstrap") {
			assert.Contains(t, line, "base")
			assert.Contains(t, line, "linux-firmware")
			assert.Contains(t, line, "efibootmgr")
			assert.Contains(t, line, "firefox")
		}
	}

	// fstab was captured from genfstab.
	_, err := os.Stat(path.Join(p.session.Target, "etc", "fstab"))
	assert.NoError(t, err)

	// Bootloader entry and loader.conf reference the root PARTUUID.
	entries, err := os.ReadDir(path.Join(p.session.Target, "boot", "loader", "entries"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry, err := os.ReadFile(path.Join(p.session.Target, "boot", "loader", "entries", entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(entry), "root=PARTUUID=0f3712cd-a581-43ea-ae27-7b5c8b56b917")
	loader, err := os.ReadFile(path.Join(p.session.Target, "boot", "loader", "loader.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(loader), "default "+strings.TrimSuffix(entries[0].Name(), ".conf"))

	// The live pacman.conf got the extra repository and multilib.
	live, err := os.ReadFile(p.livePacmanConf)
	require.NoError(t, err)
	assert.Contains(t, string(live), "[repo]")
	assert.Contains(t, string(live), "Server = https://repo.heili.eu/$arch")
	assert.NotContains(t, string(live), "#[multilib]")
}

func TestPipelineBaseInstallFailureStillCleansUp(t *testing.T) {
	pacstrapDown := errors.New("error: failed retrieving file from repo.heili.eu")
	run := &fakeRunner{handler: func(name string, args []string) (string, error) {
		if name == "pacstrap" {
			return "", pacstrapDown
		}
		return happyHandler(name, args)
	}}
	mounter := &fakeMounter{}
	p := newTestPipeline(t, run, mounter)

	err := p.Execute()
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageBaseInstall, stageErr.Stage)
	assert.ErrorIs(t, stageErr, pacstrapDown)

	// Bounded retry: three attempts, then fatal.
	attempts := 0
	for _, call := range run.calls {
		if call[0] == "pacstrap" {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)

	// Nothing after the failed stage ran, but cleanup unmounted everything.
	assert.False(t, run.called("arch-chroot"))
	assert.Equal(t, []string{path.Join(p.session.Target, "boot"), p.session.Target}, mounter.unmounted)
	ledger := p.Session().Completed()
	assert.Contains(t, ledger, StageCleanup)
	assert.NotContains(t, ledger, StageBaseInstall)
}

func TestPipelineBaseInstallRecoversWithinRetryBudget(t *testing.T) {
	failures := 2
	run := &fakeRunner{handler: func(name string, args []string) (string, error) {
		if name == "pacstrap" && failures > 0 {
			failures--
			return "", errors.New("temporary failure in name resolution")
		}
		return happyHandler(name, args)
	}}
	p := newTestPipeline(t, run, &fakeMounter{})
	require.NoError(t, p.Execute())
	assert.Contains(t, p.Session().Completed(), StageBaseInstall)
}

func TestPipelineMountFailureReleasesPartialMounts(t *testing.T) {
	run := &fakeRunner{handler: happyHandler}
	p := newTestPipeline(t, run, nil)
	mounter := &fakeMounter{failOn: path.Join(p.session.Target, "boot")}
	p.mounter = mounter

	err := p.Execute()
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageMount, stageErr.Stage)

	// The root mount succeeded before the ESP mount failed and must be
	// released again.
	assert.Equal(t, []string{p.session.Target}, mounter.mounted)
	assert.Equal(t, []string{p.session.Target}, mounter.unmounted)
	assert.False(t, run.called("pacstrap"))
}

func TestPipelineCleanupRunsExactlyOnce(t *testing.T) {
	run := &fakeRunner{handler: happyHandler}
	mounter := &fakeMounter{}
	p := newTestPipeline(t, run, mounter)

	cleanups := 0
	p.SetProgressFunction(func(status StageStatus) {
		if status.Stage == StageCleanup && status.Done {
			cleanups++
		}
	})
	require.NoError(t, p.Execute())
	p.cleanup()
	assert.Equal(t, 1, cleanups)
	assert.Len(t, mounter.unmounted, 2)
}

func TestPipelinePartitionFailureLeavesNoMounts(t *testing.T) {
	diskBusy := errors.New("Partition(s) on /dev/sda are being used")
	run := &fakeRunner{handler: func(name string, args []string) (string, error) {
		if name == "parted" {
			return "", diskBusy
		}
		return happyHandler(name, args)
	}}
	mounter := &fakeMounter{}
	p := newTestPipeline(t, run, mounter)

	err := p.Execute()
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePartition, stageErr.Stage)
	assert.Empty(t, mounter.mounted)
	assert.Empty(t, mounter.unmounted)
	assert.False(t, run.called("mkfs.ext4"))
}
