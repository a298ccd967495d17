package installer

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInstallDeclinedGateTouchesNothing(t *testing.T) {
	run := &fakeRunner{}
	confirm := &staticConfirmer{answer: false}
	device := testDevice()
	plan, err := PlanPartitions(device)
	require.NoError(t, err)

	code := RunInstall(run, &fakeMounter{}, confirm, testConfig(), device, plan)

	assert.Equal(t, exitAborted, code)
	assert.Empty(t, run.calls, "a declined gate must not run any command")
	require.Len(t, confirm.asked, 1)
	assert.Contains(t, confirm.asked[0], "/dev/sda")
}

func TestRunInstallConfirmedGateRunsPipelineAndOffersReboot(t *testing.T) {
	run := &fakeRunner{handler: happyHandler}
	confirm := &staticConfirmer{answer: true}

	// Redirect the pipeline into a temp dir for the duration of the test.
	orig := newPipeline
	t.Cleanup(func() { newPipeline = orig })
	newPipeline = func(r Runner, m Mounter, c ConfigSpec, d BlockDevice, pl PartitionPlan) *Pipeline {
		p := NewPipeline(r, m, c, d, pl)
		target := t.TempDir()
		require.NoError(t, os.MkdirAll(path.Join(target, "etc"), 0o755))
		require.NoError(t, os.WriteFile(
			path.Join(target, "etc", "pacman.conf"), []byte(stockPacmanConf), 0o644,
		))
		p.session.Target = target
		p.livePacmanConf = path.Join(t.TempDir(), "pacman.conf")
		require.NoError(t, os.WriteFile(p.livePacmanConf, []byte(stockPacmanConf), 0o644))
		p.retryInterval = 0
		return p
	}

	device := testDevice()
	plan, err := PlanPartitions(device)
	require.NoError(t, err)

	code := RunInstall(run, &fakeMounter{}, confirm, testConfig(), device, plan)

	assert.Equal(t, exitOK, code)
	require.Len(t, confirm.asked, 2)
	assert.Contains(t, confirm.asked[0], "Erase /dev/sda")
	assert.Contains(t, confirm.asked[1], "Reboot")
	assert.True(t, run.called("wipefs"))
	assert.True(t, run.called("systemctl", "reboot"))
}

func TestRunInstallStageFailureExitsPipelineCode(t *testing.T) {
	run := &fakeRunner{handler: func(name string, args []string) (string, error) {
		if name == "wipefs" {
			return "", os.ErrPermission
		}
		return happyHandler(name, args)
	}}
	confirm := &staticConfirmer{answer: true}

	orig := newPipeline
	t.Cleanup(func() { newPipeline = orig })
	newPipeline = func(r Runner, m Mounter, c ConfigSpec, d BlockDevice, pl PartitionPlan) *Pipeline {
		p := NewPipeline(r, m, c, d, pl)
		p.session.Target = t.TempDir()
		p.retryInterval = 0
		return p
	}

	device := testDevice()
	plan, err := PlanPartitions(device)
	require.NoError(t, err)

	code := RunInstall(run, &fakeMounter{}, confirm, testConfig(), device, plan)
	assert.Equal(t, exitPipeline, code)
	// No reboot offer after a failed run.
	assert.Len(t, confirm.asked, 1)
	assert.False(t, run.called("systemctl", "reboot"))
}
