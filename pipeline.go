package installer

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Stage names one step of the provisioning pipeline. Stages run in a strict
// total order, each attempted exactly once; there is no retry and no
// rollback of completed destructive stages.
type Stage string

const (
	StagePartition   Stage = "partition"
	StageFormat      Stage = "format"
	StageMount       Stage = "mount"
	StageBaseInstall Stage = "base-install"
	StageConfigure   Stage = "configure"
	StageBootloader  Stage = "bootloader"
	StageCleanup     Stage = "cleanup"
)

// StageStatus is the message passed to the progress function as stages start,
// finish, or fail.
type StageStatus struct {
	Stage   Stage
	Message string
	Done    bool
	Failed  bool
}

// Session is the aggregate state of one installation run: the chosen device,
// the resolved plan, and a ledger of completed stages. It lives for exactly
// one process; a crashed run leaves no resumable checkpoint and a fresh run
// is always a fresh decision.
type Session struct {
	Device    BlockDevice
	Plan      PartitionPlan
	Target    string
	StartedAt time.Time

	completed []Stage
	mounts    []string
}

// Completed returns the ledger of stages that finished successfully, in
// execution order.
func (s *Session) Completed() []Stage {
	ledger := make([]Stage, len(s.completed))
	copy(ledger, s.completed)
	return ledger
}

// The live environment's mount point for the target root filesystem.
const targetMountpoint = "/mnt/arch"

// Pipeline drives the ordered sequence of provisioning stages against one
// selected device. It must only be constructed after the confirmation gate
// has been passed; its first stage is the point of no return.
type Pipeline struct {
	run     Runner
	mounter Mounter
	config  ConfigSpec
	session *Session

	// Path of the live environment's pacman.conf and the delay between
	// base-install attempts, both overridable in tests.
	livePacmanConf string
	retryInterval  time.Duration

	progressFunction func(StageStatus)
	cleanupOnce      sync.Once
}

func NewPipeline(run Runner, mounter Mounter, config ConfigSpec, device BlockDevice, plan PartitionPlan) *Pipeline {
	return &Pipeline{
		run:            run,
		mounter:        mounter,
		config:         config,
		livePacmanConf: "/etc/pacman.conf",
		retryInterval:  baseInstallBackoff,
		session: &Session{
			Device:    device,
			Plan:      plan,
			Target:    targetMountpoint,
			StartedAt: time.Now(),
		},
		progressFunction: func(StageStatus) {},
	}
}

// SetProgressFunction installs a callback that receives a StageStatus as each
// stage starts, completes or fails. The callback runs on the pipeline's own
// goroutine; stages never overlap.
func (p *Pipeline) SetProgressFunction(function func(StageStatus)) {
	p.progressFunction = function
}

func (p *Pipeline) Session() *Session { return p.session }

// Execute runs all stages in order and returns nil or the first StageError.
// Cleanup runs exactly once per call, on the success and the failure path
// alike: it cannot undo partitioning or formatting, but it releases every
// mount so the live environment stays consistent for another attempt.
func (p *Pipeline) Execute() error {
	defer p.cleanup()

	stages := []struct {
		stage   Stage
		message string
		fn      func() error
	}{
		{StagePartition, "writing partition table to " + p.session.Device.Path, p.partition},
		{StageFormat, "creating filesystems", p.format},
		{StageMount, "mounting target filesystems", p.mount},
		{StageBaseInstall, "installing base system and packages (this can take a while)", p.baseInstall},
		{StageConfigure, "applying system configuration", p.configure},
		{StageBootloader, "installing systemd-boot", p.bootloader},
	}
	for _, s := range stages {
		p.progressFunction(StageStatus{Stage: s.stage, Message: s.message})
		log.Info().Str("stage", string(s.stage)).Msg(s.message)
		if err := s.fn(); err != nil {
			log.Error().Str("stage", string(s.stage)).Err(err).Msg("stage failed")
			p.progressFunction(StageStatus{Stage: s.stage, Failed: true})
			return &StageError{Stage: s.stage, Err: err}
		}
		p.session.completed = append(p.session.completed, s.stage)
		p.progressFunction(StageStatus{Stage: s.stage, Done: true})
	}
	return nil
}

// cleanup unmounts everything the mount stage recorded, in reverse order.
// Unmount failures are logged, not returned: at this point the run's outcome
// is already decided.
func (p *Pipeline) cleanup() {
	p.cleanupOnce.Do(func() {
		p.progressFunction(StageStatus{Stage: StageCleanup, Message: "releasing target filesystems"})
		failed := false
		for i := len(p.session.mounts) - 1; i >= 0; i-- {
			if err := p.mounter.Unmount(p.session.mounts[i]); err != nil {
				log.Warn().Str("mountpoint", p.session.mounts[i]).Err(err).Msg("unmount failed")
				failed = true
			}
		}
		p.session.mounts = nil
		if !failed {
			p.session.completed = append(p.session.completed, StageCleanup)
		}
		p.progressFunction(StageStatus{Stage: StageCleanup, Done: !failed, Failed: failed})
	})
}
