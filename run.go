package installer

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const logFilename = "installer.log"

// Exit codes let the live image's surrounding tooling tell "nothing
// happened" apart from "destructive action partially happened". Everything
// up to and including exitAborted leaves every disk untouched.
const (
	exitOK        = 0
	exitPreflight = 10
	exitSelection = 11
	exitPlanning  = 12
	exitAborted   = 13
	exitPipeline  = 14
)

// Run is the whole installer: preflight, device snapshot, selection,
// planning, the one confirmation prompt, and the provisioning pipeline. It
// returns the process exit code.
//
// Commandline parameters are:
//
//	-list   // Only print the detected disks and the would-be target, then exit.
//
// There is intentionally no flag that skips the confirmation prompt.
func Run() int {
	logfile := startLogging(logFilename)
	if logfile != nil {
		defer logfile.Close()
	}

	list := flag.Bool("list", false, "list detected disks and the selected target, then exit without installing")
	flag.Parse()

	if err := openBoxes(); err != nil {
		pterm.Error.Println(err)
		return exitPreflight
	}
	config, err := ConfigNew()
	if err != nil {
		pterm.Error.Println(err)
		return exitPreflight
	}

	pterm.DefaultHeader.Println("Custom-Archlinux Installer")

	if !*list {
		if err := Preflight(); err != nil {
			pterm.Error.Println(err)
			return exitPreflight
		}
	}

	run := ExecRunner{}
	devices, err := ListBlockDevices(run)
	if err != nil {
		pterm.Error.Println(err)
		return exitSelection
	}
	pterm.Println("Detected disks:")
	for _, device := range devices {
		pterm.Println(" - " + device.Describe())
	}

	device, reason, err := SelectTarget(devices)
	if err != nil {
		pterm.Error.Println(err)
		return exitSelection
	}
	plan, err := PlanPartitions(device)
	if err != nil {
		pterm.Error.Println(err)
		return exitPlanning
	}

	PresentPlan(device, reason, plan)
	if *list {
		return exitOK
	}

	confirm := TerminalConfirmer{In: os.Stdin, Out: os.Stdout}
	return RunInstall(run, UnixMounter{}, confirm, config, device, plan)
}

// Pipeline construction seam for tests.
var newPipeline = NewPipeline

// RunInstall passes the confirmation gate and, only on an explicit yes,
// executes the pipeline. Split from Run so tests can drive it with fake
// capabilities.
func RunInstall(
	run Runner, mounter Mounter, confirm Confirmer,
	config ConfigSpec, device BlockDevice, plan PartitionPlan,
) int {
	prompt := fmt.Sprintf("Erase %s and run the installation now?", device.Path)
	proceed, err := confirm.Confirm(prompt)
	if err != nil || !proceed {
		log.Info().Str("device", device.Path).Msg("operator declined, nothing written")
		pterm.Info.Println(ErrAborted)
		return exitAborted
	}

	pipeline := newPipeline(run, mounter, config, device, plan)
	pipeline.SetProgressFunction(renderProgress)
	if err := pipeline.Execute(); err != nil {
		pterm.Error.Println(err)
		pterm.Error.Printf(
			"completed stages before the failure: %v -- the device has been altered, re-run from scratch after fixing the cause\n",
			pipeline.Session().Completed(),
		)
		return exitPipeline
	}

	pterm.Success.Println("Installation finished.")
	if reboot, _ := confirm.Confirm("Reboot into the installed system now?"); reboot {
		if _, err := run.Run("systemctl", "reboot"); err != nil {
			pterm.Error.Println(err)
		}
	}
	return exitOK
}

func renderProgress(status StageStatus) {
	switch {
	case status.Failed:
		pterm.Error.Printf("[%s] failed\n", status.Stage)
	case status.Done:
		pterm.Success.Printf("[%s] done\n", status.Stage)
	default:
		pterm.Info.Printf("[%s] %s\n", status.Stage, status.Message)
	}
}

// startLogging sends the structured log to installer.log next to the live
// session, with a terse mirror on stderr for anything warning or worse.
func startLogging(logFilename string) *os.File {
	logfile, err := os.OpenFile(logFilename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	console := zerolog.ConsoleWriter{
		Out:          os.Stderr,
		TimeFormat:   time.Kitchen,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	writers := []io.Writer{&zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: console},
		Level:  zerolog.WarnLevel,
	}}
	if err == nil {
		writers = append(writers, logfile)
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if err != nil {
		log.Warn().Err(err).Str("path", logFilename).Msg("no log file, logging to console only")
		return nil
	}
	return logfile
}
