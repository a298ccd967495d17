package installer

import (
	"os"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	// pacstrap is the only stage worth retrying: a flaky mirror or repository
	// should not write off a half-partitioned disk without a second chance.
	baseInstallAttempts = 3
	baseInstallBackoff  = 10 * time.Second
)

// baseInstall bootstraps the base system and the full package set into the
// mounted target root. Repository or network failures are retried a bounded
// number of times before the stage fails.
func (p *Pipeline) baseInstall() error {
	if err := ensureRepoConfig(p.livePacmanConf, p.config.Repositories, p.config.EnableMultilib); err != nil {
		return err
	}

	packages := []string{"base", "linux-firmware", "efibootmgr"}
	packages = append(packages, p.config.Kernels...)
	packages = append(packages, p.config.Packages...)
	args := append([]string{"-K", p.session.Target}, packages...)

	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			log.Warn().Int("attempt", attempt).Msg("retrying base install")
		}
		_, err := p.run.Run("pacstrap", args...)
		return err
	}
	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(p.retryInterval), baseInstallAttempts-1,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}

	fstab, err := p.run.Run("genfstab", "-U", p.session.Target)
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(p.session.Target, "etc", "fstab"), []byte(fstab), 0o644)
}
