package installer

import (
	"fmt"
	"os"
	"strings"
)

// ensureRepoConfig adds the configured extra repositories to a pacman.conf
// and, when requested, re-enables the stock multilib section. It is applied
// to the live environment before the base install (so pacstrap can pull from
// the extra repositories) and to the installed system afterwards. Re-running
// it against an already-configured file changes nothing.
func ensureRepoConfig(pacmanConf string, repos []RepositorySpec, multilib bool) error {
	raw, err := os.ReadFile(pacmanConf)
	if err != nil {
		return fmt.Errorf("reading %s: %w", pacmanConf, err)
	}
	content := string(raw)

	if multilib {
		content = strings.Replace(content,
			"#[multilib]\n#Include = /etc/pacman.d/mirrorlist",
			"[multilib]\nInclude = /etc/pacman.d/mirrorlist", 1)
	}
	changed := content != string(raw)

	for _, repo := range repos {
		if strings.Contains(content, "["+repo.Name+"]") {
			continue
		}
		sigLevel := repo.SigLevel
		if sigLevel == "" {
			sigLevel = "Optional TrustAll"
		}
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += fmt.Sprintf("\n[%s]\nSigLevel = %s\nServer = %s\n", repo.Name, sigLevel, repo.URL)
		changed = true
	}

	if !changed {
		return nil
	}
	return os.WriteFile(pacmanConf, []byte(content), 0o644)
}
