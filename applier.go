package installer

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
)

// Applier writes the declarative ConfigSpec into the installed root through
// the change-root boundary. Step order is fixed: accounts have to exist
// before per-user settings are written; the remaining steps are independent
// but keep a documented order for reproducibility. Every step is safe to
// re-apply: a second run against the same root converges to the identical
// result.
type Applier struct {
	run    Runner
	config ConfigSpec
	target string
	chroot Chroot

	// resource fetches embedded payload files (the wallpaper); tests swap it
	// out since the rice box only exists in the shipped binary.
	resource func(name string) ([]byte, error)
}

func NewApplier(run Runner, config ConfigSpec, target string) *Applier {
	return &Applier{
		run:      run,
		config:   config,
		target:   target,
		chroot:   Chroot{Run: run, Target: target},
		resource: GetResourceBytes,
	}
}

// Apply runs all configuration steps. The first failing step fails the whole
// stage; steps already applied stay applied and are named in the error so
// partial application never passes silently.
func (a *Applier) Apply() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"hostname", a.applyHostname},
		{"locale", a.applyLocale},
		{"users", a.applyUsers},
		{"services", a.applyServices},
		{"repositories", a.applyRepositories},
		{"user settings", a.applyUserSettings},
	}
	for i, step := range steps {
		log.Info().Str("step", step.name).Msg("applying configuration")
		if err := step.fn(); err != nil {
			applied := make([]string, 0, i)
			for _, done := range steps[:i] {
				applied = append(applied, done.name)
			}
			return fmt.Errorf(
				"applying %s (already applied: %s): %w",
				step.name, strings.Join(applied, ", "), err,
			)
		}
	}
	return nil
}

func (a *Applier) applyHostname() error {
	return os.WriteFile(
		path.Join(a.target, "etc", "hostname"),
		[]byte(a.config.Hostname+"\n"), 0o644,
	)
}

func (a *Applier) applyLocale() error {
	lang := a.config.Locale.Lang
	localeGen := path.Join(a.target, "etc", "locale.gen")
	entry := lang + " UTF-8"
	raw, err := os.ReadFile(localeGen)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	content := string(raw)
	if !containsLine(content, entry) {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += entry + "\n"
		if err := os.WriteFile(localeGen, []byte(content), 0o644); err != nil {
			return err
		}
	}
	if _, err := a.chroot.Exec("locale-gen"); err != nil {
		return err
	}
	if err := os.WriteFile(
		path.Join(a.target, "etc", "locale.conf"), []byte("LANG="+lang+"\n"), 0o644,
	); err != nil {
		return err
	}
	if keymap := a.config.Locale.Keymap; keymap != "" {
		return os.WriteFile(
			path.Join(a.target, "etc", "vconsole.conf"), []byte("KEYMAP="+keymap+"\n"), 0o644,
		)
	}
	return nil
}

func (a *Applier) applyUsers() error {
	wheel := false
	for _, user := range a.config.Users {
		if _, err := a.chroot.Exec("id", "-u", user.Name); err != nil {
			args := []string{"-m"}
			if user.Wheel {
				args = append(args, "-G", "wheel")
			}
			if _, err := a.chroot.Exec("useradd", append(args, user.Name)...); err != nil {
				return err
			}
		}
		if user.PasswordHash != "" {
			if _, err := a.chroot.Exec("usermod", "-p", user.PasswordHash, user.Name); err != nil {
				return err
			}
		}
		wheel = wheel || user.Wheel
	}
	if a.config.RootPasswordHash != "" {
		if _, err := a.chroot.Exec("usermod", "-p", a.config.RootPasswordHash, "root"); err != nil {
			return err
		}
	}
	if wheel {
		sudoers := path.Join(a.target, "etc", "sudoers.d", "10-wheel")
		if err := os.MkdirAll(path.Dir(sudoers), 0o755); err != nil {
			return err
		}
		return os.WriteFile(sudoers, []byte("%wheel ALL=(ALL:ALL) ALL\n"), 0o440)
	}
	return nil
}

func (a *Applier) applyServices() error {
	for _, service := range a.config.Services {
		if _, err := a.chroot.Exec("systemctl", "enable", service); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyRepositories() error {
	return ensureRepoConfig(
		path.Join(a.target, "etc", "pacman.conf"),
		a.config.Repositories, a.config.EnableMultilib,
	)
}

// applyUserSettings writes the per-user pieces: git identity, wallpaper,
// desktop settings, GNOME extensions, and any extra setup commands from the
// config. gsettings needs a session bus, hence the dbus-launch wrapper.
func (a *Applier) applyUserSettings() error {
	for _, user := range a.config.Users {
		home := "/home/" + user.Name
		variables := StringMap{
			"user":     user.Name,
			"home":     home,
			"hostname": a.config.Hostname,
		}

		if user.Git.Email != "" {
			command := fmt.Sprintf("git config --global user.email %q", user.Git.Email)
			if _, err := a.chroot.ExecAs(user.Name, command); err != nil {
				return err
			}
			command = fmt.Sprintf("git config --global user.name %q", user.Git.Name)
			if _, err := a.chroot.ExecAs(user.Name, command); err != nil {
				return err
			}
		}

		if wallpaper := a.config.Desktop.Wallpaper; wallpaper != "" {
			image, err := a.resource(wallpaper)
			if err != nil {
				return err
			}
			target := path.Join(a.target, home, "Pictures", "background.png")
			if err := os.MkdirAll(path.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(target, image, 0o644); err != nil {
				return err
			}
			chown := fmt.Sprintf("%s:%s", user.Name, user.Name)
			if _, err := a.chroot.Exec("chown", "-R", chown, path.Join(home, "Pictures")); err != nil {
				return err
			}
			variables["wallpaper"] = path.Join(home, "Pictures", "background.png")
		}

		for _, setting := range a.config.Desktop.GSettings {
			command := "dbus-launch --exit-with-session " + ExpandVariables(setting, variables)
			if _, err := a.chroot.ExecAs(user.Name, command); err != nil {
				return err
			}
		}
		for _, extension := range a.config.Desktop.Extensions {
			command := "dbus-launch --exit-with-session gnome-extensions enable " + extension
			if _, err := a.chroot.ExecAs(user.Name, command); err != nil {
				return err
			}
		}
		for _, command := range user.Commands {
			if _, err := a.chroot.ExecAs(user.Name, ExpandVariables(command, variables)); err != nil {
				return err
			}
		}
	}
	return nil
}

func containsLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}

// configure is the pipeline stage wrapper around the Applier.
func (p *Pipeline) configure() error {
	return NewApplier(p.run, p.config, p.session.Target).Apply()
}
