package installer

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

const configFilename = "config.yml"

type (
	// ConfigSpec is the full declarative bundle the installer applies to the
	// target system. It is parsed once from the embedded config.yml, passed
	// explicitly into every consumer, and never mutated after loading.
	ConfigSpec struct {
		Hostname         string           `yaml:"hostname"`
		Locale           LocaleSpec       `yaml:"locale"`
		Kernels          []string         `yaml:"kernels"`
		RootPasswordHash string           `yaml:"root_password_hash"`
		Users            []UserSpec       `yaml:"users"`
		Repositories     []RepositorySpec `yaml:"repositories"`
		EnableMultilib   bool             `yaml:"enable_multilib"`
		Packages         []string         `yaml:"packages"`
		Services         []string         `yaml:"services"`
		Desktop          DesktopSpec      `yaml:"desktop"`
	}
	LocaleSpec struct {
		Lang   string `yaml:"lang"`
		Keymap string `yaml:"keymap"`
	}
	UserSpec struct {
		Name         string      `yaml:"name"`
		PasswordHash string      `yaml:"password_hash"`
		Wheel        bool        `yaml:"wheel"`
		Git          GitIdentity `yaml:"git"`
		Commands     []string    `yaml:"commands"`
	}
	GitIdentity struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
	}
	// RepositorySpec is an additional pacman repository, configured both in
	// the live environment (so the base install can pull from it) and in the
	// installed system.
	RepositorySpec struct {
		Name     string `yaml:"name"`
		URL      string `yaml:"url"`
		SigLevel string `yaml:"sig_level"`
	}
	DesktopSpec struct {
		Wallpaper  string   `yaml:"wallpaper"`
		GSettings  []string `yaml:"gsettings"`
		Extensions []string `yaml:"extensions"`
	}
)

// ConfigNew loads the embedded config.yml. A missing target locale is filled
// in from the live session's language so an unattended run always ends up
// with a usable locale.
func ConfigNew() (ConfigSpec, error) {
	configFile, err := GetResource(configFilename)
	if err != nil {
		return ConfigSpec{}, err
	}
	return parseConfig([]byte(configFile))
}

func parseConfig(raw []byte) (ConfigSpec, error) {
	var config ConfigSpec
	if err := yaml.UnmarshalStrict(raw, &config); err != nil {
		return ConfigSpec{}, fmt.Errorf("unable to parse %s: %w", configFilename, err)
	}
	if config.Hostname == "" {
		return ConfigSpec{}, fmt.Errorf("%s: hostname must be set", configFilename)
	}
	if len(config.Kernels) == 0 {
		config.Kernels = []string{"linux"}
	}
	if config.Locale.Lang == "" {
		config.Locale.Lang = DetectLocale()
	}
	return config, nil
}
