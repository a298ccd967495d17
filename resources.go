package installer

import (
	"fmt"

	rice "github.com/GeertJohan/go.rice"
)

var resourceBox *rice.Box

// openBoxes opens the embedded resource payload. For go.rice's 'append' mode
// to work, all calls to FindBox() have to be with a literal string parameter.
func openBoxes() error {
	var err error
	resourceBox, err = rice.FindBox("resources")
	if err != nil {
		return fmt.Errorf("opening resource payload: %w", err)
	}
	return nil
}

// GetResource returns an embedded resource as a string.
func GetResource(name string) (string, error) {
	if resourceBox == nil {
		return "", fmt.Errorf("resource payload not opened")
	}
	return resourceBox.String(name)
}

// GetResourceBytes returns an embedded resource verbatim, for binary payloads
// like the wallpaper image.
func GetResourceBytes(name string) ([]byte, error) {
	if resourceBox == nil {
		return nil, fmt.Errorf("resource payload not opened")
	}
	return resourceBox.Bytes(name)
}

// MustGetResource returns an embedded resource and panics if it is missing.
// Only used during startup for resources the binary cannot run without.
func MustGetResource(name string) string {
	text, err := GetResource(name)
	if err != nil {
		panic(err)
	}
	return text
}
