package installer

import (
	"github.com/cloudfoundry/jibber_jabber"
	"golang.org/x/text/language"
)

const fallbackLocale = "en_US.UTF-8"

// Locales the live image ships glibc locale definitions for. The detected
// session language is matched against these; anything else falls back to
// en_US.
var supportedLocales = []struct {
	tag    string
	locale string
}{
	{"en", "en_US.UTF-8"},
	{"de", "de_DE.UTF-8"},
}

// DetectLocale maps the live session's language onto one of the supported
// target locales. Used only when config.yml leaves the locale unset.
func DetectLocale() string {
	session, err := jibber_jabber.DetectIETF()
	if err != nil {
		return fallbackLocale
	}
	return matchLocale(session)
}

func matchLocale(ietf string) string {
	tags := make([]language.Tag, len(supportedLocales))
	for i, l := range supportedLocales {
		tags[i] = language.Raw.Make(l.tag)
	}
	_, index, confidence := language.NewMatcher(tags).Match(language.Make(ietf))
	if confidence == language.No {
		return fallbackLocale
	}
	return supportedLocales[index].locale
}
