package installer

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
)

type StringMap map[string]string

// ExpandVariables takes a string with template variables like {{.user}} and
// expands them with the given map. Config strings (gsettings commands, boot
// entry titles) are written against the variables the applier provides:
// user, home, hostname, wallpaper.
func ExpandVariables(str string, variables StringMap) string {
	functions := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}
	templ, err := template.New("").Funcs(functions).Parse(str)
	if err != nil {
		log.Warn().Err(err).Str("template", str).Msg("invalid string template")
		return str
	}
	var buf bytes.Buffer
	if err := templ.Execute(&buf, variables); err != nil {
		log.Warn().Err(err).Str("template", str).Msg("error executing template")
		return str
	}
	return buf.String()
}

// MergeVariables combines several variable maps into a single one. Duplicate
// keys are overridden by the value in the last map which has the key.
func MergeVariables(varMaps ...StringMap) StringMap {
	merged := make(StringMap)
	for _, vars := range varMaps {
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged
}
