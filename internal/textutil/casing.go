package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// TitleCase turns a stage type or file stem such as "post_process" or
// "my_video" into display form ("Post Process", "My Video").
func TitleCase(value string) string {
	value = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(value))
	if value == "" {
		return ""
	}
	return titleCaser.String(strings.Join(strings.Fields(value), " "))
}
