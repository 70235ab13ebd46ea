// Package template renders the subject and body of participant notifications.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

const dateLayout = "2006-01-02"

var funcs = template.FuncMap{
	"date": func(t any) string {
		switch v := t.(type) {
		case time.Time:
			return v.Format(dateLayout)
		case *time.Time:
			if v == nil {
				return ""
			}

			return v.Format(dateLayout)
		default:
			return ""
		}
	},
	"upper": strings.ToUpper,
	"default": func(fallback string, value any) string {
		if value == nil || value == "" {
			return fallback
		}

		return fmt.Sprint(value)
	},
}

// Render executes templateStr against data and trims the result.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.New("notification").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Validate reports whether templateStr parses.
func Validate(templateStr string) error {
	_, err := template.New("notification").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("invalid template '%s': %w", templateStr, err)
	}

	return nil
}
