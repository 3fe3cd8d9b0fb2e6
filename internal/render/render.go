// Package render expands the user-facing naming templates (archive name,
// draft release title and body) with text/template and the sprig function set.
package render

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Vars are the values a naming template can reference.
type Vars struct {
	Project    string
	Owner      string
	Repository string
	Tag        string
	Target     string
	OS         string
}

var errEmptyResult = errors.New("template rendered an empty string")

// Parse compiles text so that syntax errors surface before any work is done.
func Parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}

	return tmpl, nil
}

// String renders text with vars and trims surrounding whitespace.
func String(name, text string, vars Vars) (string, error) {
	tmpl, err := Parse(name, text)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	if err = tmpl.Execute(&builder, vars); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}

	result := strings.TrimSpace(builder.String())
	if result == "" {
		return "", fmt.Errorf("%s: %w", name, errEmptyResult)
	}

	return result, nil
}
