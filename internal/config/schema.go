package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

const schemaURL = "settings.schema.json"

var (
	//go:embed schema/settings.schema.json
	settingsSchema string

	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// validateDocument checks raw YAML settings against the embedded JSON schema.
func validateDocument(contents []byte) error {
	sch, err := loadSchema()
	if err != nil {
		return fmt.Errorf("compile settings schema: %w", err)
	}

	jsonData, err := yaml.YAMLToJSON(contents)
	if err != nil {
		return fmt.Errorf("convert settings to json: %w", err)
	}

	var document any
	if err = json.Unmarshal(jsonData, &document); err != nil {
		return fmt.Errorf("decode settings json: %w", err)
	}

	if err = sch.Validate(document); err != nil {
		return fmt.Errorf("settings do not match schema: %w", err)
	}

	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString(schemaURL, settingsSchema)
	})

	return compiledSchema, schemaErr
}
