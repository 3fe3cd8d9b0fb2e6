package ciplatform

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Source looks up environment variables.
type Source interface {
	LookupEnv(key string) (value string, ok bool)
}

// Map is a Source backed by a plain map.
type Map map[string]string

// LookupEnv implements Source.
func (m Map) LookupEnv(key string) (string, bool) {
	value, ok := m[key]

	return value, ok
}

type osSource struct{}

func (osSource) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// OSSource returns a Source reading the process environment.
func OSSource() Source {
	return osSource{}
}

// layered consults its sources in order and returns the first hit.
type layered []Source

func (l layered) LookupEnv(key string) (string, bool) {
	for _, src := range l {
		if value, ok := src.LookupEnv(key); ok {
			return value, true
		}
	}

	return "", false
}

// Layered returns a Source that prefers earlier sources over later ones.
func Layered(sources ...Source) Source {
	return layered(sources)
}

// WithEnvFile layers a dotenv file beneath src. Variables already present in
// src win, matching godotenv.Load semantics.
func WithEnvFile(src Source, path string) (Source, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	return Layered(src, Map(values)), nil
}
