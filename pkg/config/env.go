package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file into the process environment if one exists at
// path. Missing files are not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// splitCSV trims and drops empty entries from a comma-separated string.
func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
