package expo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// nodeEnvKey is forced because the app config depends on it.
	nodeEnvKey = "NODE_ENV"
	// nodeEnvProduction is the only value expo-up publishes with.
	nodeEnvProduction = "production"
)

// BuildEnv merges base with the dotenv file at envPath and forces NODE_ENV=production.
// Variables already present in base win over the dotenv file, and a missing
// file is not an error.
func BuildEnv(base []string, envPath string) ([]string, error) {
	vars := make(map[string]string, len(base))

	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}

		vars[key] = value
	}

	if envPath != "" {
		fileVars, err := godotenv.Read(filepath.Clean(envPath))

		switch {
		case errors.Is(err, os.ErrNotExist):
			// Projects without a dotenv file are common.
		case err != nil:
			return nil, fmt.Errorf("read env file %s: %w", envPath, err)
		default:
			for key, value := range fileVars {
				if _, set := vars[key]; !set {
					vars[key] = value
				}
			}
		}
	}

	vars[nodeEnvKey] = nodeEnvProduction

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+vars[key])
	}

	return env, nil
}
