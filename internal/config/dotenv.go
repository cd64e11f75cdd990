package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads the dotenv file at path and returns key/value pairs.
// A missing file yields an empty map.
func LoadDotEnv(path string) (map[string]string, error) {
	m, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("cannot read dotenv file %s: %w", path, err)
	}
	return m, nil
}

// ApplyDotEnv exports the keys of the dotenv file at path into the process
// environment. Variables already set in the environment win.
func ApplyDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot stat dotenv file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load dotenv file %s: %w", path, err)
	}
	return nil
}

// EnsureDotEnvTemplate creates a dotenv file at path if it does not already exist.
//
// The template lists the embedding keys commented out; an uncommented empty
// value would override the YAML setting with "".
func EnsureDotEnvTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot stat dotenv file %s: %w", path, err)
	}

	body := "" +
		"# " + EnvPrefix + "_EMBEDDINGS_PROVIDER=openai\n" +
		"# " + EnvPrefix + "_EMBEDDINGS_MODEL=\n" +
		"# " + EnvPrefix + "_EMBEDDINGS_API_KEY=\n" +
		"# " + EnvPrefix + "_EMBEDDINGS_BASE_URL=\n"

	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("cannot write dotenv template %s: %w", path, err)
	}
	return nil
}
