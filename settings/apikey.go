package settings

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvAPIKey overrides the key of every provider.
const EnvAPIKey = "XCLOC_API_KEY"

// DotEnvFile is read from the project root for keys not in the environment.
const DotEnvFile = ".env"

// providerEnvVars maps provider IDs to their conventional key variables.
var providerEnvVars = map[string]string{
	"openai":        "OPENAI_API_KEY",
	"google":        "GEMINI_API_KEY",
	"anthropic":     "ANTHROPIC_API_KEY",
	"groq":          "GROQ_API_KEY",
	"custom-openai": "OPENAI_API_KEY",
}

// EnvVarForProvider returns the environment variable conventionally holding
// the provider's API key, or "" if it has none.
func EnvVarForProvider(providerID string) string {
	return providerEnvVars[providerID]
}

// Source tells where a resolved API key came from.
type Source string

const (
	SourceNone   Source = ""
	SourceFlag   Source = "flag"
	SourceEnv    Source = "environment"
	SourceDotEnv Source = ".env"
	SourceStore  Source = "auth store"
)

// ResolveAPIKey finds the API key for providerID: flagKey, then
// XCLOC_API_KEY, then the provider's variable, then rootDir/.env (either
// variable), then the credential store.
func ResolveAPIKey(providerID, flagKey, rootDir string) (string, Source) {
	if flagKey != "" {
		return flagKey, SourceFlag
	}

	names := []string{EnvAPIKey}
	if v := EnvVarForProvider(providerID); v != "" {
		names = append(names, v)
	}

	for _, name := range names {
		if key := os.Getenv(name); key != "" {
			return key, SourceEnv
		}
	}

	if env, err := godotenv.Read(filepath.Join(rootDir, DotEnvFile)); err == nil {
		for _, name := range names {
			if key := env[name]; key != "" {
				return key, SourceDotEnv
			}
		}
	}

	if key := GetAPIKey(providerID); key != "" {
		return key, SourceStore
	}
	return "", SourceNone
}
