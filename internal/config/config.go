package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	AppName     = "listing-snap"
	EnvFileName = "config.env"
)

// RequiredEnvVars lists all environment variables that must be set for the
// server to run.
var RequiredEnvVars = []string{
	"GEMINI_API_KEY",
	"OPENAI_API_KEY",
	"S3_ENDPOINT",
	"S3_ACCESS_KEY_ID",
	"S3_SECRET_ACCESS_KEY",
	"S3_BUCKET",
}

// Config holds everything the server needs to start. Required fields come
// straight from the environment, the rest have defaults.
type Config struct {
	GeminiAPIKey string
	OpenAIAPIKey string

	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3PublicBaseURL   string

	ListenAddr string
	DBPath     string
}

// FromEnv reads the configuration from environment variables. Call
// CheckRequired first; FromEnv does not validate.
func FromEnv() Config {
	return Config{
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          getenvDefault("S3_REGION", "auto"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		ListenAddr:        getenvDefault("LISTEN_ADDR", ":8080"),
		DBPath:            getenvDefault("DB_PATH", "listing-snap.db"),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// CheckRequired returns the names of any required environment variables that
// are not set.
func CheckRequired() []string {
	var missing []string
	for _, v := range RequiredEnvVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configPath, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// Dir returns the application's config directory path, creating it if it
// doesn't exist.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// WriteEnvFile writes the configuration to the config file. Uses restrictive
// permissions since the file contains secrets. Returns the path where the
// config was written.
func WriteEnvFile(values map[string]string) (string, error) {
	configPath, err := FilePath()
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// Write in a consistent order, quoting values to handle special characters
	order := []string{
		"GEMINI_API_KEY",
		"OPENAI_API_KEY",
		"S3_ENDPOINT",
		"S3_REGION",
		"S3_ACCESS_KEY_ID",
		"S3_SECRET_ACCESS_KEY",
		"S3_BUCKET",
		"S3_PUBLIC_BASE_URL",
	}
	for _, key := range order {
		if val, ok := values[key]; ok && val != "" {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return "", fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}

	return configPath, nil
}
