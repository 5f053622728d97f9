package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/raine/listing-snap/internal/config"
)

// isInteractiveTerminal returns true if both stdin and stdout are TTYs.
// This is used to determine if we can run the interactive setup wizard.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runSetupWizard runs an interactive wizard to collect required configuration.
// Returns true if setup was successful and the server should continue starting.
func runSetupWizard() bool {
	// Header style
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("📸 Listing Snap - First-time Setup"))
	fmt.Println()

	var geminiKey, openaiKey string
	var s3Endpoint, s3AccessKeyID, s3SecretAccessKey, s3Bucket, s3PublicBaseURL string

	required := func(field string) func(string) error {
		return func(s string) error {
			if s == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key").
				Description("Get yours at https://aistudio.google.com/apikey").
				Value(&geminiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return validateGeminiKey(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API Key").
				Description("Used for background removal: https://platform.openai.com/api-keys").
				Value(&openaiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return validateOpenAIKey(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("S3 Endpoint").
				Description("S3-compatible endpoint URL, e.g. https://<account>.r2.cloudflarestorage.com").
				Value(&s3Endpoint).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("endpoint is required")
					}
					if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
						return errors.New("must be a http(s) URL")
					}
					return nil
				}),
			huh.NewInput().
				Title("S3 Access Key ID").
				Value(&s3AccessKeyID).
				Validate(required("access key ID")),
			huh.NewInput().
				Title("S3 Secret Access Key").
				EchoMode(huh.EchoModePassword).
				Value(&s3SecretAccessKey).
				Validate(required("secret access key")),
			huh.NewInput().
				Title("S3 Bucket").
				Description("Bucket for uploaded listing images").
				Value(&s3Bucket).
				Validate(required("bucket")),
			huh.NewInput().
				Title("Public Base URL (optional)").
				Description("Public URL the bucket is served from, e.g. a CDN domain. Leave empty to use the endpoint.").
				Value(&s3PublicBaseURL),
		),
	).WithTheme(huh.ThemeBase16())

	err := form.Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		"GEMINI_API_KEY":       geminiKey,
		"OPENAI_API_KEY":       openaiKey,
		"S3_ENDPOINT":          s3Endpoint,
		"S3_ACCESS_KEY_ID":     s3AccessKeyID,
		"S3_SECRET_ACCESS_KEY": s3SecretAccessKey,
		"S3_BUCKET":            s3Bucket,
		"S3_PUBLIC_BASE_URL":   s3PublicBaseURL,
	}

	configPath, err := config.WriteEnvFile(values)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		waitOnWindows()
		return false
	}

	// Set values in current process
	for k, v := range values {
		if v != "" {
			os.Setenv(k, v)
		}
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting server...")
	fmt.Println()

	return true
}

// validateGeminiKey validates a Gemini API key by making a simple API call.
func validateGeminiKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Use the models list endpoint which is lightweight and validates the key
	// URL-encode the key to handle any special characters
	q := url.Values{}
	q.Add("key", key)
	reqURL := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models?%s", q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 400 || resp.StatusCode == 401 || resp.StatusCode == 403 {
		var result struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Error.Message != "" {
			return errors.New(result.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", resp.StatusCode)
	}

	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode)
	}

	return nil
}

// validateOpenAIKey validates an OpenAI API key by listing models.
func validateOpenAIKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.openai.com/v1/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return errors.New("API key rejected by OpenAI")
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode)
	}

	return nil
}

// waitOnWindows pauses execution on Windows so users can see error messages
// before the console window closes.
func waitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// fatalWithWait logs a fatal error and waits on Windows before exiting.
func fatalWithWait(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Error().Msg(msg)
	waitOnWindows()
	os.Exit(1)
}
