// Package config provides configuration management for conversion runs.
// Settings are resolved in layers: built-in defaults, then environment
// variables, then .env files, then an optional JSON config file. CLI
// flags are applied last by the caller.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Settings holds all conversion configuration.
type Settings struct {
	AIService     string  `json:"ai_service"`
	Model         string  `json:"model"`
	BaseURL       string  `json:"base_url"`
	APIKey        string  `json:"api_key"`
	OutputFormat  string  `json:"output_format"`
	EnableOCR     bool    `json:"enable_ocr"`
	TesseractPath string  `json:"tesseract_path"`
	OCRLanguage   string  `json:"ocr_language"`
	Verbose       bool    `json:"verbose"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	Jobs          int     `json:"jobs"`
}

// Default endpoints per AI service.
const (
	defaultOllamaURL = "http://localhost:11434"
	defaultOpenAIURL = "https://api.openai.com/v1"
)

// DefaultSettings returns Settings populated with default values.
// AI is disabled by default; the service must be opted into.
func DefaultSettings() *Settings {
	return &Settings{
		AIService:    "",
		Model:        "",
		BaseURL:      "",
		OutputFormat: "docx",
		EnableOCR:    false,
		OCRLanguage:  "eng",
		Verbose:      false,
		MaxTokens:    2000,
		Temperature:  0.3,
		Jobs:         1,
	}
}

// Load resolves settings from all sources below CLI flags. configPath
// may be empty; a missing explicit config file is an error, but missing
// .env files are not.
func Load(configPath string) (*Settings, error) {
	s := DefaultSettings()

	s.applyEnvMap(processEnv())
	s.applyEnvMap(loadDotEnv())

	if configPath != "" {
		if err := s.applyJSONFile(configPath); err != nil {
			return nil, err
		}
	}

	s.ApplyServiceDefaults()
	return s, nil
}

// ApplyServiceDefaults normalizes the service name and fills the base
// URL and model for the selected service when they were left empty.
// Called again after flag overrides.
func (s *Settings) ApplyServiceDefaults() {
	s.AIService = NormalizeService(s.AIService)
	switch s.AIService {
	case "ollama":
		if s.BaseURL == "" {
			s.BaseURL = defaultOllamaURL
		}
		if s.Model == "" {
			s.Model = "llama3"
		}
	case "openai":
		if s.BaseURL == "" {
			s.BaseURL = defaultOpenAIURL
		}
		if s.Model == "" {
			s.Model = "gpt-4o-mini"
		}
	}
}

// Validate checks the resolved settings before a conversion run starts.
func (s *Settings) Validate() error {
	switch s.OutputFormat {
	case "docx", "markdown":
	default:
		return fmt.Errorf("invalid output format %q (expected docx or markdown)", s.OutputFormat)
	}
	switch s.AIService {
	case "", "none", "ollama", "openai":
	default:
		return fmt.Errorf("invalid AI service %q (expected ollama, openai, or none)", s.AIService)
	}
	if s.AIService == "openai" && s.APIKey == "" {
		return fmt.Errorf("AI service openai requires an API key")
	}
	if s.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", s.Jobs)
	}
	if s.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be positive, got %d", s.MaxTokens)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", s.Temperature)
	}
	return nil
}

// NormalizeService lowercases a service name and maps the explicit
// "none" value to the internal disabled state (empty string).
func NormalizeService(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "none" {
		return ""
	}
	return v
}

// MaskedAPIKey returns the API key with the middle hidden, suitable for
// logs and verbose output.
func (s *Settings) MaskedAPIKey() string {
	key := s.APIKey
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// applyJSONFile overlays values from a JSON config file. Fields absent
// from the file keep their current values.
func (s *Settings) applyJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Environment variable names recognized by applyEnvMap.
var envKeys = []string{
	"AI_SERVICE", "MODEL", "BASE_URL", "API_KEY",
	"OUTPUT_FORMAT", "ENABLE_OCR", "TESSERACT_PATH", "OCR_LANGUAGE",
	"VERBOSE", "MAX_TOKENS", "TEMPERATURE",
}

func processEnv() map[string]string {
	m := make(map[string]string, len(envKeys))
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k); ok {
			m[k] = v
		}
	}
	return m
}

func (s *Settings) applyEnvMap(m map[string]string) {
	if v, ok := m["AI_SERVICE"]; ok {
		s.AIService = NormalizeService(v)
	}
	if v, ok := m["MODEL"]; ok {
		s.Model = v
	}
	if v, ok := m["BASE_URL"]; ok {
		s.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := m["API_KEY"]; ok {
		s.APIKey = v
	}
	if v, ok := m["OUTPUT_FORMAT"]; ok {
		s.OutputFormat = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := m["ENABLE_OCR"]; ok {
		s.EnableOCR = truthy(v)
	}
	if v, ok := m["TESSERACT_PATH"]; ok {
		s.TesseractPath = v
	}
	if v, ok := m["OCR_LANGUAGE"]; ok {
		s.OCRLanguage = v
	}
	if v, ok := m["VERBOSE"]; ok {
		s.Verbose = truthy(v)
	}
	if v, ok := m["MAX_TOKENS"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			s.MaxTokens = n
		}
	}
	if v, ok := m["TEMPERATURE"]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			s.Temperature = f
		}
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// loadDotEnv merges .env files from the user config directory and the
// working directory, the latter winning on conflicts. Missing files are
// skipped silently.
func loadDotEnv() map[string]string {
	merged := make(map[string]string)
	for _, path := range dotEnvPaths() {
		for k, v := range parseDotEnv(path) {
			merged[k] = v
		}
	}
	return merged
}

func dotEnvPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".pptconv", ".env"))
	}
	paths = append(paths, ".env")
	return paths
}

// parseDotEnv reads KEY=VALUE lines. Comments, blank lines, and
// malformed lines are ignored; surrounding quotes are stripped.
func parseDotEnv(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if key != "" {
			m[key] = value
		}
	}
	return m
}
