package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sentinel errors
var (
	// ErrProfileNotFound is returned when a profile doesn't exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoDefaultProfile is returned when no default is set.
	ErrNoDefaultProfile = errors.New("no default profile set")

	// ErrInvalidProfile is returned when a profile is missing its name or server.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile is a named server endpoint plus the bearer token used to call it.
type Profile struct {
	Name        string     `json:"name"`
	Server      string     `json:"server"`
	Token       string     `json:"token,omitempty"`
	PrincipalID string     `json:"principal_id,omitempty"`
	Role        string     `json:"role,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the stored token has passed its expiry.
func (p *Profile) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// Config represents the credentials configuration file.
type Config struct {
	Version        int                `json:"version"`
	DefaultProfile string             `json:"default_profile,omitempty"`
	Profiles       map[string]Profile `json:"profiles"`
}

// Store manages profile storage on the local filesystem.
type Store struct {
	baseDir string
	now     func() time.Time
}

// NewStore creates a new profile store.
// If baseDir is empty, uses ~/.rollcall/credentials/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".rollcall", "credentials")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	store := &Store{baseDir: baseDir, now: time.Now}

	if err := store.ensureConfig(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("credential store initialized")

	return store, nil
}

// Save adds or replaces a profile. Token claims are read to fill the
// principal, role and expiry. The first profile saved becomes the default.
func (s *Store) Save(profile Profile) (*Profile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Server = strings.TrimRight(strings.TrimSpace(profile.Server), "/")
	if profile.Name == "" || profile.Server == "" {
		return nil, fmt.Errorf("%w: name and server are required", ErrInvalidProfile)
	}

	if profile.Token != "" {
		info, err := InspectToken(profile.Token)
		if err != nil {
			return nil, err
		}
		profile.PrincipalID = info.PrincipalID
		profile.Role = info.Role
		profile.ExpiresAt = info.ExpiresAt
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile.CreatedAt = now
	if existing, ok := cfg.Profiles[profile.Name]; ok {
		profile.CreatedAt = existing.CreatedAt
	}
	profile.UpdatedAt = now

	cfg.Profiles[profile.Name] = profile

	if len(cfg.Profiles) == 1 {
		cfg.DefaultProfile = profile.Name
	}

	if err := s.saveConfig(cfg); err != nil {
		return nil, err
	}

	log.Info().
		Str("name", profile.Name).
		Str("server", profile.Server).
		Str("principalID", profile.PrincipalID).
		Msg("profile saved")

	return &profile, nil
}

// Get retrieves a profile by name.
func (s *Store) Get(name string) (*Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	profile, ok := cfg.Profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}

	return &profile, nil
}

// GetDefault retrieves the default profile.
// Returns ErrNoDefaultProfile if none is set.
func (s *Store) GetDefault() (*Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DefaultProfile == "" {
		return nil, ErrNoDefaultProfile
	}

	return s.Get(cfg.DefaultProfile)
}

// Resolve returns the named profile, or the default when name is empty.
func (s *Store) Resolve(name string) (*Profile, error) {
	if name == "" {
		return s.GetDefault()
	}
	return s.Get(name)
}

// List returns all stored profiles ordered by name.
func (s *Store) List() ([]Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(cfg.Profiles))
	for _, profile := range cfg.Profiles {
		profiles = append(profiles, profile)
	}
	slices.SortFunc(profiles, func(a, b Profile) int {
		return strings.Compare(a.Name, b.Name)
	})

	return profiles, nil
}

// Delete removes a profile.
func (s *Store) Delete(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return ErrProfileNotFound
	}

	delete(cfg.Profiles, name)

	if cfg.DefaultProfile == name {
		cfg.DefaultProfile = ""
	}

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("profile deleted")

	return nil
}

// SetDefault sets the default profile.
func (s *Store) SetDefault(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return ErrProfileNotFound
	}

	cfg.DefaultProfile = name

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("default profile set")

	return nil
}

// ensureConfig creates an empty config if it doesn't exist.
func (s *Store) ensureConfig() error {
	configPath := filepath.Join(s.baseDir, "config.json")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	cfg := &Config{
		Version:  1,
		Profiles: make(map[string]Profile),
	}

	return s.saveConfig(cfg)
}

// loadConfig reads the config file.
func (s *Store) loadConfig() (*Config, error) {
	configPath := filepath.Join(s.baseDir, "config.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// saveConfig writes the config file atomically.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(s.baseDir, "config.json")
	tempPath := configPath + ".tmp"

	// tokens are secrets
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
