package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// EnvToken overrides every stored token when set.
const EnvToken = "CRANKY_TOKEN"

const (
	configKey       = "cranky_jwt_token"
	DevTokenName    = ".cranky_dev_token"
	CredentialsName = "credentials.toml"
)

// Source names where a token was found.
type Source string

const (
	SourceNone        Source = ""
	SourceEnv         Source = "environment"
	SourceCredentials Source = "credentials file"
	SourceDevFile     Source = "dev token file"
	SourceMeta        Source = "meta.json"
)

type credentials struct {
	Token string `toml:"cranky_jwt_token"`
}

// TokenStore persists the service token with layered fallbacks. Writes go
// to CredentialsPath, or DevTokenPath when that fails. Reads try the
// environment, CredentialsPath, DevTokenPath and MetaPath in that order.
// Empty paths are skipped.
type TokenStore struct {
	CredentialsPath string
	DevTokenPath    string
	MetaPath        string
	Logger          *slog.Logger
}

// NewTokenStore lays the token files out under dir.
func NewTokenStore(dir string, logger *slog.Logger) *TokenStore {
	return &TokenStore{
		CredentialsPath: filepath.Join(dir, CredentialsName),
		DevTokenPath:    filepath.Join(dir, DevTokenName),
		MetaPath:        filepath.Join(dir, "meta.json"),
		Logger:          logger,
	}
}

// Save stores token.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	logger := s.logger()

	primary := s.saveCredentials(token)
	if primary == nil {
		logger.Info("token saved", "path", s.CredentialsPath)
		return nil
	}
	logger.Warn("save credentials failed", "error", primary)

	fallback := writePrivate(s.DevTokenPath, []byte(token))
	if fallback == nil {
		logger.Info("token saved", "path", s.DevTokenPath)
		return nil
	}
	logger.Error("write dev token file failed", "error", fallback)
	return errors.Join(primary, fallback)
}

func (s *TokenStore) saveCredentials(token string) error {
	if s.CredentialsPath == "" {
		return errors.New("no credentials path")
	}
	data, err := toml.Marshal(credentials{Token: token})
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	return writePrivate(s.CredentialsPath, data)
}

// Load returns the first token found and where it came from. A missing
// token is not an error.
func (s *TokenStore) Load() (string, Source) {
	logger := s.logger()
	if token := strings.TrimSpace(os.Getenv(EnvToken)); token != "" {
		return token, SourceEnv
	}

	if s.CredentialsPath != "" {
		if data, err := os.ReadFile(s.CredentialsPath); err == nil {
			var creds credentials
			if err := toml.Unmarshal(data, &creds); err != nil {
				logger.Warn("parse credentials failed", "path", s.CredentialsPath, "error", err)
			} else if token := strings.TrimSpace(creds.Token); token != "" {
				return token, SourceCredentials
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("read credentials failed", "error", err)
		}
	}

	if s.DevTokenPath != "" {
		if data, err := os.ReadFile(s.DevTokenPath); err == nil {
			if token := strings.TrimSpace(string(data)); token != "" {
				return token, SourceDevFile
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("read dev token file failed", "error", err)
		}
	}

	if s.MetaPath != "" {
		if data, err := os.ReadFile(s.MetaPath); err == nil {
			var meta struct {
				Config map[string]any `json:"config"`
			}
			if err := json.Unmarshal(data, &meta); err != nil {
				logger.Warn("parse meta.json failed", "error", err)
			} else if token, _ := meta.Config[configKey].(string); strings.TrimSpace(token) != "" {
				return strings.TrimSpace(token), SourceMeta
			}
		}
	}

	return "", SourceNone
}

// Token is Load without the source.
func (s *TokenStore) Token() string {
	token, _ := s.Load()
	return token
}

// Clear removes the token from the credentials and dev token files.
func (s *TokenStore) Clear() error {
	var errs []error
	for _, p := range []string{s.CredentialsPath, s.DevTokenPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *TokenStore) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func writePrivate(path string, data []byte) error {
	if path == "" {
		return errors.New("no path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
