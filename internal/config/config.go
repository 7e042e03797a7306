// Package config holds the review parameters a reviewgate session is opened
// with and the tool settings read through viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"reviewgate/internal/model"
)

var (
	// ErrMissingParam is returned when a required review parameter is absent.
	ErrMissingParam = errors.New("missing review parameter")
	// ErrInvalidSetting is returned for a tool setting with an unusable value.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Review parameter names, as they appear in a review URL query string.
const (
	ParamContext       = "context"
	ParamOwner         = "owner"
	ParamRepo          = "repo"
	ParamCommitSHA     = "commit-sha"
	ParamSubjectURL    = "subject-url"
	ParamReviewMessage = "review-message"
)

// Params lists the required review parameters in validation order.
var Params = []string{
	ParamContext,
	ParamOwner,
	ParamRepo,
	ParamCommitSHA,
	ParamSubjectURL,
	ParamReviewMessage,
}

// Review is the immutable description of what is being reviewed.
type Review struct {
	Context       string
	Owner         string
	Repo          string
	CommitSHA     string
	SubjectURL    string
	ReviewMessage string
}

// Target returns the commit status target of the review.
func (r Review) Target() model.Target {
	return model.Target{
		Owner:   r.Owner,
		Repo:    r.Repo,
		SHA:     r.CommitSHA,
		Context: r.Context,
	}
}

func (r *Review) field(name string) *string {
	switch name {
	case ParamContext:
		return &r.Context
	case ParamOwner:
		return &r.Owner
	case ParamRepo:
		return &r.Repo
	case ParamCommitSHA:
		return &r.CommitSHA
	case ParamSubjectURL:
		return &r.SubjectURL
	case ParamReviewMessage:
		return &r.ReviewMessage
	}
	return nil
}

// Get returns the value of the named parameter.
func (r Review) Get(name string) string {
	if f := r.field(name); f != nil {
		return *f
	}
	return ""
}

// ParseQuery reads review parameters from a review URL or a bare query
// string. Values are kept verbatim; missing ones stay empty.
func ParseQuery(raw string) (Review, error) {
	var r Review
	if raw == "" {
		return r, nil
	}

	query := strings.TrimPrefix(raw, "?")
	if isReviewURL(query) {
		u, err := url.Parse(raw)
		if err != nil {
			return r, fmt.Errorf("parse review url: %w", err)
		}
		query = u.RawQuery
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return r, fmt.Errorf("parse review query: %w", err)
	}
	for _, name := range Params {
		*r.field(name) = values.Get(name)
	}
	return r, nil
}

// isReviewURL reports whether raw is a full URL rather than a bare query.
// Query values may carry unencoded URLs, so only the part before the first
// '?' is inspected, and a key=value pair there marks a bare query.
func isReviewURL(raw string) bool {
	head, _, _ := strings.Cut(raw, "?")
	return strings.Contains(head, "://") && !strings.ContainsAny(head, "=&")
}

// Overlay returns r with every non-empty parameter of o applied on top.
func (r Review) Overlay(o Review) Review {
	for _, name := range Params {
		if v := o.Get(name); v != "" {
			*r.field(name) = v
		}
	}
	return r
}

// Validate reports the first missing parameter.
func (r Review) Validate() error {
	for _, name := range Params {
		if r.Get(name) == "" {
			return fmt.Errorf("%w: query param %s is missing", ErrMissingParam, name)
		}
	}
	return nil
}

// Credential store backends.
const (
	StoreAuto   = "auto"
	StoreSystem = "system"
	StoreFile   = "file"
)

// Settings are the tool settings that do not describe the review itself.
type Settings struct {
	APIURL             string
	Timeout            time.Duration
	CredentialStore    string
	KeyringService     string
	KeyringDir         string
	KeyringPasswordEnv string
	LogFile            string
	LogLevel           string
	GlamourStyle       string
}

// Setting keys shared by flags, environment and config file.
const (
	KeyAPIURL             = "api-url"
	KeyTimeout            = "timeout"
	KeyCredentialStore    = "credential-store"
	KeyKeyringService     = "keyring-service"
	KeyKeyringDir         = "keyring-dir"
	KeyKeyringPasswordEnv = "keyring-password-env"
	KeyLogFile            = "log-file"
	KeyLogLevel           = "log-level"
	KeyGlamourStyle       = "glamour-style"
)

// Default returns Settings with all defaults applied.
func Default() Settings {
	return Settings{
		APIURL:             "https://api.github.com/",
		Timeout:            30 * time.Second,
		CredentialStore:    StoreAuto,
		KeyringService:     "reviewgate",
		KeyringPasswordEnv: "REVIEWGATE_KEYRING_PASSWORD",
		LogLevel:           "info",
		GlamourStyle:       "auto",
	}
}

// SetDefaults registers the defaults with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyAPIURL, d.APIURL)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyCredentialStore, d.CredentialStore)
	v.SetDefault(KeyKeyringService, d.KeyringService)
	v.SetDefault(KeyKeyringPasswordEnv, d.KeyringPasswordEnv)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyGlamourStyle, d.GlamourStyle)
}

// NewViper returns a viper instance reading REVIEWGATE_* environment
// variables, e.g. REVIEWGATE_COMMIT_SHA for commit-sha.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("REVIEWGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// ReadConfigFile loads path, or the default config file if path is empty.
// A missing default config file is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(dir, "reviewgate"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// ReviewFrom reads the review parameters known to v.
func ReviewFrom(v *viper.Viper) Review {
	var r Review
	for _, name := range Params {
		*r.field(name) = v.GetString(name)
	}
	return r
}

// SettingsFrom reads and validates the tool settings known to v.
func SettingsFrom(v *viper.Viper) (Settings, error) {
	s := Settings{
		APIURL:             v.GetString(KeyAPIURL),
		Timeout:            v.GetDuration(KeyTimeout),
		CredentialStore:    v.GetString(KeyCredentialStore),
		KeyringService:     v.GetString(KeyKeyringService),
		KeyringDir:         v.GetString(KeyKeyringDir),
		KeyringPasswordEnv: v.GetString(KeyKeyringPasswordEnv),
		LogFile:            v.GetString(KeyLogFile),
		LogLevel:           v.GetString(KeyLogLevel),
		GlamourStyle:       v.GetString(KeyGlamourStyle),
	}
	return s, s.Validate()
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	switch s.CredentialStore {
	case StoreAuto, StoreSystem, StoreFile:
	default:
		return fmt.Errorf("%w: %s must be one of auto, system, file (got %q)",
			ErrInvalidSetting, KeyCredentialStore, s.CredentialStore)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidSetting, KeyTimeout)
	}
	if s.KeyringService == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidSetting, KeyKeyringService)
	}
	if _, err := url.Parse(s.APIURL); err != nil || s.APIURL == "" {
		return fmt.Errorf("%w: %s %q is not a URL", ErrInvalidSetting, KeyAPIURL, s.APIURL)
	}
	return nil
}

// DefaultLogFile returns the log path used when none is configured.
func DefaultLogFile() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(dir, "reviewgate", "reviewgate.log"), nil
}

// DefaultKeyringDir returns the file keyring directory used when none is
// configured.
func DefaultKeyringDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "reviewgate", "keyring"), nil
}
