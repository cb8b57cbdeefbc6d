// Package config provides layered configuration via
// github.com/spf13/viper: per-repository settings (repository/checkout
// paths, hash policy, ignore globs, manifest export mask) and the
// separate, smaller global per-user configuration file (§5.2, §6.5,
// §6.7).
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/hashcodec"
)

// Config is the resolved, typed view over a repository's settings.
type Config struct {
	RepositoryPath string
	CheckoutPath   string

	HashPolicy hashcodec.Policy

	IgnoreGlob []string
	CRNLGlob   []string
	BinaryGlob []string

	AllowSymlinks        bool
	ForbidDeltaManifests bool
	ManifestMask         int
	SeenDeltaManifest    bool
	ProjectCode          string
}

// NewProjectCode generates the random identifier assigned to a
// repository at creation time (§6.7's project-code key).
func NewProjectCode() string {
	return uuid.New().String()
}

// defaults mirrors §6.7's default values for keys a freshly created
// repository has never had set explicitly.
var defaults = map[string]any{
	"hash.policy":                  "auto",
	"checkout.ignore_glob":         "",
	"checkout.crnl_glob":           "",
	"checkout.binary_glob":         "",
	"checkout.allow_symlinks":      false,
	"checkout.forbid_delta_manifests": false,
	"checkout.manifest_mask":       0,
	"checkout.seen_delta_manifest": false,
}

// Load builds a Config by layering defaults, an optional repository
// config file at configFile (if non-empty and present), and environment
// variables prefixed FSL_ (e.g. FSL_HASH_POLICY), per §5.2.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("FSL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, corecontext.Wrap(corecontext.KindIO, "read config file", err)
			}
		}
	}

	policy, err := hashcodec.ParsePolicy(v.GetString("hash.policy"))
	if err != nil {
		return nil, err
	}

	return &Config{
		RepositoryPath:       v.GetString("repository.path"),
		CheckoutPath:         v.GetString("checkout.path"),
		HashPolicy:           policy,
		IgnoreGlob:           splitGlobList(v.GetString("checkout.ignore_glob")),
		CRNLGlob:             splitGlobList(v.GetString("checkout.crnl_glob")),
		BinaryGlob:           splitGlobList(v.GetString("checkout.binary_glob")),
		AllowSymlinks:        v.GetBool("checkout.allow_symlinks"),
		ForbidDeltaManifests: v.GetBool("checkout.forbid_delta_manifests"),
		ManifestMask:         v.GetInt("checkout.manifest_mask"),
		SeenDeltaManifest:    v.GetBool("checkout.seen_delta_manifest"),
		ProjectCode:          v.GetString("project_code"),
	}, nil
}

// splitGlobList parses §6.7's comma/whitespace-separated glob lists.
func splitGlobList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ManifestMask bits, per §6.6's exported-pseudo-file bitmask.
const (
	ManifestExportContent = 1 << iota
	ManifestExportHash
	ManifestExportTags
)

// ExportsContent reports whether c's manifest mask includes the raw
// manifest content pseudo-file.
func (c *Config) ExportsContent() bool { return c.ManifestMask&ManifestExportContent != 0 }

// ExportsHash reports whether c's manifest mask includes the manifest
// hash pseudo-file.
func (c *Config) ExportsHash() bool { return c.ManifestMask&ManifestExportHash != 0 }

// ExportsTags reports whether c's manifest mask includes the tag-list
// pseudo-file.
func (c *Config) ExportsTags() bool { return c.ManifestMask&ManifestExportTags != 0 }

// GlobalConfigPath resolves the per-user global configuration file
// location per §6.5: a named environment variable first, then
// $HOME/.fossil if it exists, then the XDG config directory, finally
// falling back to $HOME/.fossil even if absent (the caller creates it).
func GlobalConfigPath() (string, error) {
	if p := os.Getenv("FSLCORE_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", corecontext.Wrap(corecontext.KindIO, "resolve home directory", err)
	}
	legacy := filepath.Join(home, ".fossil")
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fslcore", "global.conf"), nil
	}
	return legacy, nil
}
