package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/fslcore/fsl/internal/corecontext"
)

// GlobalConfig is the small per-user identity and cross-repo settings
// file described by §6.5 — separate from a repository's own Config,
// and not namespaced under any one repository.
type GlobalConfig struct {
	UserName  string
	EditorCmd string
	Autosync  bool
}

// LoadGlobal reads the per-user global configuration file at path (as
// resolved by GlobalConfigPath). A missing file yields the defaults
// (empty user name and editor, autosync on) rather than an error, since a freshly installed user has
// never written one.
func LoadGlobal(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetDefault("user.name", "")
	v.SetDefault("user.editor", "")
	v.SetDefault("user.autosync", true)
	v.SetEnvPrefix("FSL_GLOBAL")
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, corecontext.Wrap(corecontext.KindIO, "read global config file", err)
		}
	}

	return &GlobalConfig{
		UserName:  v.GetString("user.name"),
		EditorCmd: v.GetString("user.editor"),
		Autosync:  v.GetBool("user.autosync"),
	}, nil
}
