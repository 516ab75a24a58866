package profile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	configDir  = ".odbcarrow"
	configFile = "profiles"
	configType = "yaml"

	// KeyringService is the OS keyring service passwords are stored under.
	KeyringService = "odbcarrow"
)

// Load reads the profile file. When path is empty it looks for
// ~/.odbcarrow/profiles.yaml and returns an empty config if there is none.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := configDirPath()
		if err != nil {
			return nil, errors.Wrap(err, "config dir")
		}
		v.SetConfigName(configFile)
		v.AddConfigPath(dir)
	}

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read profiles")
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal profiles")
	}
	return cfg, nil
}

// Save writes cfg to path, or to ~/.odbcarrow/profiles.yaml when path is
// empty. Passwords are never written; use SetPassword.
func Save(cfg *Config, path string) error {
	if path == "" {
		dir, err := configDirPath()
		if err != nil {
			return errors.Wrap(err, "config dir")
		}
		path = filepath.Join(dir, configFile+"."+configType)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	profiles := make([]Profile, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		p.Password = ""
		profiles[i] = p
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("default_profile", cfg.DefaultProfile)
	v.Set("profiles", profiles)
	return v.WriteConfigAs(path)
}

// ResolvePassword returns the profile password, falling back to the OS
// keyring entry for user@host. A missing keyring entry yields "".
func ResolvePassword(p *Profile) (string, error) {
	if p.Password != "" {
		return p.Password, nil
	}
	pw, err := keyring.Get(KeyringService, keyringUser(p.User, p.Host))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "keyring")
	}
	return pw, nil
}

// SetPassword stores password in the OS keyring for user@host.
func SetPassword(user, host, password string) error {
	return errors.Wrap(keyring.Set(KeyringService, keyringUser(user, host), password), "keyring")
}

func keyringUser(user, host string) string {
	return user + "@" + host
}

func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}
