package cli

import (
	"errors"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ruffel/russh"
)

// EnvPrefix namespaces environment overrides, e.g. RUSSH_HOST.
const EnvPrefix = "RUSSH"

var errMissingHost = errors.New("no host given: use --host or RUSSH_HOST")

// Settings is the merged connection and logging configuration of one invocation.
type Settings struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	Identity   string        `mapstructure:"identity"`
	Passphrase string        `mapstructure:"passphrase"`
	KnownHosts string        `mapstructure:"known-hosts"`
	Insecure   bool          `mapstructure:"insecure"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SSHConfig  string        `mapstructure:"ssh-config"`
	LogLevel   string        `mapstructure:"log-level"`
	LogFormat  string        `mapstructure:"log-format"`
}

// registerFlags declares every setting as a persistent flag.
func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (YAML, TOML or JSON)")
	fs.String("host", "", "remote host, optionally as user@host")
	fs.Int("port", 0, "remote port (default 22)")
	fs.String("user", "", "remote user (default current user)")
	fs.String("password", "", "password credential")
	fs.String("identity", "", "private key file")
	fs.String("passphrase", "", "passphrase for an encrypted private key")
	fs.String("known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	fs.Bool("insecure", false, "skip host key verification")
	fs.Duration("timeout", 0, "dial and handshake timeout (default 30s)")
	fs.String("ssh-config", "", "resolve --host as an alias from this OpenSSH config file")
	fs.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	fs.String("log-format", "console", "log format (console, json)")
}

// loadSettings merges, lowest first: flag defaults, the config file,
// RUSSH_* environment variables and flags set on the command line.
func loadSettings(flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return Settings{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return s, nil
}

// Config converts the settings into a connection config. When SSHConfig is
// set the host is resolved as an alias first and explicit settings win.
func (s Settings) Config() (russh.Config, error) {
	host, username := splitTarget(s.Host)
	if host == "" {
		return russh.Config{}, errMissingHost
	}

	if username == "" {
		username = s.User
	}

	cfg := russh.NewConfig(host, username, russh.AuthMethods{})

	if s.SSHConfig != "" {
		resolved, err := russh.NewFromSSHConfig(host, s.SSHConfig)
		if err != nil {
			return russh.Config{}, err
		}

		cfg = resolved
		if username != "" {
			cfg.User = username
		}
	}

	if cfg.User == "" {
		cfg.User = localUser()
	}

	if s.Port != 0 {
		cfg.Port = s.Port
	}

	if s.Timeout != 0 {
		cfg.Timeout = s.Timeout
	}

	if s.Password != "" {
		p := russh.NewPasswordAuth(s.Password)
		cfg.Auth.Password = &p
	}

	if s.Identity != "" {
		key := russh.NewPrivateKeyAuth(s.Identity)
		if s.Passphrase != "" {
			key = russh.NewPrivateKeyAuthWithPassphrase(s.Identity, s.Passphrase)
		}

		cfg.Auth.PrivateKey = &key
	}

	if s.KnownHosts != "" {
		cfg.KnownHostsPath = s.KnownHosts
	}

	if s.Insecure {
		cfg.InsecureSkipVerify = true
	}

	return cfg, nil
}

// splitTarget splits "user@host" into its parts.
func splitTarget(target string) (string, string) {
	if i := strings.LastIndex(target, "@"); i >= 0 {
		return target[i+1:], target[:i]
	}

	return target, ""
}

func localUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}

	return u.Username
}
