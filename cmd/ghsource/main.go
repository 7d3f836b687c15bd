package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/git-pkgs/ghsource/internal/core"
	"github.com/git-pkgs/ghsource/internal/github"
	"github.com/git-pkgs/ghsource/internal/refs"
)

// tokenUser is sent as the basic auth username when only a token is known.
const tokenUser = "x-access-token"

var (
	cfgFile string

	// Dependencies for testing
	stderr    io.Writer = os.Stderr
	newLister           = func(s settings) refs.Lister {
		if s.GitCLI {
			return &refs.ExecLister{Username: s.Username, Password: s.Password, Timeout: s.Timeout}
		}
		l := refs.NewGoGitLister(s.Username, s.Password)
		l.Timeout = s.Timeout
		return l
	}
)

// settings is the resolved CLI configuration.
type settings struct {
	Username  string        `mapstructure:"username" json:"username"`
	Password  string        `mapstructure:"password" json:"password"`
	TmpDir    string        `mapstructure:"tmp_dir" json:"tmp_dir"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	APIURL    string        `mapstructure:"api_url" json:"api_url"`
	RemoteURL string        `mapstructure:"remote_url" json:"remote_url"`
	RawURL    string        `mapstructure:"raw_url" json:"raw_url"`
	UserAgent string        `mapstructure:"user_agent" json:"user_agent"`
	LogLevel  string        `mapstructure:"log_level" json:"log_level"`
	GitCLI    bool          `mapstructure:"git_cli" json:"git_cli"`
}

func (s settings) coreConfig() core.Config {
	return core.Config{
		Username:  s.Username,
		Password:  s.Password,
		TmpDir:    s.TmpDir,
		Timeout:   s.Timeout,
		APIURL:    s.APIURL,
		RemoteURL: s.RemoteURL,
		RawURL:    s.RawURL,
		UserAgent: s.UserAgent,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "ghsource",
		Short:         "Resolve and download packages hosted on GitHub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./ghsource.yaml or ~/.config/ghsource/ghsource.yaml)")
	flags.String("username", "", "GitHub username")
	flags.String("password", "", "GitHub password or token (defaults to $GITHUB_TOKEN, then $GH_TOKEN)")
	flags.String("tmp-dir", "", "Directory for temporary files")
	flags.String("timeout", "120", "Timeout for downloads, ref listing and external tools, in seconds or as a duration (2m)")
	flags.String("api-url", "", "GitHub API base URL")
	flags.String("remote-url", "", "GitHub web base URL")
	flags.String("raw-url", "", "Raw content base URL")
	flags.String("user-agent", "", "Custom User-Agent")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("git-cli", false, "List refs with the git command line instead of go-git")

	for key, flag := range map[string]string{
		"username":   "username",
		"password":   "password",
		"tmp_dir":    "tmp-dir",
		"timeout":    "timeout",
		"api_url":    "api-url",
		"remote_url": "remote-url",
		"raw_url":    "raw-url",
		"user_agent": "user-agent",
		"log_level":  "log-level",
		"git_cli":    "git-cli",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newLookupCmd(v),
		newDownloadCmd(v),
		newPackageCmd(v),
		newResolveCmd(v),
		newConfigCmd(v),
	)
	return root
}

// loadSettings merges defaults, the config file, GHSOURCE_* environment
// variables and flags.
func loadSettings(v *viper.Viper) (settings, error) {
	v.SetDefault("tmp_dir", filepath.Join(os.TempDir(), "ghsource"))
	v.SetDefault("timeout", 120)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ghsource")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "ghsource"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return settings{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("GHSOURCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var s settings
	if err := v.Unmarshal(&s, viper.DecodeHook(secondsToDurationHook())); err != nil {
		return settings{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if s.Password == "" {
		s.Password = envToken()
	}
	if s.Username == "" && s.Password != "" {
		s.Username = tokenUser
	}
	return s, nil
}

// secondsToDurationHook decodes time.Duration values given as a bare number
// of seconds, or as a duration string such as "90s".
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			v = strings.TrimSpace(v)
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				return time.Duration(n * float64(time.Second)), nil
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout %q: use seconds or a duration such as 2m", v)
			}
			return d, nil
		}
		return data, nil
	}
}

// envToken returns a GitHub token from the environment, preferring
// GITHUB_TOKEN over GH_TOKEN.
func envToken() string {
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok
	}
	return os.Getenv("GH_TOKEN")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// newSource builds the GitHub source and logger for a command.
func newSource(v *viper.Viper, opts ...github.Option) (*github.Source, settings, zerolog.Logger, error) {
	s, err := loadSettings(v)
	if err != nil {
		return nil, settings{}, zerolog.Logger{}, err
	}
	logger := newLogger(s.LogLevel)

	client := core.NewClient()
	opts = append([]github.Option{
		github.WithLogger(logger),
		github.WithLister(newLister(s)),
	}, opts...)
	return github.New(s.coreConfig(), client, opts...), s, logger, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
