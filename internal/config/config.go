package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/eugenenazirov/st2actioncontroller/internal/registry"
)

// Option groups consumed by the action controller.
const (
	GroupAPI         = "action_controller_api"
	GroupPecan       = "action_pecan"
	GroupLogging     = "action_controller_logging"
	GroupDatabase    = "database"
	GroupActions     = "actions"
	GroupLiveActions = "liveactions"
)

const (
	programName = "st2actioncontroller"
	programHelp = "StackStorm action controller API"
	envPrefix   = "ST2"

	// ConfigFileEnv names the environment variable holding the configuration file path.
	ConfigFileEnv = "ST2_CONFIG_FILE"
	// DefaultConfigDir is the conventional configuration directory.
	DefaultConfigDir = "/etc/st2"
	// DefaultConfigFile is read when present and no other file is named.
	DefaultConfigFile = DefaultConfigDir + "/st2actioncontroller.yaml"
)

// Config is the typed view of the resolved options.
type Config struct {
	API         APIConfig
	Pecan       PecanConfig
	Logging     LoggingConfig
	Database    DatabaseConfig
	Actions     ActionsConfig
	LiveActions LiveActionsConfig
	UseDebugger bool
}

// APIConfig holds the HTTP bind address and server tuning.
type APIConfig struct {
	Host                string
	Port                int
	RateLimitRPS        int
	RateLimitBurst      int
	RequestLogging      bool
	ReadHeaderTimeout   time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

// Addr returns the host:port the API listens on.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PecanConfig holds the web mount options.
type PecanConfig struct {
	Root         string
	StaticRoot   string
	TemplatePath string
	Modules      []string
	Debug        bool
	AuthEnable   bool
	Errors       map[string]string
}

// LoggingConfig points at the logging configuration file.
type LoggingConfig struct {
	ConfigFile string
}

// DatabaseConfig holds the storage endpoint.
type DatabaseConfig struct {
	Host     string
	Port     int
	DBName   string
	Username string
	Password string
}

// Address returns host:port of the database server.
func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// URI returns a mongodb connection string for the database.
func (d DatabaseConfig) URI() string {
	u := url.URL{Scheme: "mongodb", Host: d.Address(), Path: "/" + d.DBName}
	if d.Username != "" {
		u.User = url.UserPassword(d.Username, d.Password)
	}
	return u.String()
}

// ActionsConfig locates action plugins.
type ActionsConfig struct {
	ModulesPath string
}

// LiveActionsConfig locates the downstream live actions service.
type LiveActionsConfig struct {
	BaseURL string
}

// NewRegistry creates a registry with the service's naming conventions and
// file search order (--config-file, ST2_CONFIG_FILE, DefaultConfigFile) and
// registers every option group.
func NewRegistry(opts ...registry.RegistryOption) (*registry.Registry, error) {
	base := []registry.RegistryOption{
		registry.WithProgram(programName, programHelp),
		registry.WithEnvPrefix(envPrefix),
		registry.WithConfigDir(DefaultConfigDir),
		registry.WithFileResolvers(
			registry.FromFlag(),
			registry.FromEnv(ConfigFileEnv),
			registry.AtPath(DefaultConfigFile),
		),
	}
	reg := registry.New(append(base, opts...)...)
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Load parses args into reg and returns the validated typed configuration.
func Load(reg *registry.Registry, args []string) (Config, error) {
	if err := reg.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse configuration: %w", err)
	}

	cfg, err := FromRegistry(reg)
	if err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromRegistry reads every option of a parsed registry into a Config.
func FromRegistry(reg *registry.Registry) (Config, error) {
	r := reader{reg: reg}
	cfg := Config{
		API: APIConfig{
			Host:                r.str(GroupAPI, "host"),
			Port:                r.integer(GroupAPI, "port"),
			RateLimitRPS:        r.integer(GroupAPI, "rate_limit_rps"),
			RateLimitBurst:      r.integer(GroupAPI, "rate_limit_burst"),
			RequestLogging:      r.boolean(GroupAPI, "request_logging"),
			ReadHeaderTimeout:   r.seconds(GroupAPI, "read_header_timeout"),
			WriteTimeout:        r.seconds(GroupAPI, "write_timeout"),
			IdleTimeout:         r.seconds(GroupAPI, "idle_timeout"),
			ShutdownGracePeriod: r.seconds(GroupAPI, "shutdown_grace_period"),
		},
		Pecan: PecanConfig{
			Root:         r.str(GroupPecan, "root"),
			StaticRoot:   r.str(GroupPecan, "static_root"),
			TemplatePath: r.str(GroupPecan, "template_path"),
			Modules:      r.list(GroupPecan, "modules"),
			Debug:        r.boolean(GroupPecan, "debug"),
			AuthEnable:   r.boolean(GroupPecan, "auth_enable"),
			Errors:       r.dict(GroupPecan, "errors"),
		},
		Logging: LoggingConfig{
			ConfigFile: r.str(GroupLogging, "config_file"),
		},
		Database: DatabaseConfig{
			Host:     r.str(GroupDatabase, "host"),
			Port:     r.integer(GroupDatabase, "port"),
			DBName:   r.str(GroupDatabase, "db_name"),
			Username: r.str(GroupDatabase, "username"),
			Password: r.str(GroupDatabase, "password"),
		},
		Actions: ActionsConfig{
			ModulesPath: r.str(GroupActions, "modules_path"),
		},
		LiveActions: LiveActionsConfig{
			BaseURL: r.str(GroupLiveActions, "liveactions_base_url"),
		},
		UseDebugger: r.boolean(registry.DefaultGroup, "use-debugger"),
	}
	if r.err != nil {
		return Config{}, fmt.Errorf("read configuration: %w", r.err)
	}
	return cfg, nil
}

// reader keeps the first accessor error so FromRegistry reads like a struct literal.
type reader struct {
	reg *registry.Registry
	err error
}

func (r *reader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) str(group, name string) string {
	v, err := r.reg.String(group, name)
	r.keep(err)
	return v
}

func (r *reader) integer(group, name string) int {
	v, err := r.reg.Int(group, name)
	r.keep(err)
	return v
}

func (r *reader) boolean(group, name string) bool {
	v, err := r.reg.Bool(group, name)
	r.keep(err)
	return v
}

func (r *reader) list(group, name string) []string {
	v, err := r.reg.StringList(group, name)
	r.keep(err)
	return v
}

func (r *reader) dict(group, name string) map[string]string {
	v, err := r.reg.StringMap(group, name)
	r.keep(err)
	return v
}

func (r *reader) seconds(group, name string) time.Duration {
	return time.Duration(r.integer(group, name)) * time.Second
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if err := validatePort(GroupAPI, cfg.API.Port); err != nil {
		return err
	}
	if err := validatePort(GroupDatabase, cfg.Database.Port); err != nil {
		return err
	}
	if cfg.API.RateLimitRPS < 0 {
		return fmt.Errorf("%s.rate_limit_rps must be >= 0", GroupAPI)
	}
	if cfg.API.RateLimitBurst < 0 {
		return fmt.Errorf("%s.rate_limit_burst must be >= 0", GroupAPI)
	}
	for name, d := range map[string]time.Duration{
		"read_header_timeout":   cfg.API.ReadHeaderTimeout,
		"write_timeout":         cfg.API.WriteTimeout,
		"idle_timeout":          cfg.API.IdleTimeout,
		"shutdown_grace_period": cfg.API.ShutdownGracePeriod,
	} {
		if d < 0 {
			return fmt.Errorf("%s.%s must be >= 0", GroupAPI, name)
		}
	}
	if cfg.Database.DBName == "" {
		return fmt.Errorf("%s.db_name cannot be empty", GroupDatabase)
	}
	u, err := url.Parse(cfg.LiveActions.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s.liveactions_base_url must be an absolute URL, got %q", GroupLiveActions, cfg.LiveActions.BaseURL)
	}
	return nil
}

func validatePort(group string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s.port must be between 0 and 65535, got %d", group, port)
	}
	return nil
}
