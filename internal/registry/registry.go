package registry

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// UnrecognizedPolicy decides what Parse does with command-line arguments that match no option.
type UnrecognizedPolicy int

const (
	// RejectUnrecognized fails Parse with ErrUnrecognizedOption.
	RejectUnrecognized UnrecognizedPolicy = iota
	// IgnoreUnrecognized drops the arguments and logs them at debug level.
	IgnoreUnrecognized
)

const (
	helpFlag       = "help"
	configFileFlag = "config-file"
	negationPrefix = "no-"
)

// flags kingpin defines on every application.
var reservedFlags = []string{
	helpFlag, configFileFlag,
	"help-long", "help-man",
	"completion-bash", "completion-script-bash", "completion-script-zsh",
}

type key struct {
	group string
	name  string
}

func (k key) String() string {
	return k.group + "." + k.name
}

type entry struct {
	group string
	opt   Option
	flag  string
	env   string
}

type snapshot struct {
	values     map[key]Value
	configFile string
}

// Registry holds option declarations and, once parsed, their resolved values.
// Registration and Parse are serialized; reads after Parse are lock-free.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]*entry
	order   []key
	flags   map[string]key
	envs    map[string]key

	resolved atomic.Pointer[snapshot]

	program   string
	help      string
	envPrefix string
	policy    UnrecognizedPolicy
	resolvers []FileResolver
	configDir string
	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
	usage     io.Writer
	terminate func(int)
	logger    *zap.Logger
}

// RegistryOption configures a Registry created by New.
type RegistryOption func(*Registry)

// WithProgram sets the program name and description shown in command-line usage.
func WithProgram(name, help string) RegistryOption {
	return func(r *Registry) {
		r.program = name
		r.help = help
	}
}

// WithEnvPrefix sets the prefix of environment variable names.
func WithEnvPrefix(prefix string) RegistryOption {
	return func(r *Registry) {
		r.envPrefix = strings.TrimSuffix(strings.TrimSpace(prefix), "_")
	}
}

// WithUnrecognizedPolicy sets how unknown command-line arguments are handled.
func WithUnrecognizedPolicy(policy UnrecognizedPolicy) RegistryOption {
	return func(r *Registry) {
		r.policy = policy
	}
}

// WithFileResolvers replaces the configuration file search order.
func WithFileResolvers(resolvers ...FileResolver) RegistryOption {
	return func(r *Registry) {
		r.resolvers = resolvers
	}
}

// WithConfigDir sets the confdir used for interpolation when no file was loaded.
func WithConfigDir(dir string) RegistryOption {
	return func(r *Registry) {
		r.configDir = dir
	}
}

// WithLookupEnv overrides the environment source, primarily for tests.
func WithLookupEnv(lookup func(string) (string, bool)) RegistryOption {
	return func(r *Registry) {
		r.lookupEnv = lookup
	}
}

// WithReadFile overrides how configuration files are read, primarily for tests.
func WithReadFile(read func(string) ([]byte, error)) RegistryOption {
	return func(r *Registry) {
		r.readFile = read
	}
}

// WithUsageWriter sets where --help output and command-line errors are written.
func WithUsageWriter(w io.Writer) RegistryOption {
	return func(r *Registry) {
		r.usage = w
	}
}

// WithTerminate overrides the function called after --help is printed.
func WithTerminate(terminate func(int)) RegistryOption {
	return func(r *Registry) {
		r.terminate = terminate
	}
}

// WithLogger sets the logger used for debug output during Parse.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty, unparsed Registry.
func New(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:   make(map[key]*entry),
		flags:     make(map[string]key),
		envs:      make(map[string]key),
		program:   os.Args[0],
		configDir: ".",
		resolvers: []FileResolver{FromFlag()},
		lookupEnv: os.LookupEnv,
		readFile:  os.ReadFile,
		usage:     os.Stderr,
		terminate: os.Exit,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds options to group. The call is atomic: when any option is
// invalid or already registered, none of them are added.
func (r *Registry) Register(group string, opts ...Option) error {
	return r.register(group, false, opts)
}

// RegisterCLI registers an option in DefaultGroup that is addressed by a bare --<name> flag.
func (r *Registry) RegisterCLI(opt Option) error {
	return r.register(DefaultGroup, true, []Option{opt})
}

// RegisterCLIInGroup registers an option in group that is still addressed by a bare --<name> flag.
func (r *Registry) RegisterCLIInGroup(group string, opt Option) error {
	return r.register(group, true, []Option{opt})
}

func (r *Registry) register(group string, cli bool, opts []Option) error {
	group = strings.TrimSpace(group)
	if group == "" {
		group = DefaultGroup
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved.Load() != nil {
		return fmt.Errorf("register %s: %w", group, ErrAlreadyParsed)
	}

	pending := make([]*entry, 0, len(opts))
	pendingKeys := make(map[key]struct{}, len(opts))
	pendingFlags := make(map[string]struct{}, len(opts))
	pendingEnvs := make(map[string]struct{}, len(opts))

	for _, opt := range opts {
		if err := opt.validate(); err != nil {
			return err
		}
		k := key{group: group, name: opt.Name}
		if _, ok := r.entries[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateOption, k)
		}
		if _, ok := pendingKeys[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateOption, k)
		}

		e := &entry{
			group: group,
			opt:   opt,
			flag:  flagName(group, opt.Name, cli),
			env:   envName(r.envPrefix, group, opt.Name),
		}
		if err := r.checkFlag(e.flag, pendingFlags); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDuplicateOption, k, err)
		}
		if _, ok := r.envs[e.env]; ok {
			return fmt.Errorf("%w: %s: environment variable %s already in use", ErrDuplicateOption, k, e.env)
		}
		if _, ok := pendingEnvs[e.env]; ok {
			return fmt.Errorf("%w: %s: environment variable %s already in use", ErrDuplicateOption, k, e.env)
		}

		e.opt.Default = codecs[opt.Kind].clone(opt.Default)
		pending = append(pending, e)
		pendingKeys[k] = struct{}{}
		pendingFlags[e.flag] = struct{}{}
		pendingEnvs[e.env] = struct{}{}
	}

	for _, e := range pending {
		k := key{group: e.group, name: e.opt.Name}
		r.entries[k] = e
		r.order = append(r.order, k)
		r.flags[e.flag] = k
		r.envs[e.env] = k
	}
	return nil
}

func (r *Registry) checkFlag(flag string, pending map[string]struct{}) error {
	taken := func(name string) bool {
		if _, ok := r.flags[name]; ok {
			return true
		}
		_, ok := pending[name]
		return ok || slices.Contains(reservedFlags, name)
	}
	if taken(flag) {
		return fmt.Errorf("flag --%s already in use", flag)
	}
	// --no-<flag> negates booleans, so both spellings must stay unambiguous.
	if taken(negationPrefix + flag) {
		return fmt.Errorf("flag --%s conflicts with --%s%s", flag, negationPrefix, flag)
	}
	if base, ok := strings.CutPrefix(flag, negationPrefix); ok && taken(base) {
		return fmt.Errorf("flag --%s conflicts with --%s", flag, base)
	}
	return nil
}

// Reset drops resolved values so Parse can run again. Registrations are kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved.Store(nil)
}

// Parsed reports whether Parse has completed successfully.
func (r *Registry) Parsed() bool {
	return r.resolved.Load() != nil
}

// ConfigFile returns the path of the configuration file loaded by Parse, if any.
func (r *Registry) ConfigFile() (string, error) {
	snap := r.resolved.Load()
	if snap == nil {
		return "", ErrNotParsed
	}
	return snap.configFile, nil
}

// Lookup returns the resolved value of an option together with its source.
func (r *Registry) Lookup(group, name string) (Value, error) {
	k := key{group: group, name: name}

	snap := r.resolved.Load()
	if snap == nil {
		r.mu.RLock()
		_, ok := r.entries[k]
		r.mu.RUnlock()
		if !ok {
			return Value{}, fmt.Errorf("%w: %s", ErrUnknownOption, k)
		}
		return Value{}, fmt.Errorf("%w: %s", ErrNotParsed, k)
	}

	v, ok := snap.values[k]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownOption, k)
	}
	v.Value = codecs[v.Kind].clone(v.Value)
	return v, nil
}

// Get returns the resolved value of an option.
func (r *Registry) Get(group, name string) (any, error) {
	v, err := r.Lookup(group, name)
	if err != nil {
		return nil, err
	}
	return v.Value, nil
}

// String returns the resolved value of a string option.
func (r *Registry) String(group, name string) (string, error) {
	return typed[string](r, group, name, KindString)
}

// Int returns the resolved value of an integer option.
func (r *Registry) Int(group, name string) (int, error) {
	return typed[int](r, group, name, KindInteger)
}

// Bool returns the resolved value of a boolean option.
func (r *Registry) Bool(group, name string) (bool, error) {
	return typed[bool](r, group, name, KindBoolean)
}

// StringList returns a copy of the resolved value of a list option.
func (r *Registry) StringList(group, name string) ([]string, error) {
	return typed[[]string](r, group, name, KindStringList)
}

// StringMap returns a copy of the resolved value of a map option.
func (r *Registry) StringMap(group, name string) (map[string]string, error) {
	return typed[map[string]string](r, group, name, KindStringMap)
}

func typed[T any](r *Registry, group, name string, kind Kind) (T, error) {
	var zero T
	v, err := r.Lookup(group, name)
	if err != nil {
		return zero, err
	}
	if v.Kind != kind {
		return zero, fmt.Errorf("%w: %s.%s is %s, not %s", ErrKindMismatch, group, name, v.Kind, kind)
	}
	return v.Value.(T), nil
}

// Values returns every resolved value ordered by group and name.
func (r *Registry) Values() ([]Value, error) {
	snap := r.resolved.Load()
	if snap == nil {
		return nil, ErrNotParsed
	}

	out := make([]Value, 0, len(snap.values))
	for _, v := range snap.values {
		v.Value = codecs[v.Kind].clone(v.Value)
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Value) int {
		return cmp.Or(cmp.Compare(a.Group, b.Group), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

// Group returns the resolved values of a single group ordered by name.
func (r *Registry) Group(group string) ([]Value, error) {
	all, err := r.Values()
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(v Value) bool { return v.Group != group })
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: group %s", ErrUnknownOption, group)
	}
	return out, nil
}

// FlagName returns the command-line flag, without dashes, that sets an option.
func (r *Registry) FlagName(group, name string) (string, error) {
	e, err := r.entry(group, name)
	if err != nil {
		return "", err
	}
	return e.flag, nil
}

// EnvName returns the environment variable that sets an option.
func (r *Registry) EnvName(group, name string) (string, error) {
	e, err := r.entry(group, name)
	if err != nil {
		return "", err
	}
	return e.env, nil
}

func (r *Registry) entry(group, name string) (*entry, error) {
	k := key{group: group, name: name}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, k)
	}
	return e, nil
}

// LogValues logs every resolved value with its source. Secret values are masked.
func (r *Registry) LogValues(logger *zap.Logger) {
	values, err := r.Values()
	if err != nil {
		logger.Warn("configuration values unavailable", zap.Error(err))
		return
	}
	for _, v := range values {
		logger.Info("configuration option",
			zap.String("group", v.Group),
			zap.String("name", v.Name),
			zap.String("value", v.Display()),
			zap.Stringer("source", v.Source),
		)
	}
}

func flagName(group, name string, cli bool) string {
	flag := normalizeFlag(name)
	if cli || group == DefaultGroup {
		return flag
	}
	return normalizeFlag(group) + "-" + flag
}

func normalizeFlag(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

func envName(prefix, group, name string) string {
	parts := []string{group, name}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	joined := strings.Join(parts, "_")
	return strings.ToUpper(strings.ReplaceAll(joined, "-", "_"))
}
