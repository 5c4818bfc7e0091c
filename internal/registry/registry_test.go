package registry

import (
	"errors"
	"io"
	"io/fs"
	"slices"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

const testConfigPath = "/etc/st2/test.yaml"

func newTestRegistry(t *testing.T, env map[string]string, files map[string]string, opts ...RegistryOption) *Registry {
	t.Helper()

	base := []RegistryOption{
		WithProgram("test", "registry under test"),
		WithEnvPrefix("ST2"),
		WithLookupEnv(func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		}),
		WithReadFile(func(path string) ([]byte, error) {
			data, ok := files[path]
			if !ok {
				return nil, fs.ErrNotExist
			}
			return []byte(data), nil
		}),
		WithFileResolvers(FromFlag(), FromEnv("ST2_CONFIG_FILE"), AtPath(testConfigPath)),
		WithLogger(zaptest.NewLogger(t)),
		WithUsageWriter(io.Discard),
		WithTerminate(func(int) {}),
	}
	return New(append(base, opts...)...)
}

func mustRegister(t *testing.T, r *Registry, group string, opts ...Option) {
	t.Helper()
	if err := r.Register(group, opts...); err != nil {
		t.Fatalf("Register(%s) returned error: %v", group, err)
	}
}

func TestRegisterDuplicateKeepsFirst(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", IntOpt("port", 27017, "port of db server"))

	err := r.Register("database", StringOpt("port", "x", "shadow"))
	if !errors.Is(err, ErrDuplicateOption) {
		t.Fatalf("expected ErrDuplicateOption, got %v", err)
	}

	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	port, err := r.Int("database", "port")
	if err != nil {
		t.Fatalf("Int returned error: %v", err)
	}
	if port != 27017 {
		t.Fatalf("expected first registration to survive, got %d", port)
	}
}

func TestRegisterIsAtomic(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", StringOpt("host", "0.0.0.0", ""))

	err := r.Register("database", StringOpt("db_name", "st2", ""), StringOpt("host", "::", ""))
	if !errors.Is(err, ErrDuplicateOption) {
		t.Fatalf("expected ErrDuplicateOption, got %v", err)
	}
	if _, err := r.FlagName("database", "db_name"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected db_name to be rolled back, got %v", err)
	}

	err = r.Register("actions", StringOpt("a", "", ""), StringOpt("a", "", ""))
	if !errors.Is(err, ErrDuplicateOption) {
		t.Fatalf("expected duplicate within one call to fail, got %v", err)
	}
}

func TestRegisterSameNameInDifferentGroups(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "action_controller_api", StringOpt("host", "0.0.0.0", ""))
	mustRegister(t, r, "database", StringOpt("host", "127.0.0.1", ""))

	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	api, _ := r.String("action_controller_api", "host")
	db, _ := r.String("database", "host")
	if api != "0.0.0.0" || db != "127.0.0.1" {
		t.Fatalf("unexpected hosts api=%q db=%q", api, db)
	}
}

func TestRegisterRejectsFlagCollisions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Registry) error
	}{
		{
			name: "GroupAndNameSpelling",
			setup: func(r *Registry) error {
				if err := r.Register("action_pecan", StringOpt("root", "", "")); err != nil {
					return err
				}
				return r.Register("action-pecan", StringOpt("root", "", ""))
			},
		},
		{
			name: "ReservedHelp",
			setup: func(r *Registry) error {
				return r.RegisterCLI(BoolOpt("help", false, ""))
			},
		},
		{
			name: "ReservedConfigFile",
			setup: func(r *Registry) error {
				return r.Register(DefaultGroup, StringOpt("config_file", "", ""))
			},
		},
		{
			name: "NegationOfExistingFlag",
			setup: func(r *Registry) error {
				if err := r.RegisterCLI(BoolOpt("use-debugger", true, "")); err != nil {
					return err
				}
				return r.RegisterCLI(BoolOpt("no-use-debugger", false, ""))
			},
		},
		{
			name: "CLIOptionShadowsGroupFlag",
			setup: func(r *Registry) error {
				if err := r.Register("database", IntOpt("port", 1, "")); err != nil {
					return err
				}
				return r.RegisterCLIInGroup("other", IntOpt("database-port", 2, ""))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, nil, nil)
			if err := tt.setup(r); !errors.Is(err, ErrDuplicateOption) {
				t.Fatalf("expected ErrDuplicateOption, got %v", err)
			}
		})
	}
}

func TestRegisterRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{name: "EmptyName", opt: StringOpt(" ", "", "")},
		{name: "UnknownKind", opt: Option{Name: "x", Kind: Kind(9), Default: "x"}},
		{name: "DefaultTypeMismatch", opt: Option{Name: "port", Kind: KindInteger, Default: "27017"}},
		{name: "MissingDefault", opt: Option{Name: "debug", Kind: KindBoolean}},
		{name: "ListDefaultWithSeparator", opt: ListOpt("modules", []string{"a,b"}, "")},
		{name: "ListDefaultWithPadding", opt: ListOpt("modules", []string{" a"}, "")},
		{name: "MapDefaultKeyWithEquals", opt: MapOpt("errors", map[string]string{"a=b": "c"}, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, nil, nil)
			if err := r.Register("g", tt.opt); !errors.Is(err, ErrInvalidOption) {
				t.Fatalf("expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestRegisterAfterParseFails(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if err := r.Register("late", StringOpt("x", "", "")); !errors.Is(err, ErrAlreadyParsed) {
		t.Fatalf("expected ErrAlreadyParsed, got %v", err)
	}
}

func TestRegisterCopiesDefaults(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	modules := []string{"st2actioncontroller"}
	mustRegister(t, r, "action_pecan", ListOpt("modules", modules, ""))
	modules[0] = "mutated"

	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	got, _ := r.StringList("action_pecan", "modules")
	if !slices.Equal(got, []string{"st2actioncontroller"}) {
		t.Fatalf("expected default to be copied at registration, got %q", got)
	}
}

func TestGetBeforeParse(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", IntOpt("port", 27017, ""))

	if _, err := r.Get("database", "port"); !errors.Is(err, ErrNotParsed) {
		t.Fatalf("expected ErrNotParsed, got %v", err)
	}
	if _, err := r.Get("database", "missing"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption before parse, got %v", err)
	}
	if _, err := r.Values(); !errors.Is(err, ErrNotParsed) {
		t.Fatalf("expected ErrNotParsed from Values, got %v", err)
	}
	if _, err := r.ConfigFile(); !errors.Is(err, ErrNotParsed) {
		t.Fatalf("expected ErrNotParsed from ConfigFile, got %v", err)
	}
}

func TestGetUnknownAfterParse(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", IntOpt("port", 27017, ""))
	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if _, err := r.Get("database", "db_name"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	if _, err := r.Get("db", "port"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption for unknown group, got %v", err)
	}
}

func TestTypedAccessorKindMismatch(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", IntOpt("port", 27017, ""))
	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if _, err := r.String("database", "port"); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	if _, err := r.StringMap("database", "port"); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "action_pecan",
		ListOpt("modules", []string{"a"}, ""),
		MapOpt("errors", map[string]string{"404": "/e"}, ""),
	)
	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	list, _ := r.StringList("action_pecan", "modules")
	list[0] = "mutated"
	dict, _ := r.StringMap("action_pecan", "errors")
	dict["404"] = "mutated"

	list, _ = r.StringList("action_pecan", "modules")
	dict, _ = r.StringMap("action_pecan", "errors")
	if list[0] != "a" || dict["404"] != "/e" {
		t.Fatalf("resolved values were mutated through accessors: %q %v", list, dict)
	}
}

func TestResetAllowsReparse(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", IntOpt("port", 27017, ""))

	if err := r.Parse([]string{"--database-port=1"}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if err := r.Parse([]string{}); !errors.Is(err, ErrAlreadyParsed) {
		t.Fatalf("expected ErrAlreadyParsed, got %v", err)
	}

	r.Reset()
	if r.Parsed() {
		t.Fatalf("expected registry to be unparsed after Reset")
	}
	if _, err := r.Get("database", "port"); !errors.Is(err, ErrNotParsed) {
		t.Fatalf("expected ErrNotParsed after Reset, got %v", err)
	}

	if err := r.Parse([]string{"--database-port=2"}); err != nil {
		t.Fatalf("second Parse returned error: %v", err)
	}
	if port, _ := r.Int("database", "port"); port != 2 {
		t.Fatalf("expected reparsed value 2, got %d", port)
	}
}

func TestValuesAreSorted(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", StringOpt("host", "", ""), IntOpt("port", 1, ""), StringOpt("db_name", "st2", ""))
	mustRegister(t, r, "actions", StringOpt("modules_path", "/opt", ""))
	if err := r.RegisterCLI(BoolOpt("use-debugger", true, "")); err != nil {
		t.Fatalf("RegisterCLI returned error: %v", err)
	}
	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	values, err := r.Values()
	if err != nil {
		t.Fatalf("Values returned error: %v", err)
	}
	var got []string
	for _, v := range values {
		got = append(got, v.Group+"."+v.Name)
	}
	want := []string{"actions.modules_path", "database.db_name", "database.host", "database.port", "default.use-debugger"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected order %q", got)
	}

	group, err := r.Group("database")
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if len(group) != 3 {
		t.Fatalf("expected 3 database options, got %d", len(group))
	}
	if _, err := r.Group("missing"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption for missing group, got %v", err)
	}
}

func TestSecretValuesAreMasked(t *testing.T) {
	r := newTestRegistry(t, map[string]string{"ST2_DATABASE_PASSWORD": "hunter2"}, nil)
	mustRegister(t, r, "database", StringOpt("password", "", "").AsSecret())
	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	v, err := r.Lookup("database", "password")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if v.Value != "hunter2" {
		t.Fatalf("expected real value to be accessible, got %v", v.Value)
	}
	if v.Display() != secretMask {
		t.Fatalf("expected masked display, got %q", v.Display())
	}

	r.LogValues(zaptest.NewLogger(t))
}

func TestDerivedNames(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "action_controller_api", IntOpt("port", 9101, ""))
	if err := r.RegisterCLI(BoolOpt("use-debugger", true, "")); err != nil {
		t.Fatalf("RegisterCLI returned error: %v", err)
	}
	if err := r.RegisterCLIInGroup("debug", BoolOpt("trace", false, "")); err != nil {
		t.Fatalf("RegisterCLIInGroup returned error: %v", err)
	}

	tests := []struct {
		group, name, flag, env string
	}{
		{"action_controller_api", "port", "action-controller-api-port", "ST2_ACTION_CONTROLLER_API_PORT"},
		{DefaultGroup, "use-debugger", "use-debugger", "ST2_DEFAULT_USE_DEBUGGER"},
		{"debug", "trace", "trace", "ST2_DEBUG_TRACE"},
	}
	for _, tt := range tests {
		flag, err := r.FlagName(tt.group, tt.name)
		if err != nil || flag != tt.flag {
			t.Fatalf("FlagName(%s, %s) = %q, %v; want %q", tt.group, tt.name, flag, err, tt.flag)
		}
		env, err := r.EnvName(tt.group, tt.name)
		if err != nil || env != tt.env {
			t.Fatalf("EnvName(%s, %s) = %q, %v; want %q", tt.group, tt.name, env, err, tt.env)
		}
	}
}

func TestConcurrentReadsAfterParse(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	mustRegister(t, r, "database", IntOpt("port", 27017, ""), ListOpt("hosts", []string{"a", "b"}, ""))
	if err := r.Parse([]string{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Int("database", "port"); err != nil {
				errs <- err
				return
			}
			hosts, err := r.StringList("database", "hosts")
			if err != nil {
				errs <- err
				return
			}
			hosts[0] = "mutated"
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent read failed: %v", err)
	}
	if hosts, _ := r.StringList("database", "hosts"); hosts[0] != "a" {
		t.Fatalf("snapshot mutated by readers: %q", hosts)
	}
}
