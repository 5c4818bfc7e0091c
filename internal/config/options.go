package config

import "github.com/eugenenazirov/st2actioncontroller/internal/registry"

var apiOptions = []registry.Option{
	registry.StringOpt("host", "0.0.0.0", "StackStorm action controller API server host"),
	registry.IntOpt("port", 9101, "StackStorm action controller API server port"),
	registry.IntOpt("rate_limit_rps", 25, "Requests per second allowed (0 disables rate limiting)"),
	registry.IntOpt("rate_limit_burst", 50, "Burst capacity of the rate limiter (0 disables rate limiting)"),
	registry.BoolOpt("request_logging", true, "Emit an access log line per request"),
	registry.IntOpt("read_header_timeout", 5, "Seconds allowed to read request headers"),
	registry.IntOpt("write_timeout", 15, "Seconds allowed to write a response"),
	registry.IntOpt("idle_timeout", 60, "Seconds a keep-alive connection may stay idle"),
	registry.IntOpt("shutdown_grace_period", 10, "Seconds to wait for in-flight requests on shutdown"),
}

var pecanOptions = []registry.Option{
	registry.StringOpt("root", "st2actioncontroller.controllers.root.RootController", "Action root controller"),
	registry.StringOpt("static_root", "%(confdir)s/public", "Directory of static assets"),
	registry.StringOpt("template_path", "%(confdir)s/st2actioncontroller/templates", "Directory of templates"),
	registry.ListOpt("modules", []string{"st2actioncontroller"}, "Modules mounted by the web layer"),
	registry.BoolOpt("debug", true, "Enable debug mode of the web layer"),
	registry.BoolOpt("auth_enable", true, "Require authentication"),
	registry.MapOpt("errors", map[string]string{"__force_dict__": "true"}, "Error page mapping"),
}

var loggingOptions = []registry.Option{
	registry.StringOpt("config_file", "conf/logging.conf", "location of the logging.conf file"),
}

var databaseOptions = []registry.Option{
	registry.StringOpt("host", "0.0.0.0", "host of db server"),
	registry.IntOpt("port", 27017, "port of db server"),
	registry.StringOpt("db_name", "st2", "name of database"),
	registry.StringOpt("username", "", "user of db server"),
	registry.StringOpt("password", "", "password of db server").AsSecret(),
}

var actionsOptions = []registry.Option{
	registry.StringOpt("modules_path", "/opt/stackstorm/actions", "path where action plugins are located"),
}

var liveActionsOptions = []registry.Option{
	registry.StringOpt("liveactions_base_url", "http://localhost:9501/liveactions", "Base URL for live actions."),
}

var useDebugger = registry.BoolOpt("use-debugger", true,
	"Enables debugger. Note that using this option changes how the "+
		"eventlet library is used to support async IO. This could result in "+
		"failures that do not occur under normal operation.")

// Register declares every option group of the action controller on reg.
func Register(reg *registry.Registry) error {
	groups := []struct {
		name string
		opts []registry.Option
	}{
		{GroupAPI, apiOptions},
		{GroupPecan, pecanOptions},
		{GroupLogging, loggingOptions},
		{GroupDatabase, databaseOptions},
		{GroupActions, actionsOptions},
		{GroupLiveActions, liveActionsOptions},
	}
	for _, g := range groups {
		if err := reg.Register(g.name, g.opts...); err != nil {
			return err
		}
	}
	return reg.RegisterCLI(useDebugger)
}
