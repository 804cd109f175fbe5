// Package quarryctx holds the single immutable ambient value every
// quarry component needs but none should stash in package-level mutable
// state: the working directory, environment, resolved configuration,
// and home directory. It is built once at CLI startup and threaded
// explicitly through every call.
package quarryctx

import (
	"os"

	"go.uber.org/zap"

	"github.com/quarrybuild/quarry/internal/config"
	"github.com/quarrybuild/quarry/internal/jobserver"
)

// Context is quarry's ambient value. It is never mutated after
// construction; components that need a narrower view (a different
// profile, a nested workspace member) derive a new Context with one of
// the With* methods rather than modifying this one.
type Context struct {
	Cwd    string
	Home   string
	Env    []string
	Config *config.Config
	Logger *zap.Logger
	Jobs   *jobserver.Pool
	// Offline, when true, forbids any network-originating source query;
	// set from net.offline (config), or forced by --offline/--frozen.
	Offline bool
	Locked  bool
}

// New resolves cwd/home, builds the configuration for cwd, and returns
// the base Context. cliConfigOverrides are "--config key=value" flags;
// logger and jobs are supplied by the caller since their construction
// depends on CLI flags (verbosity, job count) this package has no
// opinion about.
func New(cliConfigOverrides []string, logger *zap.Logger, jobs *jobserver.Pool) (*Context, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()
	env := os.Environ()

	cfg, err := config.Resolve(cwd, cliConfigOverrides, env)
	if err != nil {
		return nil, err
	}

	offline, _ := cfg.Get("net.offline")

	return &Context{
		Cwd:     cwd,
		Home:    home,
		Env:     env,
		Config:  cfg,
		Logger:  logger,
		Jobs:    jobs,
		Offline: offline == "true",
	}, nil
}

// WithOffline returns a copy of ctx with Offline forced to true,
// leaving the receiver untouched.
func (c *Context) WithOffline() *Context {
	cp := *c
	cp.Offline = true
	return &cp
}

// WithLocked returns a copy of ctx with Locked forced to true.
func (c *Context) WithLocked() *Context {
	cp := *c
	cp.Locked = true
	return &cp
}
