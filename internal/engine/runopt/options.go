package runopt

import "github.com/kode4food/sequin/pkg/api"

type (
	// Options contains optional parameters for starting a flow run
	Options struct {
		InstanceID  api.InstanceID
		ConfigName  string
		Data        api.Values
		Middleware  api.MiddlewareNames
		Breakpoints []api.StepID
	}

	// Applier mutates Options during run setup
	Applier func(*Options)
)

// DefaultOptions returns an Options instance with defaults applied
func DefaultOptions(apps ...Applier) *Options {
	opt := &Options{
		ConfigName: api.DefaultConfigName,
		Data:       api.Values{},
	}
	ApplyOptions(opt, apps...)
	return opt
}

// ApplyOptions applies option appliers in order
func ApplyOptions(opt *Options, apps ...Applier) {
	for _, app := range apps {
		app(opt)
	}
}

// WithInstanceID sets the identifier of the root flow instance
func WithInstanceID(id api.InstanceID) Applier {
	return func(opt *Options) {
		opt.InstanceID = id
	}
}

// WithConfigName selects the config definition to load for the run
func WithConfigName(name string) Applier {
	return func(opt *Options) {
		if name != "" {
			opt.ConfigName = name
		}
	}
}

// WithData merges initial global data, overriding config defaults
func WithData(data api.Values) Applier {
	return func(opt *Options) {
		for k, v := range data {
			opt.Data = opt.Data.Set(k, v)
		}
	}
}

// WithValue sets one initial global data entry
func WithValue(name api.Name, value string) Applier {
	return func(opt *Options) {
		opt.Data = opt.Data.Set(name, value)
	}
}

// WithMiddleware appends middleware names to those the config selects
func WithMiddleware(names api.MiddlewareNames) Applier {
	return func(opt *Options) {
		opt.Middleware.Flow = append(opt.Middleware.Flow, names.Flow...)
		opt.Middleware.Group = append(opt.Middleware.Group, names.Group...)
		opt.Middleware.Attempt = append(
			opt.Middleware.Attempt, names.Attempt...,
		)
	}
}

// WithBreakpoints arms the breakpoint middleware at the given steps
func WithBreakpoints(ids ...api.StepID) Applier {
	return func(opt *Options) {
		opt.Breakpoints = append(opt.Breakpoints, ids...)
	}
}
