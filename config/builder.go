package config

import (
	"github.com/jpalmerr/rollcall"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The result does not include a logger; callers append [rollcall.WithLogger]
// as needed.
func BuildOptions(cfg *Config) []rollcall.Option {
	opts := []rollcall.Option{
		rollcall.WithPort(cfg.Port),
		rollcall.WithWriteTimeout(cfg.WriteTimeout.Duration()),
		rollcall.WithSendBuffer(cfg.SendBuffer),
		rollcall.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
	}

	if cfg.Title != "" {
		opts = append(opts, rollcall.WithTitle(cfg.Title))
	}

	if len(cfg.AllowedOrigins) > 0 {
		opts = append(opts, rollcall.WithAllowedOrigins(cfg.AllowedOrigins...))
	}

	if len(cfg.Classrooms) > 0 {
		opts = append(opts, rollcall.WithClassrooms(BuildClassrooms(cfg)...))
	}

	return opts
}

// BuildClassrooms converts the seed section into SDK classrooms.
func BuildClassrooms(cfg *Config) []rollcall.Classroom {
	classrooms := make([]rollcall.Classroom, len(cfg.Classrooms))
	for i, cc := range cfg.Classrooms {
		c := rollcall.NewClassroom(cc.Name, cc.Path, cc.Students...)
		c.ID = cc.ID
		classrooms[i] = c
	}
	return classrooms
}
