package config

import (
	"path/filepath"
	"regexp"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
)

// Validate checks a normalized configuration with defaults applied.
func Validate(c *Config) error {
	if _, err := regexp.Compile(c.Extension); err != nil {
		return configError("invalid extension pattern: "+err.Error(), "extension")
	}
	if c.Mode != ModeStatic && c.Mode != ModeServer {
		return configError("invalid mode "+c.Mode, "mode")
	}
	if filepath.Clean(c.Path(c.PagesDir)) == filepath.Clean(c.Path(c.Output.Directory)) {
		return configError("output.directory must differ from pages_dir", "output.directory")
	}
	if c.Build.Workers < 1 {
		return configError("build.workers must be at least 1", "build.workers")
	}
	return nil
}

func configError(msg, field string) error {
	return derrors.ConfigError(msg).WithContext("field", field).Build()
}
