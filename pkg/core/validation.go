package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigError is one rejected ProjectConfig field.
type ConfigError struct {
	Field   string
	Message string
}

func (e ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// ConfigErrors collects every rejected field of a ProjectConfig.
type ConfigErrors []ConfigError

func (e ConfigErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid project config: " + strings.Join(msgs, "; ")
}

// Fields returns the names of the rejected fields in order.
func (e ConfigErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, err := range e {
		fields[i] = err.Field
	}
	return fields
}

// configValidator accumulates field errors so a bad config reports all of
// them at once.
type configValidator struct {
	errs ConfigErrors
}

func (v *configValidator) fail(field, format string, args ...any) {
	v.errs = append(v.errs, ConfigError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// projectRoot requires an absolute path to an existing directory.
func (v *configValidator) projectRoot(field, path string) {
	switch {
	case strings.TrimSpace(path) == "":
		v.fail(field, "is required")
		return
	case !filepath.IsAbs(path):
		v.fail(field, "must be an absolute path")
		return
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		v.fail(field, "directory does not exist")
	case err != nil:
		v.fail(field, "cannot access directory: %v", err)
	case !info.IsDir():
		v.fail(field, "is not a directory")
	}
}

// projectType accepts the empty type (auto) or one of AllProjectTypes.
func (v *configValidator) projectType(field string, pt ProjectType) {
	if pt == "" {
		return
	}
	names := make([]string, 0, len(AllProjectTypes()))
	for _, known := range AllProjectTypes() {
		if pt == known {
			return
		}
		names = append(names, string(known))
	}
	v.fail(field, "must be one of: %s", strings.Join(names, ", "))
}

func (v *configValidator) nonNegative(field string, n int64) {
	if n < 0 {
		v.fail(field, "must not be negative")
	}
}

func (v *configValidator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}
