package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/gptrepl/internal/envvar"
)

// Environment is the runtime environment the CLI runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the environment from GPTREPL_ENV. Anything other than
// "development" or "dev" is treated as production.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.GptreplEnv))
}

// Parse maps a string to an Environment.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return Development
	default:
		return Production
	}
}

func (e Environment) IsDevelopment() bool {
	return e == Development
}

func (e Environment) String() string {
	return string(e)
}
