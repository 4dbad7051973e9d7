package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/slok/envctl/internal/model"
)

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// coreVars are always kept under the core only policy.
var coreVars = map[string]struct{}{
	"PATH":        {},
	"HOME":        {},
	"USER":        {},
	"SHELL":       {},
	"LANG":        {},
	"TERM":        {},
	"TMPDIR":      {},
	"GOPATH":      {},
	"CARGO_HOME":  {},
	"NVM_DIR":     {},
	"PYENV_ROOT":  {},
	"JAVA_HOME":   {},
	"RUSTUP_HOME": {},
}

// secretSuffixes mark a variable as a secret, matched case-insensitively.
var secretSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
	"_AUTH",
}

// ParseSpecs parses `KEY=VALUE` or `KEY` (taken from the current environment) specs.
func ParseSpecs(specs []string) (map[string]string, error) {
	env := make(map[string]string, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("environment variable spec cannot be empty")
		}

		if key, value, ok := strings.Cut(spec, "="); ok {
			if !IsValidKey(key) {
				return nil, fmt.Errorf("invalid environment variable key %q", key)
			}

			env[key] = value
			continue
		}

		if !IsValidKey(spec) {
			return nil, fmt.Errorf("invalid environment variable key %q", spec)
		}

		value, ok := os.LookupEnv(spec)
		if !ok {
			return nil, fmt.Errorf("environment variable %q is not set", spec)
		}

		env[spec] = value
	}

	return env, nil
}

func MergeMaps(base map[string]string, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return map[string]string{}
	}

	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	return merged
}

// Filter applies the inheritance policy to the base environment and then
// merges the explicit variables on top. Explicit variables are always
// present in the result, whatever the policy. Unknown policies filter like
// core_only so secrets are never leaked by a typo.
func Filter(policy model.EnvVarPolicy, base map[string]string, explicit map[string]string) map[string]string {
	var inherited map[string]string
	switch policy {
	case model.EnvVarPolicyInheritAll:
		inherited = base
	case model.EnvVarPolicyInheritNone:
		inherited = map[string]string{}
	default:
		inherited = make(map[string]string, len(base))
		for k, v := range base {
			if IsCore(k) || !IsSecret(k) {
				inherited[k] = v
			}
		}
	}

	return MergeMaps(inherited, explicit)
}

// IsCore returns true if the variable is in the core allow-list.
func IsCore(name string) bool {
	_, ok := coreVars[name]
	return ok
}

// IsSecret returns true if the variable name looks like a secret.
func IsSecret(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// FromEnviron converts a `KEY=VALUE` list (like os.Environ) into a map.
func FromEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// ToEnviron converts a map into a sorted `KEY=VALUE` list.
func ToEnviron(env map[string]string) []string {
	environ := make([]string, 0, len(env))
	for _, k := range SortedKeys(env) {
		environ = append(environ, k+"="+env[k])
	}
	return environ
}

func IsValidKey(k string) bool {
	return envKeyRegexp.MatchString(k)
}
