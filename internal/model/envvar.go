package model

import "fmt"

// EnvVarPolicy decides which host environment variables a command inherits.
type EnvVarPolicy string

const (
	// EnvVarPolicyInheritAll passes the whole environment through.
	EnvVarPolicyInheritAll EnvVarPolicy = "inherit_all"
	// EnvVarPolicyCoreOnly keeps core variables and drops secret looking ones.
	EnvVarPolicyCoreOnly EnvVarPolicy = "core_only"
	// EnvVarPolicyInheritNone starts from an empty environment.
	EnvVarPolicyInheritNone EnvVarPolicy = "inherit_none"
)

// DefaultEnvVarPolicy is the policy used when none is set.
const DefaultEnvVarPolicy = EnvVarPolicyCoreOnly

// Validate validates the policy.
func (p EnvVarPolicy) Validate() error {
	switch p {
	case EnvVarPolicyInheritAll, EnvVarPolicyCoreOnly, EnvVarPolicyInheritNone:
		return nil
	}
	return fmt.Errorf("unknown env var policy %q: %w", p, ErrNotValid)
}
