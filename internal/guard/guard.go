// Package guard holds the boolean predicates that gate whether a run is
// permitted on the current host at all. Guards are AND-combined and
// evaluated once, before any task runs; they are never re-evaluated
// mid-batch.
package guard

import (
	"fmt"
	"os"
	"strconv"
)

// Guard is one independent predicate.
type Guard interface {
	// Allowed reports whether execution may proceed.
	Allowed() bool
	// BlockingReason explains a false Allowed; empty when allowed.
	BlockingReason() string
}

// Set is an AND-combined list of guards.
type Set []Guard

// Check evaluates guards in order. The first guard to return false supplies
// the blocking reason.
func (s Set) Check() (bool, string) {
	for _, g := range s {
		if !g.Allowed() {
			return false, g.BlockingReason()
		}
	}
	return true, ""
}

// EnvironmentGuard allows execution only in the listed environments. An
// empty allow-list allows every environment.
type EnvironmentGuard struct {
	Current    string
	AllowedEnv []string
}

func (g *EnvironmentGuard) Allowed() bool {
	if len(g.AllowedEnv) == 0 {
		return true
	}
	for _, env := range g.AllowedEnv {
		if env == g.Current {
			return true
		}
	}
	return false
}

func (g *EnvironmentGuard) BlockingReason() string {
	return fmt.Sprintf("environment %q is not in the allowed set %v", g.Current, g.AllowedEnv)
}

// KillSwitchGuard blocks execution while the named environment variable is
// set to a truthy value. It is the operator's emergency stop.
type KillSwitchGuard struct {
	Variable string
}

func (g *KillSwitchGuard) Allowed() bool {
	v := os.Getenv(g.Variable)
	if v == "" {
		return true
	}
	disabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return !disabled
}

func (g *KillSwitchGuard) BlockingReason() string {
	return fmt.Sprintf("kill switch %s is engaged", g.Variable)
}

// MaintenanceGuard blocks execution while a maintenance marker file exists.
type MaintenanceGuard struct {
	MarkerPath string
}

func (g *MaintenanceGuard) Allowed() bool {
	if g.MarkerPath == "" {
		return true
	}
	_, err := os.Stat(g.MarkerPath)
	return os.IsNotExist(err)
}

func (g *MaintenanceGuard) BlockingReason() string {
	return fmt.Sprintf("maintenance marker %s is present", g.MarkerPath)
}
