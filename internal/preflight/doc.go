// Package preflight provides readiness checks for the external services,
// binaries, and filesystem paths that Platter depends on.
//
// The daemon runs CheckSystemDeps at startup to log missing tools, and the
// CLI status command uses the individual check functions to display health.
package preflight
