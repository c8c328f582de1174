// Package cli parses the fareprice command line: global flags, the
// subcommand, and the predict options. It also defines ExitError, which main
// turns into a process exit code.
package cli
