// Package cli implements the command-line interface for ivasms-otp.
//
// The cli package provides the Cobra-based CLI: the root command runs the
// relay loop, and subcommands manage the accounts, groups and platform
// tables in the data directory plus the dedup store. It wires together the
// config, ivasms, store, dispatch, telegram and poller packages.
package cli
