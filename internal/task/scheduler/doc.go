// Package scheduler fires one job on a cron or interval schedule.
//
// A tick that arrives while the previous run is still going is skipped, so
// at most one run is ever active. The schedule can be swapped at runtime
// (config reload) without restarting the process.
package scheduler
