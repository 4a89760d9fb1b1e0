// Package schedule is the job scheduler core that runs inside every node
// of the fleet.
//
// It is split the way the agent is operated:
//   - Table: the canonical, mutable job set merged from static config and
//     dynamically pushed definitions
//   - Trigger computation: pure next-fire-time math per trigger kind
//     (interval, calendar "when" expressions, cron), optionally bounded by a
//     daily range window
//   - Guard: per-job-name maxrunning enforcement
//   - Service: the tick loop that scans the table, applies splay, and
//     launches executions without ever blocking on one
//
// Execution bodies and result delivery live in the action and returner
// packages; the scheduler only triggers them.
package schedule
