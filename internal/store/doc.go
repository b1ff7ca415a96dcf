// Package store provides SQLite-backed durable storage for the capture
// pipeline.
//
// The store exclusively owns persistence of execution runs, their action
// records, and the derived detail source links; the three are always
// written in one transaction so a reader never observes a run without its
// complete action and link set. It also persists events, planning
// contexts, verification results, and the append-only evidence ledger.
//
// Links are a pure function of the execution result, recomputed fresh on
// every record call, never separately mutable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
