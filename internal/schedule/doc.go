// Package schedule persists scheduled deliveries in SQLite and runs the
// engine that dispatches them. Two entry kinds exist: one-shots that fire
// once at a fixed time, and dead-man's-switches that fire whenever their
// owner fails to reset them in time, then re-arm and keep firing until
// cancelled.
//
// Dispatch is at-most-once per deadline: status transitions commit through
// conditional updates, so a concurrent cancel wins over an in-flight
// dispatch without double delivery.
package schedule
