// Package sim drives adaptive integrations.
//
// A [Driver] owns one stepper and borrows one system for the duration of a
// call. [Driver.Adaptive] records every accepted step into a [Trajectory];
// [Driver.Predefined] writes states at caller-chosen checkpoints. Both cap
// accepted steps, retry recoverable failures from the last known-good state
// while the autorestart budget lasts, and write run statistics into the
// system's run info once per call.
//
// [FanOut] runs many independent integrations on a fixed worker pool and
// returns results in input order.
package sim
