// Package dynamo defines the data model shared by the falsification harness.
//
// The types follow one evaluation from input to stored result:
//
//   - [Sample]: optimizer-proposed signal values per time index
//   - [Command], [CommandSequence]: the discrete stream fed to the simulator
//   - [State], [Trajectory]: what the simulator reported back
//   - [Evaluation], [Run], [RunCollection]: scored outcomes grouped by trial
//
// # Errors
//
// Every fatal condition has a sentinel ([ErrSimulationFailure],
// [ErrMalformedTrajectoryLine], [ErrNotFound], [ErrInvalidFormat],
// [ErrEmptyCollection], [ErrTemplateNotFound], [ErrWriteFailure], ...).
// Typed errors such as [SimulationError] and [LineError] carry context and
// unwrap to those sentinels, so callers match with errors.Is.
//
// # Trajectory length
//
// A simulator that dies or wins stops printing early. A [Trajectory] with
// fewer states than times is a normal outcome; use [Trajectory.Aligned]
// rather than indexing both slices with the same bound.
package dynamo
