// Package optim holds the search strategies that propose joystick signals.
//
// Optimizers work on a flat decision vector of control point values; a
// [Sampler] turns that vector into a per-frame [dynamo.Sample].
package optim
