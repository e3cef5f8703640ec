// Package control turns continuous joystick samples into the discrete
// command stream the simulator reads on stdin.
//
// The encoding splits the circle into four quadrants:
//
//	[0, 90)    -> "0,0"
//	[90, 180)  -> "0,1"
//	[180, 270) -> "1,0"
//	[270, 360) -> "1,1"
//
// Angles outside [0, 360) are wrapped modulo 360 before bucketing, so the
// encoding is total over the reals.
package control
