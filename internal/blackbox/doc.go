// Package blackbox drives the simulator binary as an opaque subprocess.
//
// Each call writes the encoded command stream to its own temporary file,
// starts `<binary> <world> <mode>` with that file on stdin and the data
// directory as working directory, and waits for it to exit. Trace mode
// output is handed to package trace; video mode output is passed through.
//
// Failures surface as *dynamo.SimulationError (start failure, non-zero exit,
// timeout) and are distinct from parse failures (*dynamo.LineError).
package blackbox
