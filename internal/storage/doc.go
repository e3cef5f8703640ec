// Package storage persists run collections as a single versioned JSON file.
//
// The file is an envelope carrying a format tag and schema version around
// the run records. Load validates the shape of every record instead of
// trusting the file, since run files outlive the code that wrote them.
package storage
