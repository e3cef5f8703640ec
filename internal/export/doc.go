// Package export turns stored runs into artifacts for inspection: SVG paths
// spliced into a level template, and per-evaluation .test/.trace file pairs.
package export
