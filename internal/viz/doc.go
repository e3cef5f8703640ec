// Package viz renders falsification results in the terminal.
//
//   - [TrajectoryPlot]: x position over time as an asciigraph line chart
//   - [CostHistory]: best-so-far cost per evaluation
//   - [LevelMap]: trajectories drawn in level coordinates on a Braille [Canvas]
//   - [Summary]: a styled panel describing one evaluation
//
// Styles are plain lipgloss values shared with the live view in package tui.
package viz
