// Package planner turns a compression request and a probe result into
// encoder parameters (Plan) or a size prediction (Estimate).
//
// Everything here is pure: identical inputs give identical outputs, which
// keeps an estimate and a later compress of the same file consistent.
//
//   - TargetSize: two-pass, bitrate budget from target size and duration
//   - Quality: single pass, CRF from the preset table
//   - Resolution: single pass, CRF plus an even-dimension scale filter
//
// Quality and Resolution estimates are heuristics. They multiply the source
// size by a per-preset ratio that has not been calibrated against measured
// encoder output.
package planner
