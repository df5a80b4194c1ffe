// Package pose owns landmark geometry for calibration captures.
//
// Responsibilities: the 33-point body schema, name to index reference
// points, the Normalize transform (centering, shoulder-line rotation,
// height scaling) and per-pose statistics of a normalized capture.
// Key types: Landmark, ReferencePoints, Result, Statistics.
//
// Dependency rule: pose is a leaf. It depends on gonum spatial/r3 only and
// never on the measurement pipeline, storage or transport packages.
// Normalize is pure: it never mutates its input and keeps no state.
package pose
