// Package measure owns the measurement refinement pipeline.
//
// Responsibilities: confidence filtering, per-type z-score outlier
// rejection, confidence-weighted temporal smoothing, depth and calibration
// correction, confidence-weighted profile aggregation, the composite quality
// score and range validation.
// Key types: MeasurementPoint, BodyProfile, ProcessingReport, Pipeline.
//
// Every stage is a pure transform that returns a new slice and never mutates
// its input. The Pipeline holds no per-run state; its calibration table is
// swapped atomically and read once per Process call.
package measure
