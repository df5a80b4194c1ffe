// Package viz renders normalized poses as PNG plots and measurement series
// as interactive HTML charts.
package viz
