// Package scan turns per-frame pose landmarks into raw measurement points and
// buffers them for one scanning session.
//
// The capture loop owns frame acquisition and hands off complete batches
// through Session.AddBatch. Readers poll Session.RecentAverages for live
// feedback. Session.End snapshots the buffer and runs the refinement pipeline
// outside the session lock.
package scan
