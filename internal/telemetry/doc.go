// Package telemetry polls the controller's sensors and keeps the data the
// dashboard charts: the latest formatted reading per sensor and a 35-point
// rolling series for each.
//
// A poll is split in three so the network call can run off the UI loop:
//
//	seq := poller.Begin()             // UI loop
//	res := poller.Fetch(ctx, seq)     // any goroutine
//	accepted := poller.Apply(res)     // UI loop
//
// Apply ignores results older than the newest one already applied.
package telemetry
