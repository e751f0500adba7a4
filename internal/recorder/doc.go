// Package recorder classifies polled pointer samples into timeline entries.
//
// Each button is tracked independently. A press and release that stay
// within the movement deadzone and the hold limit become a click candidate;
// a second candidate inside the click window promotes it to a double click,
// otherwise it is flushed as a single click when the window closes or when
// recording stops. Presses that are held too long or drag too far are
// recorded as separate down and up rows.
//
// In path mode the recorder skips classification: presses and releases are
// emitted immediately and pointer motion is sampled into Move rows.
//
// Offsets come from a synthetic clock that advances by Config.WaitMS per
// emitting event, so recordings are reproducible regardless of polling
// jitter. Entries are always non-decreasing in offset.
//
//	rec := recorder.New(recorder.DefaultConfig(), nil, desktop, logger)
//	rec.Start(nil)
//	for range ticker.C {
//		entries = rec.Tick(recorder.ReadSample(desktop, desktop), entries)
//	}
//	entries = rec.Stop(entries)
package recorder
