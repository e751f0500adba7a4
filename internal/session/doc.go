// Package session ties a timeline to the recorder, player and editor that
// work on it.
//
// A Session is in exactly one mode at a time: idle, recording or playing.
// The application drives it with two periodic ticks:
//
//	s.Poll()    // record tick: feeds live input to the recorder
//	s.PosTick() // position tick: publishes playback progress and results
//
// Commands such as StartRecording, StartPlayback, Apply and Load return the
// resulting status line. Observers subscribed on the session's Notifier are
// told about status, mode, timeline, selection and active row changes.
//
// Playback runs on a materialized snapshot, so the timeline may be saved
// while a run executes. Loading and editing require idle mode.
package session
