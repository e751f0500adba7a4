// Package playback replays timelines against a platform pointer.
//
// A Run is a materialized deep copy of the timeline plus a Control shared
// with its owner. The Engine walks the run in stored order: for each row it
// publishes the row index, checks the cancel flag, applies the row's
// pre-wait and then dispatches on the action. Moves are interpolated
// linearly in short steps; button rows optionally re-locate their target by
// image search first.
//
// Cancellation is cooperative. Every sleep is sliced so the flag is
// observed within one slice, and a cancelled run issues no primitive after
// the flag was seen. A cancelled run reports StateCancelled, not a failure.
//
//	player := playback.NewPlayer(playback.NewEngine(backend, nil, logger))
//	run, done, err := player.Start(ctx, entries)
//	...
//	res := <-done
//	fmt.Println(res.Status())
package playback
