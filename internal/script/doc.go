// Package script builds timelines from Lua scripts.
//
// Scripts run in a sandboxed gopher-lua state: only the base, table, string
// and math libraries are available, the loaders are removed and print goes
// to the logger. The builder registers one global per row kind:
//
//	move(100, 200)
//	path({{0, 0}, {50, 25}, {100, 50}})
//	wait(500)
//	click("left", 100, 200, {wait = 40, speed = 30})
//	double("left", 100, 200)
//	down("right")
//	up("right")
//	find(png_base64, {x = 100, y = 200, anchor = "LastFound", region = false})
//
// Button rows accept the options wait, speed, move, image, find, precision
// and timeout; find accepts x, y, patch_size, precision, timeout, anchor and
// region. Unknown options are errors.
//
// Offsets advance by Config.StepMS per row, plus the duration of wait rows.
package script
