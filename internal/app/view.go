package app

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/clickstorm/internal/platform/term"
	"github.com/dshills/clickstorm/internal/session"
)

// panelRows is the number of timeline rows shown on a panel backend.
const panelRows = 8

// panel is implemented by backends that can show the session state.
type panel interface {
	DrawPanel(lines []string)
}

// keySource is implemented by backends that report key presses.
type keySource interface {
	OnKey(fn term.KeyHandler)
}

// keyBindings maps hotkeys to console commands.
var keyBindings = map[rune]string{
	'r': "record",
	's': "stop",
	'p': "play",
	'c': "cancel",
	'x': "clear",
	'w': "save",
	'l': "load",
	'g': "capture",
	'a': "apply",
	'i': "insert",
	'd': "delete",
	'q': "quit",
}

// bindKeys routes backend key presses to console commands.
func (app *Application) bindKeys() {
	ks, ok := app.backend.(keySource)
	if !ok {
		return
	}
	ks.OnKey(func(key tcell.Key, r rune) {
		app.handleKey(key, r)
	})
}

func (app *Application) handleKey(key tcell.Key, r rune) {
	var line string
	switch key {
	case tcell.KeyEscape:
		line = "stop"
	case tcell.KeyCtrlC:
		line = "quit"
	case tcell.KeyUp, tcell.KeyDown:
		line = app.moveSelection(key == tcell.KeyDown)
	case tcell.KeyRune:
		line = keyBindings[r]
	}
	if line == "" {
		return
	}
	// Key commands report through the status line.
	_, _ = app.Execute(context.Background(), line)
}

// moveSelection returns the select command one row up or down.
func (app *Application) moveSelection(down bool) string {
	n := app.session.Len()
	if n == 0 {
		return ""
	}
	i := app.session.Selected()
	switch {
	case i < 0 && down:
		i = 0
	case i < 0:
		i = n - 1
	case down:
		i = min(i+1, n-1)
	default:
		i = max(i-1, 0)
	}
	return fmt.Sprintf("select %d", i)
}

// redraw shows the status and the rows around the scroll position.
func (app *Application) redraw() {
	p, ok := app.backend.(panel)
	if !ok {
		return
	}
	p.DrawPanel(app.panelLines())
}

func (app *Application) panelLines() []string {
	rows := app.rowLines()
	start := 0
	if top, ok := app.session.ScrollRow(); ok {
		start = top
	} else if sel := app.session.Selected(); sel >= panelRows {
		start = sel - panelRows + 1
	}
	start = max(0, min(start, len(rows)-panelRows))
	end := min(len(rows), start+panelRows)

	lines := make([]string, 0, panelRows+1)
	lines = append(lines, rows[start:end]...)
	lines = append(lines, app.statusLine())
	return lines
}

func (app *Application) statusLine() string {
	mode := app.session.Mode()
	line := fmt.Sprintf("[%s] %d rows  %s", mode, app.session.Len(), app.session.Status())
	if mode == session.ModeIdle {
		line += "  (r)ecord (p)lay (w)save (l)oad (q)uit"
	}
	return line
}
