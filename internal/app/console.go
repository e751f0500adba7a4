package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/clickstorm/internal/editor"
	"github.com/dshills/clickstorm/internal/timeline"
)

// command is one console command.
type command struct {
	name  string
	usage string
	help  string
	run   func(app *Application, ctx context.Context, args []string) (string, error)
}

// commands lists the console commands in help order.
var commands []command

func init() {
	commands = []command{
		{"record", "", "start recording", cmdRecord},
		{"stop", "", "stop recording or playback", cmdStop},
		{"play", "", "play the timeline", cmdPlay},
		{"cancel", "", "cancel playback", cmdCancel},
		{"clear", "", "remove every row", cmdClear},
		{"list", "", "show the timeline", cmdList},
		{"status", "", "show the status line", cmdStatus},
		{"select", "<row|none>", "select a row and load it into the draft", cmdSelect},
		{"delete", "[row]", "delete a row, default the selected one", cmdDelete},
		{"draft", "", "show the row draft", cmdDraft},
		{"set", "<field> <value>", "change a draft field: x y button mode wait speed move find precision timeout", cmdSet},
		{"capture", "", "fill the draft from the cursor", cmdCapture},
		{"apply", "", "replace the selected row or append the draft", cmdApply},
		{"insert", "", "insert the draft below the selected row", cmdInsert},
		{"wait", "[ms]", "append a wait row", cmdWait},
		{"find", "[key=value...]", "append a find target row: size precision timeout region anchor image", cmdFind},
		{"save", "[path]", "save the timeline", cmdSave},
		{"load", "[path]", "load a timeline", cmdLoad},
		{"script", "<path>", "build the timeline from a Lua script", cmdScript},
		{"reload", "", "re-read the configuration file", cmdReload},
		{"metrics", "", "show loop metrics", cmdMetrics},
		{"help", "", "list commands", cmdHelp},
		{"quit", "", "exit", cmdQuit},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Execute runs one console line and returns its reply. Blank lines and
// comments starting with # do nothing.
func (app *Application) Execute(ctx context.Context, line string) (reply string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return "", nil
	}

	cmd, ok := lookup(strings.ToLower(fields[0]))
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
		app.metrics.RecordCommand(err)
		return err.Error(), err
	}

	defer func() {
		if r := recover(); r != nil {
			err = &RecoveredPanicError{Value: r, Stack: string(debug.Stack())}
			reply = fmt.Sprintf("%s failed: %v", cmd.name, r)
			app.logger.WithComponent("console").Error("%v", err)
		}
		app.metrics.RecordCommand(err)
	}()

	return cmd.run(app, ctx, fields[1:])
}

// console reads commands from in until EOF, Quit or ctx is done.
func (app *Application) console(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// The scanner cannot be interrupted, so it runs on its own goroutine.
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return NewComponentError("console", err)
			}
			return ErrQuit
		case line := <-lines:
			reply, _ := app.Execute(ctx, line)
			if reply != "" {
				fmt.Fprintln(out, reply)
			}
		}
	}
}

func usage(name string) error {
	cmd, _ := lookup(name)
	return fmt.Errorf("%w: %s %s", ErrUsage, cmd.name, cmd.usage)
}

func usageReply(name string) (string, error) {
	err := usage(name)
	return err.Error(), err
}

func parseRow(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid row %q", s)
	}
	return i, nil
}

// ==== Control ====

func cmdRecord(app *Application, _ context.Context, _ []string) (string, error) {
	return app.session.StartRecording(), nil
}

func cmdStop(app *Application, _ context.Context, _ []string) (string, error) {
	return app.session.StopRecording(), nil
}

func cmdPlay(app *Application, ctx context.Context, _ []string) (string, error) {
	return app.session.StartPlayback(ctx), nil
}

func cmdCancel(app *Application, _ context.Context, _ []string) (string, error) {
	return app.session.CancelPlayback(), nil
}

func cmdClear(app *Application, _ context.Context, _ []string) (string, error) {
	return app.session.Clear(), nil
}

func cmdStatus(app *Application, _ context.Context, _ []string) (string, error) {
	return fmt.Sprintf("[%s] %s", app.session.Mode(), app.session.Status()), nil
}

func cmdList(app *Application, _ context.Context, _ []string) (string, error) {
	return strings.Join(app.rowLines(), "\n"), nil
}

// rowLines formats the timeline, marking the selected row with > and the
// row being played with *.
func (app *Application) rowLines() []string {
	labels, details := app.session.Rows()
	if len(labels) == 0 {
		return []string{"(empty)"}
	}
	selected := app.session.Selected()
	active, playing := app.session.ActiveRow()

	lines := make([]string, len(labels))
	for i := range labels {
		mark := ' '
		switch {
		case playing && i == active:
			mark = '*'
		case i == selected:
			mark = '>'
		}
		lines[i] = fmt.Sprintf("%c%4d  %-24s %s", mark, i, labels[i], details[i])
	}
	return lines
}

// ==== Editing ====

func cmdSelect(app *Application, _ context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return usageReply("select")
	}
	if args[0] == "none" {
		return app.session.Select(editor.NoSelection)
	}
	i, err := parseRow(args[0])
	if err != nil {
		return err.Error(), err
	}
	return app.session.Select(i)
}

func cmdDelete(app *Application, _ context.Context, args []string) (string, error) {
	i := app.session.Selected()
	switch len(args) {
	case 0:
		if i == editor.NoSelection {
			return usageReply("delete")
		}
	case 1:
		var err error
		if i, err = parseRow(args[0]); err != nil {
			return err.Error(), err
		}
	default:
		return usageReply("delete")
	}
	return app.session.Delete(i)
}

func cmdDraft(app *Application, _ context.Context, _ []string) (string, error) {
	d := app.session.Draft()
	find := "off"
	if d.UseFindImage {
		find = "on"
	}
	return fmt.Sprintf("x=%s y=%s button=%s mode=%s wait=%d speed=%d move=%d find=%s precision=%d timeout=%d image=%dB",
		d.X, d.Y, d.Target, d.ActiveMode(), d.WaitMS, d.ClickSpeedMS, d.MoveMS,
		find, d.PrecisionPercent, d.TimeoutMS, len(d.Patch)), nil
}

func cmdSet(app *Application, _ context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return usageReply("set")
	}
	field, value := strings.ToLower(args[0]), args[1]
	d := app.session.Draft()

	var err error
	switch field {
	case "x":
		d.X = value
	case "y":
		d.Y = value
	case "button":
		var b timeline.Button
		if b, err = timeline.ParseButton(value); err == nil {
			d.SetTarget(b)
		}
	case "mode":
		var m timeline.EdgeMode
		if m, err = timeline.ParseEdgeMode(value); err == nil && !d.SetMode(d.Target, m) {
			err = errors.New("mode applies to the target button only")
		}
	case "wait", "speed", "move", "precision", "timeout":
		var n int
		if n, err = strconv.Atoi(value); err != nil {
			err = fmt.Errorf("invalid %s %q", field, value)
			break
		}
		err = setNumber(&d, field, n)
	case "find":
		switch strings.ToLower(value) {
		case "on", "true", "yes":
			d.UseFindImage = true
		case "off", "false", "no":
			d.UseFindImage = false
		default:
			err = fmt.Errorf("invalid find %q", value)
		}
	default:
		return usageReply("set")
	}
	if err != nil {
		return err.Error(), err
	}

	app.session.SetDraft(d)
	return fmt.Sprintf("Set %s", field), nil
}

func setNumber(d *editor.Draft, field string, n int) error {
	switch field {
	case "wait":
		d.SetWait(n)
	case "speed":
		if !d.SetClickSpeed(n) {
			return errors.New("click speed does not apply to down or up rows")
		}
	case "move":
		d.SetMoveSpeed(n)
	case "precision":
		d.PrecisionPercent = uint8(max(50, min(n, 100)))
	case "timeout":
		d.TimeoutMS = uint32(max(editor.MinTargetTimeoutMS, min(n, editor.MaxTargetTimeoutMS)))
	}
	return nil
}

func cmdCapture(app *Application, _ context.Context, _ []string) (string, error) {
	return app.session.CaptureCursor()
}

func cmdApply(app *Application, _ context.Context, _ []string) (string, error) {
	return app.session.Apply()
}

func cmdInsert(app *Application, _ context.Context, _ []string) (string, error) {
	return app.session.InsertBelow()
}

func cmdWait(app *Application, _ context.Context, args []string) (string, error) {
	w := editor.NewWaitDraft()
	switch len(args) {
	case 0:
	case 1:
		if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
			err = fmt.Errorf("invalid wait %q", args[0])
			return err.Error(), err
		}
		w.SetText(args[0])
	default:
		return usageReply("wait")
	}
	return app.session.InsertWait(w)
}

func cmdFind(app *Application, _ context.Context, args []string) (string, error) {
	f := editor.NewFindTargetDraft()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return usageReply("find")
		}
		switch strings.ToLower(key) {
		case "size":
			f.SetPatchSize(value)
		case "precision":
			f.SetPrecision(value)
		case "timeout":
			f.SetTimeout(value)
		case "region":
			if value == "off" {
				f.LimitRegion = false
			} else {
				f.SetRegionSize(value)
			}
		case "anchor":
			a, err := timeline.ParseAnchor(value)
			if err != nil {
				return err.Error(), err
			}
			f.Anchor = a
		case "image":
			f.ImagePath = value
		default:
			return usageReply("find")
		}
	}

	cursor, ok := app.backend.CursorPos()
	if f.ImagePath != "" {
		var current *timeline.Point
		if ok {
			current = &cursor
		}
		f.LoadFile(current)
	} else if ok {
		f.CaptureAt(app.backend, cursor)
	} else {
		f.Status = "Capture failed: cursor position unknown"
	}
	if len(f.Patch) == 0 {
		return f.Status, editor.ErrNoImage
	}
	return app.session.InsertFindTarget(f)
}

// ==== Files ====

func optionalPath(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	return ""
}

func cmdSave(app *Application, _ context.Context, args []string) (string, error) {
	return app.session.Save(optionalPath(args))
}

func cmdLoad(app *Application, _ context.Context, args []string) (string, error) {
	return app.session.Load(optionalPath(args))
}

func cmdScript(app *Application, ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return usageReply("script")
	}
	return app.session.LoadScript(ctx, optionalPath(args))
}

// ==== Application ====

func cmdReload(app *Application, _ context.Context, _ []string) (string, error) {
	if app.opts.ConfigPath == "" {
		err := NewOperationError("reload", "", errors.New("no configuration file"))
		return err.Error(), err
	}
	if err := app.Reload(); err != nil {
		return err.Error(), err
	}
	if app.session.HasPendingConfig() {
		return "Configuration reloaded; applies when idle", nil
	}
	return "Configuration reloaded", nil
}

func cmdMetrics(app *Application, _ context.Context, _ []string) (string, error) {
	s := app.metrics.Snapshot()
	return fmt.Sprintf("uptime=%s ticks=%d avg_tick=%s runs=%d commands=%d errors=%d reloads=%d",
		s.Uptime.Round(time.Second), s.TickCount, s.AvgTick(), s.RunCount,
		s.CommandCount, s.CommandErrors, s.ReloadCount), nil
}

func cmdHelp(_ *Application, _ context.Context, _ []string) (string, error) {
	var b strings.Builder
	for i, c := range commands {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-8s %-16s %s", c.name, c.usage, c.help)
	}
	return b.String(), nil
}

func cmdQuit(app *Application, _ context.Context, _ []string) (string, error) {
	app.Quit()
	return "Bye", nil
}

