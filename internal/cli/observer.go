package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/claude/repquest/internal/live"
	"github.com/claude/repquest/internal/progress"
	"github.com/claude/repquest/internal/session"
)

// terminalObserver prints session activity as plain lines. Peer events arrive
// on the live client's goroutine, so writes are serialized.
type terminalObserver struct {
	mu   sync.Mutex
	out  io.Writer
	last map[string]int
}

func newTerminalObserver(out io.Writer) *terminalObserver {
	return &terminalObserver{out: out, last: make(map[string]int)}
}

func (o *terminalObserver) StateChanged(s session.State) {
	o.printf("[%s]\n", s)
}

// Progress prints only exercises whose count changed since the last table.
func (o *terminalObserver) Progress(table []progress.Exercise) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ex := range table {
		name := string(ex.Name)
		if prev, ok := o.last[name]; ok && prev == ex.Current {
			continue
		}
		o.last[name] = ex.Current
		mark := " "
		if ex.Done() {
			mark = "✓"
		}
		fmt.Fprintf(o.out, "%s %-12s %d/%d %s\n", mark, name, ex.Current, ex.Target, unitLabel(ex.Unit))
	}
}

func (o *terminalObserver) Notice(n session.Notice) {
	switch n.Kind {
	case session.NoticeRetry:
		o.printf("retrying: %s\n", n.Message)
	case session.NoticeError:
		o.printf("error: %s\n", n.Message)
	default:
		o.printf("%s\n", n.Message)
	}
}

// Peer reports another user's progress from the live relay.
func (o *terminalObserver) Peer(ev live.Event) {
	who := ev.UserName
	if who == "" {
		who = ev.UserID
	}
	o.printf("  %s: %s %d\n", who, ev.Exercise, ev.Progress)
}

func (o *terminalObserver) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, format, args...)
}

func unitLabel(u progress.Unit) string {
	if u == progress.UnitSeconds {
		return "s"
	}
	return "reps"
}
