package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
	"github.com/Iron-Ham/screeps-adapter/internal/config"
	"github.com/Iron-Ham/screeps-adapter/internal/event"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
	"github.com/Iron-Ham/screeps-adapter/internal/util"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print client changes as they happen",
	Long: `Attach to the client and print every view, hash, room and selection change
until interrupted. On exit a summary of delivered changes, visited rooms and
delivery latency is printed.

The log level is reloaded when the config file changes.

Examples:
  # Watch a browser started with --remote-debugging-port=9222
  screeps-adapter watch

  # Only rooms and selections, for one minute
  screeps-adapter watch --signals room,selection --duration 1m

  # Replay a scenario
  screeps-adapter watch -d js`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchDuration time.Duration
	watchSignals  []string
	watchRecord   string
)

var allSignals = []string{bridge.SignalView, bridge.SignalHash, bridge.SignalRoom, bridge.SignalSelection}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "stop after this long (0 = until interrupted)")
	watchCmd.Flags().StringSliceVar(&watchSignals, "signals", allSignals, "signals to print")
	watchCmd.Flags().StringVar(&watchRecord, "record", "", "also write all changes to this file (see 'screeps-adapter replay')")
}

func runWatch(cmd *cobra.Command, args []string) error {
	signals := mapset.NewSet(watchSignals...)
	if unknown := signals.Difference(mapset.NewSet(allSignals...)); unknown.Cardinality() > 0 {
		names := unknown.ToSlice()
		slices.Sort(names)
		return fmt.Errorf("unknown signals: %s (valid: %s)", strings.Join(names, ", "), strings.Join(allSignals, ", "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if watchDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchDuration)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	w := newWatcher(out, newPalette(isTerminal(out)))

	var rec *recording
	if watchRecord != "" {
		var err error
		if rec, err = newRecording(watchRecord); err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "recording incomplete: %v\n", err)
			}
		}()
	}

	sess, err := openSession(ctx, bridge.WithDeliveryObserver(w.observe))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	sess.bus.Subscribe(w.onEvent)
	if rec != nil {
		sess.bus.Subscribe(rec.onEvent)
		w.rec = rec
	}
	watchConfigFile(sess)

	b := sess.bridge
	if signals.Contains(bridge.SignalView) {
		b.OnViewChange(w.onView)
	}
	if signals.Contains(bridge.SignalHash) {
		b.OnHashChange(w.onHash)
	}
	if signals.Contains(bridge.SignalRoom) {
		b.OnRoomChange(w.onRoom)
	}
	if signals.Contains(bridge.SignalSelection) {
		b.OnSelectionChange(w.onSelection)
	}

	w.println(w.p.muted.Render(fmt.Sprintf("waiting for the client (%s driver)...", sess.cfg.Scope.Driver)))
	if view, err := b.WaitView(ctx); err != nil {
		if ctx.Err() == nil {
			return err
		}
	} else {
		w.println(w.p.muted.Render("client ready on " + view))
		<-ctx.Done()
	}

	w.summary()
	return nil
}

// watchConfigFile reloads the log level when the config file changes.
func watchConfigFile(sess *session) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Load()
		if err != nil {
			sess.logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		sess.logger.SetLevel(cfg.Logging.Level)
		sess.logger.Info("config reloaded", "file", e.Name, "level", sess.logger.Level())
	})
	viper.WatchConfig()
}

// watcher prints deliveries and collects the exit summary.
type watcher struct {
	out     io.Writer
	p       palette
	width   int
	started time.Time

	mu       sync.Mutex
	counts   map[string]int
	latency  map[string]*tachymeter.Tachymeter
	rooms    mapset.Set[string]
	failures int
	rec      *recording
}

func newWatcher(out io.Writer, p palette) *watcher {
	return &watcher{
		out:     out,
		p:       p,
		width:   terminalWidth(out),
		started: time.Now(),
		counts:  make(map[string]int),
		latency: make(map[string]*tachymeter.Tachymeter),
		rooms:   mapset.NewSet[string](),
	}
}

func (w *watcher) println(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, line)
}

func (w *watcher) line(kind string, style func(...string) string, text string) {
	w.println(util.FitWidth(w.p.label.Render(fmt.Sprintf("%-9s", kind))+" "+style(text), w.width))
}

func (w *watcher) onView(v bridge.ViewChange) error {
	if v.IsLegacy() {
		w.line("view", w.p.legacy.Render, v.Legacy+" (legacy)")
		return nil
	}
	w.line("view", w.p.view.Render, fmt.Sprintf("%s -> %s", orNone(v.Previous), v.Name))
	return nil
}

func (w *watcher) onHash(h bridge.HashChange) error {
	w.line("hash", w.p.hash.Render, h.Hash)
	return nil
}

func (w *watcher) onRoom(room string) error {
	if room == "" {
		w.line("room", w.p.room.Render, "(left)")
		return nil
	}
	w.rooms.Add(room)
	w.line("room", w.p.room.Render, room)
	return nil
}

func (w *watcher) onSelection(s bridge.Selection) error {
	w.line("selected", w.p.selection.Render, describeObject(s.Object))
	return nil
}

func (w *watcher) onEvent(e event.Event) {
	switch e := e.(type) {
	case event.SubscriberFailedEvent:
		w.fail(fmt.Sprintf("%s subscriber %d failed: %v", e.Signal, e.Index, e.Err))
	case event.DerivationFailedEvent:
		w.fail(fmt.Sprintf("%s derivation failed: %v", e.What, e.Err))
	}
}

func (w *watcher) fail(msg string) {
	w.mu.Lock()
	w.failures++
	w.mu.Unlock()
	w.line("warning", w.p.warning.Render, msg)
}

// observe is the bridge's delivery observer.
func (w *watcher) observe(sig string, elapsed time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[sig]++
	t, ok := w.latency[sig]
	if !ok {
		t = tachymeter.New(&tachymeter.Config{Size: 1024})
		w.latency[sig] = t
	}
	t.AddTime(elapsed)
}

func (w *watcher) summary() {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintf(w.out, "\nstarted %s, %s changes delivered",
		humanize.Time(w.started), humanize.Comma(int64(w.total())))
	if w.failures > 0 {
		fmt.Fprint(w.out, ", "+w.p.err.Render(fmt.Sprintf("%d failures", w.failures)))
	}
	fmt.Fprintln(w.out)

	if rooms := w.rooms.ToSlice(); len(rooms) > 0 {
		slices.Sort(rooms)
		fmt.Fprintf(w.out, "rooms visited: %s\n", strings.Join(rooms, ", "))
	}
	if w.rec != nil {
		fmt.Fprintf(w.out, "recorded %s events\n", humanize.Comma(int64(w.rec.Lines())))
	}
	if rss, ok := residentMemory(); ok {
		fmt.Fprintf(w.out, "adapter memory: %s\n", humanize.Bytes(rss))
	}
	if w.total() == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w.out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"signal", "changes", "avg", "p99", "max"})
	for _, sig := range allSignals {
		t, ok := w.latency[sig]
		if !ok {
			continue
		}
		calc := t.Calc()
		tbl.AppendRow(table.Row{
			sig,
			humanize.Comma(int64(w.counts[sig])),
			calc.Time.Avg.Round(time.Microsecond),
			calc.Time.P99.Round(time.Microsecond),
			calc.Time.Max.Round(time.Microsecond),
		})
	}
	tbl.Render()
}

func (w *watcher) total() int {
	n := 0
	for _, c := range w.counts {
		n += c
	}
	return n
}

// residentMemory returns the resident set size of this process.
func residentMemory() (uint64, bool) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, false
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, false
	}
	return mem.RSS, true
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// maxNameLen bounds object names in watch output.
const maxNameLen = 32

// describeObject renders a selected object for humans.
func describeObject(obj *scope.Object) string {
	if obj == nil {
		return "(none)"
	}
	var sb strings.Builder
	sb.WriteString(obj.Type)
	if obj.Name != "" {
		sb.WriteString(" " + util.Ellipsize(obj.Name, maxNameLen))
	}
	if obj.ID != "" {
		sb.WriteString(" (" + obj.ID + ")")
	}
	fmt.Fprintf(&sb, " at %d,%d", obj.X, obj.Y)
	return strings.TrimSpace(sb.String())
}
