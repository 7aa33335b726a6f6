package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pierrec/lz4"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/screeps-adapter/internal/event"
)

// recordedTypes are the bus events written by 'watch --record'.
var recordedTypes = map[string]bool{
	event.TypeViewChanged:      true,
	event.TypeHashChanged:      true,
	event.TypeRoomChanged:      true,
	event.TypeSelectionChanged: true,
	event.TypeBridgeReady:      true,
}

// record is one line of a recording.
type record struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// recording writes bus events as LZ4-compressed JSON lines.
type recording struct {
	mu     sync.Mutex
	file   *os.File
	zw     *lz4.Writer
	enc    *json.Encoder
	lines  int
	err    error
	closed bool
}

func newRecording(path string) (*recording, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	zw := lz4.NewWriter(f)
	return &recording{file: f, zw: zw, enc: json.NewEncoder(zw)}, nil
}

// onEvent is a bus handler.
func (r *recording) onEvent(e event.Event) {
	if !recordedTypes[e.EventType()] {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	if err := r.enc.Encode(record{Type: e.EventType(), At: e.Timestamp(), Data: data}); err != nil {
		r.err = err
		return
	}
	r.lines++
}

// Lines returns the number of records written.
func (r *recording) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines
}

// Close flushes the compressed stream and closes the file. It returns the
// first write error, if any.
func (r *recording) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.closed = true
	if err := r.zw.Close(); err != nil && r.err == nil {
		r.err = err
	}
	if err := r.file.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// readRecording decodes every record of a recording.
func readRecording(rd io.Reader, fn func(record) error) error {
	sc := bufio.NewScanner(lz4.NewReader(rd))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return sc.Err()
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Print a recording made with 'watch --record'",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	var start time.Time
	return readRecording(f, func(rec record) error {
		if start.IsZero() {
			start = rec.At
		}
		_, err := fmt.Fprintf(out, "%10s  %-17s %s\n",
			rec.At.Sub(start).Round(time.Millisecond), rec.Type, rec.Data)
		return err
	})
}
