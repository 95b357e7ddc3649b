package extract

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/robert-malhotra/turbslice/internal/logging"
	"github.com/robert-malhotra/turbslice/store"
)

// Event describes one progress notice.
type Event struct {
	Index    int // position in the time key list
	Total    int // length of the time key list
	Variable string
	TimeKey  string
	Shape    []uint64 // shape of the dataset being read
}

// Progress receives progress notices. ExtractMany may call it from several
// goroutines at once.
type Progress func(Event)

// Reports tells whether the slice at index of a list of total time keys gets
// a progress notice: the first, the last and every hundredth.
func Reports(index, total int) bool {
	return index == 0 || index == total-1 || index%100 == 0
}

// Option configures an extraction.
type Option func(*options)

type options struct {
	progress Progress
	out      io.Writer
	log      *slog.Logger
	workers  int
}

func defaultOptions() *options {
	return &options{
		out: os.Stdout,
		log: logging.Component("extract"),
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.progress == nil {
		o.progress = Printer(o.out)
	}
	return o
}

// WithProgress replaces the default progress printer.
func WithProgress(p Progress) Option {
	return func(o *options) {
		o.progress = p
	}
}

// WithOutput sets where the default progress printer writes. Pass
// io.Discard to silence it.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithLogger sets the structured logger. Notices are also logged at debug
// level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithWorkers bounds the number of requests ExtractMany runs at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Printer returns a Progress that writes human readable notices to w:
//
//	Dataspace (10, 10, 10)
//	Reading file 0 velocity/0
//
// The Dataspace line precedes the first notice. Writes are serialized.
func Printer(w io.Writer) Progress {
	var mu sync.Mutex
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Index == 0 {
			fmt.Fprintf(w, "Dataspace %s\n", store.FormatShape(ev.Shape))
		}
		fmt.Fprintf(w, "Reading file %d %s/%s\n", ev.Index, ev.Variable, ev.TimeKey)
	}
}
