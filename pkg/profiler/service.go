package profiler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const defaultStatsInterval = time.Minute

const (
	byte = 1 << (10 * iota)
	kilobyte
	megabyte
)

// ServiceOpts holds configuration options for the stats service.
type ServiceOpts struct {
	// Datadir is the folder where stats files are written.
	Datadir       string
	StatsInterval time.Duration
	// Gatherer defaults to the Prometheus default gatherer.
	Gatherer prometheus.Gatherer
}

func (o ServiceOpts) validate() error {
	if len(o.Datadir) == 0 {
		return fmt.Errorf("missing profiler datadir")
	}
	if o.StatsInterval < 0 {
		return fmt.Errorf("stats interval must not be negative")
	}
	return nil
}

// StatsService periodically logs memory usage and dumps the gathered
// Prometheus metrics into a new file of the datadir when stopped.
type StatsService struct {
	opts   ServiceOpts
	stopFn context.CancelFunc
	done   chan struct{}

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewService returns a new StatsService instance.
func NewService(opts ServiceOpts) (*StatsService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.StatsInterval == 0 {
		opts.StatsInterval = defaultStatsInterval
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("profiler: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("profiler: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &StatsService{opts: opts, log: logFn, warn: warnFn}, nil
}

// Start starts collecting stats.
func (s *StatsService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopFn = cancel
	s.done = make(chan struct{})
	s.enableMemoryStatistics(ctx)
	s.log("start, stats dumped to %s", s.opts.Datadir)
}

// Stop stops collecting stats and waits for the metrics to be dumped.
func (s *StatsService) Stop() {
	if s.stopFn == nil {
		return
	}
	s.stopFn()
	<-s.done
	s.stopFn = nil
	s.log("stop")
}

// enableMemoryStatistics starts a goroutine that periodically logs memory
// usage of the go process.
func (s *StatsService) enableMemoryStatistics(ctx context.Context) {
	ticker := time.NewTicker(s.opts.StatsInterval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.printMemoryStatistics()
			case <-ctx.Done():
				if err := s.dumpMetrics(); err != nil {
					s.warn(err, "error while dumping Prometheus metrics")
				}
				return
			}
		}
	}()
}

func (s *StatsService) printMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.log(
		"heap allocated: %.3fMB, allocated objects count: %v, "+
			"freed objects count: %v, num of go routines: %v",
		toMegabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
		runtime.NumGoroutine(),
	)
}

// dumpMetrics writes the gathered metric families to a file named after
// the current time.
func (s *StatsService) dumpMetrics() error {
	file, err := os.OpenFile(
		filepath.Join(
			s.opts.Datadir,
			time.Now().Format(time.RFC3339Nano)),
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	metricFamily, err := s.opts.Gatherer.Gather()
	if err != nil {
		return err
	}
	for _, v := range metricFamily {
		if _, err := writer.WriteString(v.String() + "\n"); err != nil {
			return err
		}
	}

	return nil
}

func toMegabytes(bytes uint64) float64 {
	return float64(bytes) / megabyte
}
