package profiler_test

import (
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/vault/pkg/profiler"
)

func TestStatsService(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		registry := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "test_events_total",
			Help: "Number of test events.",
		})
		registry.MustRegister(counter)
		counter.Inc()

		datadir := t.TempDir()
		svc, err := profiler.NewService(profiler.ServiceOpts{
			Datadir:  datadir,
			Gatherer: registry,
		})
		require.NoError(t, err)

		svc.Start()
		svc.Stop()
		svc.Stop()

		entries, err := os.ReadDir(datadir)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		content, err := os.ReadFile(datadir + "/" + entries[0].Name())
		require.NoError(t, err)
		require.True(t, strings.Contains(string(content), "test_events_total"))
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		svc, err := profiler.NewService(profiler.ServiceOpts{})
		require.Error(t, err)
		require.Nil(t, svc)
	})
}
