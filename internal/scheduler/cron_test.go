package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

func TestCronStartRunsImmediately(t *testing.T) {
	t.Parallel()

	env := newEnv(t, Config{}, []monitor.Monitor{activeMonitor("m1", monitor.SourceEbay)},
		map[monitor.Source]monitor.Extractor{
			monitor.SourceEbay: &fakeExtractor{candidates: []monitor.Candidate{
				{ListingID: "ebay-1", Title: "EX35 headlight", Price: 250, URL: "https://e/1"},
			}},
		})

	c := NewCron(env.runner, "@every 1h", zap.NewNop())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool {
		sum, ok := env.runner.LastSummary()
		return ok && sum.Scanned == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCronStartRejectsBadSpec(t *testing.T) {
	t.Parallel()

	env := newEnv(t, Config{}, nil, nil)
	c := NewCron(env.runner, "not a cron spec", zap.NewNop())
	require.Error(t, c.Start(context.Background()))
}
