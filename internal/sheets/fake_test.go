package sheets

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/leadflow/pkg/google"
)

// fakeValues is an in-memory values transport keyed by range.
type fakeValues struct {
	mu      sync.Mutex
	ranges  map[string][][]string
	getErrs []error
	gets    []string
	batches [][]google.CellValue
}

func newFakeValues(ranges map[string][][]string) *fakeValues {
	return &fakeValues{ranges: ranges}
}

func (f *fakeValues) Get(_ context.Context, _ string, rng string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, rng)
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.ranges[rng], nil
}

func (f *fakeValues) BatchUpdate(_ context.Context, _ string, cells []google.CellValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, cells)
	return nil
}

// recordingSleep captures retry delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func testClient(values google.SheetsClient, rec *recordingSleep, opts ...Option) *Client {
	cfg := DefaultRetryConfig()
	cfg.Sleep = rec.sleep
	all := append([]Option{WithRetry(cfg), WithRateLimit(0, 0)}, opts...)
	return New(values, all...)
}

