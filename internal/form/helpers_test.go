package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// queueLoop collects dispatched callbacks until the test drains them, standing
// in for a session event loop.
type queueLoop struct {
	mu  sync.Mutex
	fns []func()
}

func (l *queueLoop) Dispatch(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *queueLoop) drain() {
	for {
		l.mu.Lock()
		fns := l.fns
		l.fns = nil
		l.mu.Unlock()
		if len(fns) == 0 {
			return
		}
		for _, fn := range fns {
			fn()
		}
	}
}

// syncRunner runs tasks immediately on the caller's goroutine.
type syncRunner struct{}

func (syncRunner) Submit(task func(ctx context.Context)) error {
	task(context.Background())
	return nil
}

// heldRunner keeps tasks until the test releases them one by one.
type heldRunner struct {
	tasks []func(ctx context.Context)
}

func (r *heldRunner) Submit(task func(ctx context.Context)) error {
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *heldRunner) run(i int) {
	r.tasks[i](context.Background())
}

type stubLookup struct {
	seatsFn func(ctx context.Context, courseID string) ([]models.SeatOffering, error)
}

func (s stubLookup) SeatOfferings(ctx context.Context, courseID string) ([]models.SeatOffering, error) {
	return s.seatsFn(ctx, courseID)
}

func fixedSeats(byCourse map[string][]models.SeatOffering) stubLookup {
	return stubLookup{seatsFn: func(_ context.Context, courseID string) ([]models.SeatOffering, error) {
		seats, ok := byCourse[courseID]
		if !ok {
			return nil, errors.New("course not found")
		}
		return seats, nil
	}}
}

type stubRefs struct {
	catalogs  map[string]models.RefItem
	customers map[string]models.RefItem
}

func (s stubRefs) Catalog(id string) (models.RefItem, bool) {
	item, ok := s.catalogs[id]
	return item, ok
}

func (s stubRefs) EnterpriseCustomer(id string) (models.RefItem, bool) {
	item, ok := s.customers[id]
	return item, ok
}

type stubPersister struct {
	createFn func(ctx context.Context, rec models.Attributes) (int64, error)
	updateFn func(ctx context.Context, id int64, rec models.Attributes) error
}

func (s *stubPersister) Create(ctx context.Context, rec models.Attributes) (int64, error) {
	return s.createFn(ctx, rec)
}

func (s *stubPersister) Update(ctx context.Context, id int64, rec models.Attributes) error {
	return s.updateFn(ctx, id, rec)
}

type outcomes []string

func (o *outcomes) LookupResolved(outcome string) { *o = append(*o, outcome) }

var verified = models.SeatOffering{DisplayName: "Verified", Price: 50, StockRecordIDs: []int{1}}

func newCreate(t *testing.T, opts Options) *Controller {
	t.Helper()
	c, err := NewCreate(opts)
	require.NoError(t, err)
	return c
}

func newEdit(t *testing.T, rec models.Attributes, opts Options) *Controller {
	t.Helper()
	c, err := NewEdit(rec, opts)
	require.NoError(t, err)
	return c
}

func mustSet(t *testing.T, c *Controller, name string, value any) {
	t.Helper()
	require.NoError(t, c.Set(name, value), "set %s", name)
}

func number(t *testing.T, a Attributes, name string) float64 {
	t.Helper()
	v, ok := a.Number(name)
	require.True(t, ok, "%s is not set", name)
	return v
}
