package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"infobooks/internal/catalog"
	"infobooks/internal/circulation"
	"infobooks/internal/domain"
	"infobooks/internal/membership"
)

const readerPassword = "chaos-reader"

// RegisterExperiments registers the predefined experiments against target.
func (e *Engine) RegisterExperiments(target Target, concurrency int) {
	e.Register(ConcurrentRentRace(target, concurrency, 3, 2*time.Second))
	e.Register(RentReturnChurn(target, concurrency/5+1, 20, 2*time.Second))
	e.Register(LatencyInjection(target, concurrency/5+1, 50*time.Millisecond, 2*time.Second))
}

type loanRef struct {
	nationalID string
	loanID     string
}

// fixture holds the readers and titles an experiment creates for itself.
type fixture struct {
	target  Target
	prefix  string
	readers []string
	books   []string
}

var fixtureSeq atomic.Int64

func newFixture(target Target) *fixture {
	return &fixture{target: target}
}

// reset starts a fresh set of fixtures so an experiment can run more than
// once against the same target.
func (f *fixture) reset() {
	f.prefix = fmt.Sprintf("%d%d", time.Now().UnixNano(), fixtureSeq.Add(1))
	f.readers, f.books = nil, nil
}

func (f *fixture) addReaders(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		nationalID := fmt.Sprintf("%s%04d", f.prefix, i)
		_, err := f.target.Register(ctx, membership.Registration{
			Name:       fmt.Sprintf("Chaos Reader %d", i),
			NationalID: nationalID,
			Password:   readerPassword,
		})
		if err != nil {
			return fmt.Errorf("register reader %d: %w", i, err)
		}
		f.readers = append(f.readers, nationalID)
	}
	return nil
}

func (f *fixture) addBook(ctx context.Context, copies int) error {
	book, err := f.target.AddBook(ctx, catalog.NewBook{
		Title:    fmt.Sprintf("Chaos Copy %s-%d", f.prefix, len(f.books)),
		Author:   "Chaos Engine",
		TotalQty: copies,
	})
	if err != nil {
		return fmt.Errorf("add book: %w", err)
	}
	f.books = append(f.books, book.ID.String())
	return nil
}

// shelf returns the total and available copies over every fixture book and
// whether each book is within its bounds.
func (f *fixture) shelf(ctx context.Context) (total, available int, inBounds bool, err error) {
	inBounds = true
	for _, id := range f.books {
		b, err := f.target.GetBook(ctx, id)
		if err != nil {
			return 0, 0, false, err
		}
		total += b.TotalQty
		available += b.AvailableQty
		if b.AvailableQty < 0 || b.AvailableQty > b.TotalQty {
			inBounds = false
		}
	}
	return total, available, inBounds, nil
}

func indicator(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func (f *fixture) inBoundsProbe() Probe {
	return Probe{
		Name: "availability_in_bounds",
		Read: func(ctx context.Context) (float64, error) {
			_, _, ok, err := f.shelf(ctx)
			return indicator(ok), err
		},
		Bound: Bound{Op: Equal, Value: 1},
	}
}

// ConcurrentRentRace fires concurrency simultaneous rents at one title with
// copies copies. Exactly min(concurrency, copies) must succeed and the
// availability count must never leave its bounds.
func ConcurrentRentRace(target Target, concurrency, copies int, duration time.Duration) Experiment {
	f := newFixture(target)
	var (
		successes atomic.Int64
		mu        sync.Mutex
		loans     []loanRef
	)
	expected := min(concurrency, copies)

	return Experiment{
		Name:       "concurrent-rent-race",
		Hypothesis: "Simultaneous rents of one title never lend more copies than exist",
		Setup: []Step{
			{
				Kind:   "create-fixtures",
				Target: "catalog",
				Run: func(ctx context.Context) error {
					f.reset()
					successes.Store(0)
					if err := f.addBook(ctx, copies); err != nil {
						return err
					}
					return f.addReaders(ctx, concurrency)
				},
			},
		},
		Probes: []Probe{
			f.inBoundsProbe(),
			{
				Name: "copies_accounted",
				Read: func(ctx context.Context) (float64, error) {
					_, available, _, err := f.shelf(ctx)
					return indicator(available+int(successes.Load()) == copies), err
				},
				Bound: Bound{Op: Equal, Value: 1},
			},
			{
				Name: "successful_rents",
				Read: func(context.Context) (float64, error) {
					return float64(successes.Load()), nil
				},
				Bound: Bound{Op: AtMost, Value: float64(copies)},
			},
		},
		Method: []Step{
			{
				Kind:   "concurrent-requests",
				Target: "circulation",
				Run: func(ctx context.Context) error {
					var wg sync.WaitGroup
					start := make(chan struct{})
					errs := make(chan error, len(f.readers))

					for _, nationalID := range f.readers {
						wg.Add(1)
						go func(nationalID string) {
							defer wg.Done()
							<-start
							receipt, err := target.Rent(ctx, nationalID, f.books[0])
							switch {
							case err == nil:
								successes.Add(1)
								mu.Lock()
								loans = append(loans, loanRef{nationalID, receipt.LoanID.String()})
								mu.Unlock()
							case errors.Is(err, domain.ErrNoCopiesAvailable):
							default:
								errs <- err
							}
						}(nationalID)
					}
					close(start)
					wg.Wait()
					close(errs)

					var all []error
					for err := range errs {
						all = append(all, err)
					}
					return errors.Join(all...)
				},
			},
		},
		Rollback: []Step{
			{
				Kind:   "return-loans",
				Target: "circulation",
				Run: func(ctx context.Context) error {
					mu.Lock()
					defer mu.Unlock()
					var all []error
					for _, l := range loans {
						if _, err := target.Return(ctx, l.nationalID, l.loanID); err != nil {
							all = append(all, err)
						}
					}
					loans = nil
					return errors.Join(all...)
				},
			},
		},
		Checks: []Check{
			{
				Probe:   "successful_rents",
				Want:    func(v float64) bool { return v == float64(expected) },
				Message: fmt.Sprintf("Exactly %d rents should succeed", expected),
			},
			{
				Probe:   "availability_in_bounds",
				Want:    func(v float64) bool { return v == 1 },
				Message: "Availability must stay within [0, total]",
			},
			{
				Probe:   "copies_accounted",
				Want:    func(v float64) bool { return v == 1 },
				Message: "Every copy must be either on the shelf or out on a loan",
			},
		},
		Duration: duration,
	}
}

// RentReturnChurn runs workers that repeatedly rent and return titles with
// few copies. Once the traffic stops, every copy must be back on the shelf.
func RentReturnChurn(target Target, workers, rounds int, duration time.Duration) Experiment {
	f := newFixture(target)
	var open atomic.Int64

	return Experiment{
		Name:       "rent-return-churn",
		Hypothesis: "Copies are conserved under mixed rent and return traffic",
		Setup: []Step{
			{
				Kind:   "create-fixtures",
				Target: "catalog",
				Run: func(ctx context.Context) error {
					f.reset()
					open.Store(0)
					for _, copies := range []int{1, 2, 3} {
						if err := f.addBook(ctx, copies); err != nil {
							return err
						}
					}
					return f.addReaders(ctx, workers)
				},
			},
		},
		Probes: []Probe{
			f.inBoundsProbe(),
			{
				Name: "conservation_gap",
				Read: func(ctx context.Context) (float64, error) {
					total, available, _, err := f.shelf(ctx)
					return float64(total - available - int(open.Load())), err
				},
				Bound: Bound{Op: Equal, Value: 0},
			},
			{
				Name: "open_loans",
				Read: func(context.Context) (float64, error) {
					return float64(open.Load()), nil
				},
				Bound: Bound{Op: AtLeast, Value: 0},
			},
		},
		Method: []Step{
			{
				Kind:   "mixed-traffic",
				Target: "circulation",
				Run: func(ctx context.Context) error {
					var wg sync.WaitGroup
					errs := make(chan error, workers*rounds)

					for w, nationalID := range f.readers {
						wg.Add(1)
						go func(w int, nationalID string) {
							defer wg.Done()
							for r := 0; r < rounds; r++ {
								bookID := f.books[(w+r)%len(f.books)]
								receipt, err := target.Rent(ctx, nationalID, bookID)
								if errors.Is(err, domain.ErrNoCopiesAvailable) {
									continue
								}
								if err != nil {
									errs <- err
									continue
								}
								open.Add(1)
								if _, err := target.Return(ctx, nationalID, receipt.LoanID.String()); err != nil {
									errs <- err
									continue
								}
								open.Add(-1)
							}
						}(w, nationalID)
					}
					wg.Wait()
					close(errs)

					var all []error
					for err := range errs {
						all = append(all, err)
					}
					return errors.Join(all...)
				},
			},
		},
		Checks: []Check{
			{
				Probe:   "conservation_gap",
				Want:    func(v float64) bool { return v == 0 },
				Message: "Every copy must be either on the shelf or out on a loan",
			},
			{
				Probe:   "open_loans",
				Want:    func(v float64) bool { return v == 0 },
				Message: "Every successful rent should have been returned",
			},
			{
				Probe:   "availability_in_bounds",
				Want:    func(v float64) bool { return v == 1 },
				Message: "Availability must stay within [0, total]",
			},
		},
		Duration: duration,
	}
}

// LatencyInjection reruns the churn with every call to the target delayed,
// so that rents and returns overlap for longer.
func LatencyInjection(target Target, workers int, latency, duration time.Duration) Experiment {
	slow := &latencyTarget{Target: target, delay: latency}
	exp := RentReturnChurn(slow, workers, 5, duration)
	exp.Name = "latency-injection"
	exp.Hypothesis = "Copies are conserved when every request is slow"
	exp.Method = append([]Step{{
		Kind:   "inject-latency",
		Target: "transport",
		Run: func(context.Context) error {
			slow.enabled.Store(true)
			return nil
		},
	}}, exp.Method...)
	exp.Rollback = append(exp.Rollback, Step{
		Kind:   "remove-latency",
		Target: "transport",
		Run: func(context.Context) error {
			slow.enabled.Store(false)
			return nil
		},
	})
	return exp
}

// latencyTarget delays rent and return calls while enabled. Reads stay fast
// so sampling is not skewed.
type latencyTarget struct {
	Target
	delay   time.Duration
	enabled atomic.Bool
}

func (t *latencyTarget) wait(ctx context.Context) error {
	if !t.enabled.Load() {
		return nil
	}
	select {
	case <-time.After(t.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *latencyTarget) Rent(ctx context.Context, nationalID, bookID string) (*circulation.LoanReceipt, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Target.Rent(ctx, nationalID, bookID)
}

func (t *latencyTarget) Return(ctx context.Context, nationalID, loanID string) (*circulation.ReturnConfirmation, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Target.Return(ctx, nationalID, loanID)
}
