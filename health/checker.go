package health

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a dependency.
type Status int

const (
	// StatusHealthy indicates the dependency is reachable.
	StatusHealthy Status = iota
	// StatusUnhealthy indicates the dependency is not reachable.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single check.
type Result struct {
	Status   Status
	Message  string
	Duration time.Duration
}

// Checker is a named health check.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check performs the health check.
	Check(ctx context.Context) Result
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

// Name returns the checker name.
func (c CheckFunc) Name() string { return c.CheckName }

// Check runs the function and converts its error to a Result.
func (c CheckFunc) Check(ctx context.Context) Result {
	start := time.Now()
	if err := c.Fn(ctx); err != nil {
		return Result{
			Status:   StatusUnhealthy,
			Message:  err.Error(),
			Duration: time.Since(start),
		}
	}
	return Result{Status: StatusHealthy, Duration: time.Since(start)}
}

// Endpoint builds a checker that probes an HTTP endpoint with a GET and
// treats any response (including 4xx) as reachable; only transport
// failures mark the dependency unhealthy.
func Endpoint(name, url string, client *http.Client) Checker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return CheckFunc{
		CheckName: name,
		Fn: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			return nil
		},
	}
}

// Aggregator runs a set of checkers in parallel.
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

// NewAggregator creates an aggregator with the given per-run timeout.
// A non-positive timeout defaults to 5 seconds.
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{timeout: timeout}
}

// Register adds a checker.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	a.checkers = append(a.checkers, c)
	a.mu.Unlock()
}

// CheckAll runs every registered checker and returns results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make([]Checker, len(a.checkers))
	copy(checkers, a.checkers)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make(map[string]Result, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			r := c.Check(ctx)
			mu.Lock()
			results[c.Name()] = r
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

// OverallStatus reduces a result set to a single status.
func OverallStatus(results map[string]Result) Status {
	for _, r := range results {
		if r.Status != StatusHealthy {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}
