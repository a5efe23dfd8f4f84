package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/textmill/internal/config"
	"github.com/backmassage/textmill/internal/logging"
	"github.com/backmassage/textmill/internal/transform"
)

// ErrPoolInit is returned when no worker engine could be created. It is the
// only fatal condition a batch can raise; everything else is contained in
// per-unit outcomes.
var ErrPoolInit = errors.New("worker pool initialization failed")

// Pool is a fixed set of workers, each owning one engine instance for the
// pool's lifetime. A pool lives for one batch, mirroring the bounded-memory
// model: engines are initialized per batch, never per unit.
type Pool struct {
	invokers []*transform.Invoker
	policy   transform.RetryPolicy
	timeout  time.Duration
	staging  string
	log      *logging.Logger
	verbose  bool
}

// NewPool creates cfg.Workers engines via factory. Workers whose engine
// fails to initialize are dropped with a warning; if none survive, the pool
// cannot run and ErrPoolInit (wrapping the last factory error) is returned.
func NewPool(cfg *config.Config, log *logging.Logger, factory transform.EngineFactory, staging string) (*Pool, error) {
	p := &Pool{
		policy: transform.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
		},
		timeout: cfg.TransformTimeout,
		staging: staging,
		log:     log,
		verbose: cfg.Verbose,
	}

	var lastErr error
	for i := 0; i < cfg.Workers; i++ {
		eng, err := factory()
		if err != nil {
			lastErr = err
			log.Warn("Worker %d: engine initialization failed: %v", i+1, err)
			continue
		}
		p.invokers = append(p.invokers, transform.NewInvoker(eng))
	}
	if len(p.invokers) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrPoolInit, lastErr)
		}
		return nil, ErrPoolInit
	}
	return p, nil
}

// Size returns the number of usable workers.
func (p *Pool) Size() int { return len(p.invokers) }

// Close releases every worker's engine.
func (p *Pool) Close() {
	for _, iv := range p.invokers {
		_ = iv.Close()
	}
}

// RunBatch processes every unit of the batch to a terminal outcome, sending
// each Outcome to out as it completes. If ctx is cancelled, dispatch stops;
// units already handed to a worker still finish (or fail fast), units never
// dispatched produce no outcome. Returns when all workers have drained.
func (p *Pool) RunBatch(ctx context.Context, batch []WorkUnit, out chan<- Outcome) {
	units := make(chan WorkUnit)

	var g errgroup.Group
	for _, iv := range p.invokers {
		iv := iv
		g.Go(func() error {
			for unit := range units {
				out <- p.process(ctx, iv, unit)
			}
			return nil
		})
	}

dispatch:
	for _, unit := range batch {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case units <- unit:
		}
	}
	close(units)
	_ = g.Wait()
}

// process drives one unit through the retry state machine until it reaches
// a terminal outcome.
func (p *Pool) process(ctx context.Context, iv *transform.Invoker, unit WorkUnit) Outcome {
	rs := transform.NewRetryState(p.policy)
	base := filepath.Base(unit.Path)

	for {
		res, terr := p.attempt(ctx, iv, unit)
		if terr == nil {
			staged, err := p.stage(unit, res.Text)
			if err == nil {
				return Outcome{
					Unit:        unit,
					Result:      res,
					StagedPath:  staged,
					Attempts:    rs.Attempt + 1,
					ProcessedAt: time.Now(),
				}
			}
			terr = &transform.TransformError{
				Kind:    transform.KindResourceUnavailable,
				Message: fmt.Sprintf("stage output: %v", err),
				Err:     err,
			}
		}

		p.log.Debug(p.verbose, "Attempt %d for %s failed: %v", rs.Attempt+1, base, terr)

		delay, retry := rs.Advance(terr.Kind)
		if !retry {
			if terr.Kind.Transient() {
				p.log.Warn("Giving up on %s after %d attempts: %v", base, rs.Attempt, terr)
			} else {
				p.log.Warn("Permanent failure for %s: %v", base, terr)
			}
			return Outcome{Unit: unit, Err: terr, Attempts: rs.Attempt, ProcessedAt: time.Now()}
		}

		p.log.Retry("Retry %d for %s in %s (%s)", rs.Attempt, base,
			delay.Round(10*time.Millisecond), terr.Kind)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{Unit: unit, Err: terr, Attempts: rs.Attempt, ProcessedAt: time.Now()}
		case <-timer.C:
		}
	}
}

// attempt runs one invocation under the per-transform deadline.
func (p *Pool) attempt(ctx context.Context, iv *transform.Invoker, unit WorkUnit) (*transform.Result, *transform.TransformError) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return iv.Invoke(ctx, unit.Path)
}

// stage writes the transformed text to the staging directory; the
// aggregator later moves it to its category destination.
func (p *Pool) stage(unit WorkUnit, text string) (string, error) {
	path := filepath.Join(p.staging, fmt.Sprintf("unit-%06d.txt", unit.Index))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
