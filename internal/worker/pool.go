package worker

import (
	"sync"

	"github.com/bareeqalyusr/bnpl-backend/internal/metrics"
)

type task func()

// Pool is a fixed-size worker pool with a buffered queue. Sweep jobs are
// independent, so ordering between them does not matter.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task
}

func NewPool(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{jobs: make(chan task, 256)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
			}
		}()
	}
	return p
}

func (p *Pool) Submit(f task) {
	p.jobs <- f
	metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
}

// Stop closes the queue and waits for in-flight jobs to drain.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
