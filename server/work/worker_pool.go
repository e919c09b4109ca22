package work

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/echocheck/echocheck/server/models"
	"github.com/pkg/errors"
)

type workerPool struct {
	handlers    map[string]Handler
	workers     []*worker
	concurrency int
	started     bool
}

func newWorkerPool(concurrency int) *workerPool {
	wp := workerPool{handlers: make(map[string]Handler), concurrency: concurrency}

	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker([]int64{0, 10, 100, 120}))
	}

	return &wp
}

// registerHandler binds a name to a job handler for all workers in pool.
func (wp *workerPool) registerHandler(name string, handler Handler) error {
	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}
	wp.handlers[name] = handler

	for _, worker := range wp.workers {
		err := worker.registerHandler(name, handler)
		if err != nil && !errors.Is(err, ErrDuplicateHandler) {
			return err
		}
	}

	return nil
}

// enqueue adds a job to the queue by creating a db record from 'JobParams'.
func (wp *workerPool) enqueue(job JobParams) error {
	argsAsJSON, err := marshalJobArgs(job)
	if err != nil {
		return err
	}

	if job.Unique {
		return models.CreateUniqueJobByName(job.Name, job.Handler, argsAsJSON)
	}

	return models.CreateJob(job.Name, job.Handler, argsAsJSON, nil)
}

// enqueueIn schedules a job to join the queue after the given delay.
func (wp *workerPool) enqueueIn(delayInSeconds int64, job JobParams) error {
	argsAsJSON, err := marshalJobArgs(job)
	if err != nil {
		return err
	}

	scheduledFor := time.Now().Add(time.Duration(delayInSeconds) * time.Second)
	return models.CreateJob(job.Name, job.Handler, argsAsJSON, &scheduledFor)
}

// start starts all workers in pool i.e the workers can start processing jobs.
func (wp *workerPool) start() {
	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

// stop stops all workers in pool i.e jobs will stop being processed.
func (wp *workerPool) stop() {
	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wg.Wait()
	wp.started = false
}

func marshalJobArgs(job JobParams) (string, error) {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return "", errors.New("both a name & handler is required for a job")
	}

	argsAsJSON, err := json.Marshal(job.Args)
	if err != nil {
		return "", err
	}

	return string(argsAsJSON), nil
}
