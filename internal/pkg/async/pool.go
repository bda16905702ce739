// Package async runs named tasks on a bounded number of goroutines.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

// Pool bounds concurrency per Execute call. It holds no state between calls
// and is safe to share.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs tasks and returns one result per task name. Tasks that never
// ran because ctx was cancelled report ctx's error.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	queue := make(chan Task)
	out := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	workers := min(p.workerCount, len(tasks))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				data, err := task.Execute(ctx)
				out <- Result{Name: task.Name, Data: data, Err: err}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, task := range tasks {
			select {
			case queue <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(out)

	results := make(map[string]Result, len(tasks))
	for r := range out {
		results[r.Name] = r
	}
	for _, task := range tasks {
		if _, ok := results[task.Name]; !ok {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("task %s did not run", task.Name)
			}
			results[task.Name] = Result{Name: task.Name, Err: err}
		}
	}
	return results
}

// FirstError returns the error of the first failed task, in task order.
func FirstError(tasks []Task, results map[string]Result) error {
	for _, task := range tasks {
		if r := results[task.Name]; r.Err != nil {
			return fmt.Errorf("%s: %w", task.Name, r.Err)
		}
	}
	return nil
}
