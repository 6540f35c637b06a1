package pdscreen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
)

// MaxWorkers caps the number of concurrently running workers.
const MaxWorkers = 20

// BatchResult holds the outcome of one image of a directory analysis.
type BatchResult struct {
	Path   string
	Report *DrawingReport
	Err    error
}

// workerCount bounds the requested number of workers, falling back to the CPU count.
func workerCount(n int) int {
	if n <= 0 || n > MaxWorkers {
		return runtime.NumCPU()
	}
	return n
}

// AnalyzeDir analyses every supported image found under dir. The models are
// loaded (or trained) once before the workers start. Results are returned
// sorted by path.
func (a *DrawingAnalyzer) AnalyzeDir(ctx context.Context, dir string, dt DrawingType, workers int) ([]BatchResult, error) {
	if _, err := a.bundle(ctx, dt); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths, errc := walkDir(ctx.Done(), dir, SupportedExtensions)
	results := consume(ctx.Done(), paths, workerCount(workers), func(path string) BatchResult {
		report, err := a.AnalyzeFile(ctx, path, dt)
		return BatchResult{Path: path, Report: report, Err: err}
	})

	var out []BatchResult
	for res := range results {
		out = append(out, res)
	}
	if err := <-errc; err != nil {
		return out, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// consume fans the paths out to a fixed number of workers and merges their
// results into a single channel, closed once every worker has returned.
func consume[T any](done <-chan struct{}, paths <-chan string, workers int, fn func(string) T) <-chan T {
	ch := make(chan T)
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for path := range paths {
				res := fn(path)
				select {
				case <-done:
					return
				case ch <- res:
				}
			}
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()
	return ch
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported image to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan struct{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !hasExtension(path, srcExts) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}
