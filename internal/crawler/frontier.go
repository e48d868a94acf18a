package crawler

import "sync"

// task is one pending fetch: a URL and its distance from the seed.
type task struct {
	url   string
	depth int
}

// frontier is a FIFO queue of pending tasks with an exact visited set.
// A URL enters the queue at most once, at the depth it was first seen.
type frontier struct {
	mu    sync.Mutex
	queue []task
	seen  map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]struct{})}
}

// push enqueues the URL unless it was already seen. It reports whether the
// URL was accepted.
func (f *frontier) push(url string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	f.queue = append(f.queue, task{url: url, depth: depth})
	return true
}

// pop dequeues the oldest task. ok is false when the queue is empty.
func (f *frontier) pop() (t task, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return task{}, false
	}
	t = f.queue[0]
	f.queue = f.queue[1:]
	return t, true
}

// requeue puts a popped task back at the head, preserving FIFO order for a
// dispatch that could not complete.
func (f *frontier) requeue(t task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append([]task{t}, f.queue...)
}

func (f *frontier) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}
