package frontier

import "container/list"

// Stats holds statistics about the frontier.
type Stats struct {
	Queued     int
	Visited    int
	Failed     int
	TotalAdded int
	Duplicates int
}

// Frontier is the FIFO queue of pending URLs plus the queued, visited and
// failed membership sets for one crawl run.
//
// A Frontier is owned by a single run and is not safe for concurrent use.
type Frontier struct {
	queue   *list.List
	queued  map[string]struct{}
	visited map[string]struct{}
	failed  map[string]struct{}

	// insertion order of the terminal sets, for reporting
	visitedOrder []string
	failedOrder  []string

	totalAdded int
	duplicates int
}

// New creates an empty frontier.
func New() *Frontier {
	return &Frontier{
		queue:   list.New(),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
		failed:  make(map[string]struct{}),
	}
}

// Enqueue appends item to the tail of the queue. It is a no-op returning false
// when the URL is already queued, visited or failed.
func (f *Frontier) Enqueue(item *URLItem) bool {
	if item == nil || item.URL == "" {
		return false
	}
	if f.seen(item.URL) {
		f.duplicates++
		return false
	}

	f.queue.PushBack(item)
	f.queued[item.URL] = struct{}{}
	f.totalAdded++
	return true
}

// Dequeue removes and returns the head of the queue, or nil when it is empty.
func (f *Frontier) Dequeue() *URLItem {
	elem := f.queue.Front()
	if elem == nil {
		return nil
	}
	item := f.queue.Remove(elem).(*URLItem)
	delete(f.queued, item.URL)
	return item
}

// MarkVisited records a successfully rendered URL. Terminal URLs are not re-marked.
func (f *Frontier) MarkVisited(u string) bool {
	if f.IsTerminal(u) {
		return false
	}
	f.visited[u] = struct{}{}
	f.visitedOrder = append(f.visitedOrder, u)
	return true
}

// MarkFailed records a URL that exhausted its retries. Terminal URLs are not re-marked.
func (f *Frontier) MarkFailed(u string) bool {
	if f.IsTerminal(u) {
		return false
	}
	f.failed[u] = struct{}{}
	f.failedOrder = append(f.failedOrder, u)
	return true
}

// IsTerminal reports whether u has been visited or has failed.
func (f *Frontier) IsTerminal(u string) bool {
	return f.HasVisited(u) || f.HasFailed(u)
}

// Seen reports whether u is queued, visited or failed.
func (f *Frontier) Seen(u string) bool {
	return f.seen(u)
}

// HasVisited checks if a URL has been visited.
func (f *Frontier) HasVisited(u string) bool {
	_, ok := f.visited[u]
	return ok
}

// HasFailed checks if a URL has permanently failed.
func (f *Frontier) HasFailed(u string) bool {
	_, ok := f.failed[u]
	return ok
}

// BudgetReached is true once the number of visited URLs reaches maxPages.
func (f *Frontier) BudgetReached(maxPages int) bool {
	return len(f.visited) >= maxPages
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return f.queue.Len()
}

// IsEmpty returns true if nothing is queued.
func (f *Frontier) IsEmpty() bool {
	return f.queue.Len() == 0
}

// Pending returns the queued URLs in dequeue order.
func (f *Frontier) Pending() []string {
	out := make([]string, 0, f.queue.Len())
	for e := f.queue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*URLItem).URL)
	}
	return out
}

// Visited returns visited URLs in the order they were marked.
func (f *Frontier) Visited() []string {
	return append([]string(nil), f.visitedOrder...)
}

// Failed returns failed URLs in the order they were marked.
func (f *Frontier) Failed() []string {
	return append([]string(nil), f.failedOrder...)
}

// Stats returns frontier statistics.
func (f *Frontier) Stats() Stats {
	return Stats{
		Queued:     f.queue.Len(),
		Visited:    len(f.visited),
		Failed:     len(f.failed),
		TotalAdded: f.totalAdded,
		Duplicates: f.duplicates,
	}
}

func (f *Frontier) seen(u string) bool {
	if _, ok := f.queued[u]; ok {
		return true
	}
	return f.IsTerminal(u)
}
