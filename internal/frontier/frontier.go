package frontier

import "container/list"

// FrontierStats holds statistics about the frontier.
type FrontierStats struct {
	Queued      int
	Visited     int
	Discovered  int
	Duplicates  int
	DepthCounts map[int]int
}

// MemoryFrontier is the breadth-first queue used by the Discoverer. It
// tracks two sets: discovered (every URL ever accepted, in acceptance
// order) and visited (URLs whose page has been fetched). It is owned by
// a single discovery loop and is not safe for concurrent use.
type MemoryFrontier struct {
	queue       *list.List
	discovered  map[string]struct{}
	order       []string
	visited     map[string]struct{}
	maxDepth    int
	maxURLs     int
	duplicates  int
	depthCounts map[int]int
}

// NewMemoryFrontier creates a frontier. maxDepth <= 0 disables depth
// bounding; maxURLs <= 0 disables the discovered-set cap.
func NewMemoryFrontier(maxDepth, maxURLs int) *MemoryFrontier {
	return &MemoryFrontier{
		queue:       list.New(),
		discovered:  make(map[string]struct{}),
		visited:     make(map[string]struct{}),
		maxDepth:    maxDepth,
		maxURLs:     maxURLs,
		depthCounts: make(map[int]int),
	}
}

// Push records item as discovered and enqueues it. It returns false for
// duplicates, items beyond the depth limit, or when the frontier is full.
func (f *MemoryFrontier) Push(item *URLItem) bool {
	if f.maxDepth > 0 && item.Depth > f.maxDepth {
		return false
	}
	if _, exists := f.discovered[item.URL]; exists {
		f.duplicates++
		return false
	}
	if f.Full() {
		return false
	}

	f.discovered[item.URL] = struct{}{}
	f.order = append(f.order, item.URL)
	f.depthCounts[item.Depth]++
	f.queue.PushBack(item)
	return true
}

// Pop removes and returns the next URL to crawl, or nil.
func (f *MemoryFrontier) Pop() *URLItem {
	elem := f.queue.Front()
	if elem == nil {
		return nil
	}
	return f.queue.Remove(elem).(*URLItem)
}

// Size returns the number of queued URLs.
func (f *MemoryFrontier) Size() int {
	return f.queue.Len()
}

// IsEmpty returns true if nothing is queued.
func (f *MemoryFrontier) IsEmpty() bool {
	return f.queue.Len() == 0
}

// Full reports whether the discovered set reached the URL cap.
func (f *MemoryFrontier) Full() bool {
	return f.maxURLs > 0 && len(f.order) >= f.maxURLs
}

// Contains reports whether url was already discovered.
func (f *MemoryFrontier) Contains(url string) bool {
	_, exists := f.discovered[url]
	return exists
}

// MarkVisited marks a URL as fetched.
func (f *MemoryFrontier) MarkVisited(url string) {
	f.visited[url] = struct{}{}
}

// HasVisited checks if a URL has been fetched.
func (f *MemoryFrontier) HasVisited(url string) bool {
	_, exists := f.visited[url]
	return exists
}

// Discovered returns the discovered URLs in discovery order.
func (f *MemoryFrontier) Discovered() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Stats returns frontier statistics.
func (f *MemoryFrontier) Stats() FrontierStats {
	depthCounts := make(map[int]int, len(f.depthCounts))
	for k, v := range f.depthCounts {
		depthCounts[k] = v
	}

	return FrontierStats{
		Queued:      f.queue.Len(),
		Visited:     len(f.visited),
		Discovered:  len(f.order),
		Duplicates:  f.duplicates,
		DepthCounts: depthCounts,
	}
}
