package pipeline

import "sync"

// inflight tracks which documents currently have a live pipeline run. It is
// the single guard against concurrent runs for the same document.
type inflight struct {
	mu   sync.Mutex
	runs map[int64]struct{}
}

func newInflight() *inflight {
	return &inflight{runs: make(map[int64]struct{})}
}

// TryAcquire reserves a run slot for the document. It reports false when a
// run is already live.
func (f *inflight) TryAcquire(documentID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[documentID]; ok {
		return false
	}
	f.runs[documentID] = struct{}{}
	return true
}

// Release frees the document's run slot.
func (f *inflight) Release(documentID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.runs, documentID)
}

// Active reports whether the document has a live run.
func (f *inflight) Active(documentID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.runs[documentID]
	return ok
}

// Count reports how many documents have live runs.
func (f *inflight) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}
