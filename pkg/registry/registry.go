// Package registry keeps the in-memory lifecycle store of detected issues.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adityassharma-ss/kubefix/pkg/model"
)

// resolvedRetention is how long a resolved issue survives after its
// detection time before prune removes it.
const resolvedRetention = 24 * time.Hour

// Registry is the synchronized store of issues. The underlying map is
// never exposed; all access goes through its operations.
type Registry struct {
	mu     sync.RWMutex
	issues map[string]*model.Issue

	// now is swappable for tests.
	now func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		issues: make(map[string]*model.Issue),
		now:    time.Now,
	}
}

// Ingest registers a candidate as a new active issue with a fresh id and
// detection timestamp. Repeated detections of the same underlying fault
// across scan cycles each produce a distinct issue; the registry does not
// deduplicate.
func (r *Registry) Ingest(c model.Candidate, namespace, resourceName, resourceType string) model.Issue {
	issue := model.Issue{
		ID:           uuid.NewString(),
		Type:         c.Type,
		Status:       model.StatusActive,
		Namespace:    namespace,
		ResourceName: resourceName,
		ResourceType: resourceType,
		Severity:     c.Severity,
		Message:      c.Message,
		Evidence:     c.Evidence,
		DetectedAt:   r.now(),
	}

	r.mu.Lock()
	r.issues[issue.ID] = &issue
	r.mu.Unlock()

	return issue
}

// ListActive returns the active issues, optionally filtered by namespace.
// An empty namespace matches all.
func (r *Registry) ListActive(namespace string) []model.Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Issue
	for _, issue := range r.issues {
		if issue.Status != model.StatusActive {
			continue
		}
		if namespace != "" && issue.Namespace != namespace {
			continue
		}
		out = append(out, *issue)
	}
	return out
}

// Get returns the issue with the given id.
func (r *Registry) Get(id string) (model.Issue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, ok := r.issues[id]
	if !ok {
		return model.Issue{}, false
	}
	return *issue, true
}

// MarkResolved resolves an issue. Unknown ids are a no-op; an issue that
// is already resolved keeps its original resolution timestamp.
func (r *Registry) MarkResolved(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, ok := r.issues[id]
	if !ok {
		return false
	}
	if issue.Status == model.StatusResolved {
		return true
	}

	now := r.now()
	issue.Status = model.StatusResolved
	issue.ResolvedAt = &now
	return true
}

// Prune removes every resolved issue detected more than the retention
// window ago. It returns how many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, issue := range r.issues {
		if issue.Status == model.StatusResolved && now.Sub(issue.DetectedAt) > resolvedRetention {
			delete(r.issues, id)
			removed++
		}
	}
	return removed
}

// Len reports the total number of stored issues regardless of status.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.issues)
}
