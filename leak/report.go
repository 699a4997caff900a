// Package leak reports tracked resources that have stayed open too long and
// exports tracker lifecycle metrics to Prometheus.
package leak

import (
	"time"

	"github.com/guileen/dbtrack/tracker"
)

// Report is the result of one leak check.
type Report struct {
	Timestamp     time.Time            `json:"timestamp"`
	Threshold     time.Duration        `json:"threshold"`
	Resources     []Info               `json:"resources"`
	Leaks         []Info               `json:"leaks"`
	TotalTracked  int                  `json:"total_tracked"`
	TotalLeaks    int                  `json:"total_leaks"`
	ResourceStats map[tracker.Kind]int `json:"resource_stats"`
}

// Info describes one open resource.
type Info struct {
	ResourceID     string        `json:"resource_id"`
	ResourceType   tracker.Kind  `json:"resource_type"`
	Root           string        `json:"root"`
	ParentID       string        `json:"parent_id,omitempty"`
	StackTrace     string        `json:"stack_trace,omitempty"`
	AllocationTime time.Time     `json:"allocation_time"`
	LeakDuration   time.Duration `json:"leak_duration"`
}

func newInfo(r tracker.Resource, root, parentID string, now time.Time) Info {
	info := Info{
		ResourceID:     r.ID().String(),
		ResourceType:   r.Kind(),
		Root:           root,
		ParentID:       parentID,
		AllocationTime: r.CreatedAt(),
		LeakDuration:   now.Sub(r.CreatedAt()),
	}
	if alloc := r.Allocation(); alloc != nil {
		info.StackTrace = alloc.Stack()
	}
	return info
}
