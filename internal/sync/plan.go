package sync

import (
	"sort"
	"time"
)

// Action is the direction of one planned transfer.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
)

// Item is one planned transfer. RelPath is slash-separated and
// relative to both tree roots.
type Item struct {
	RelPath string    `json:"path"`
	Action  Action    `json:"action"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// Plan is the fully-resolved, ordered list of transfers an operation
// will perform. Plans are built once by a planner and never mutated;
// lexicographic path order guarantees parents sort before children.
type Plan struct {
	Items      []Item   `json:"items"`
	Advisories []string `json:"advisories,omitempty"`
}

// NewPlan sorts items by path (ties by action) and attaches planning
// advisories.
func NewPlan(items []Item, advisories []string) *Plan {
	sort.Slice(items, func(i, j int) bool {
		if items[i].RelPath != items[j].RelPath {
			return items[i].RelPath < items[j].RelPath
		}
		return items[i].Action < items[j].Action
	})
	return &Plan{Items: items, Advisories: advisories}
}

// Empty reports a plan with nothing to transfer.
func (p *Plan) Empty() bool {
	return len(p.Items) == 0
}

// TotalBytes sums the known sizes of all planned items.
func (p *Plan) TotalBytes() int64 {
	var total int64
	for _, item := range p.Items {
		total += item.Size
	}
	return total
}
