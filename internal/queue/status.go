package queue

// Status tracks where an item is in its lifecycle.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusTagging     Status = "tagging"
	StatusImporting   Status = "importing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is list of valid "to" statuses.
// Tagging always moves forward: a tag failure degrades the item but
// never fails it, so tagging has no edge to failed.
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusDownloading, StatusCancelled},
	StatusDownloading: {StatusTagging, StatusFailed, StatusCancelled},
	StatusTagging:     {StatusImporting},
	StatusImporting:   {StatusCompleted, StatusFailed},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusCancelled:   {},
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	valid, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this status has no valid outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// IsActive returns true while the item occupies the single active slot.
func (s Status) IsActive() bool {
	return s == StatusDownloading || s == StatusTagging || s == StatusImporting
}
