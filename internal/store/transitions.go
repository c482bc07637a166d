package store

import "yardops/yard-service/internal/models"

var transitionMap = map[string][]string{
	"assign":   {models.StatusPending},
	"finalize": {models.StatusInProgress},
	"sweep":    {models.StatusInProgress},
	"unassign": {models.StatusInProgress},
	// Revert rewinds a whole visit, so the requests the finalize sweep
	// cancelled come back to pending alongside the finalized ones.
	"revert": {models.StatusFinalized, models.StatusCancelled},
}

// ValidTransition reports whether an action may be applied to a service
// request in the given status. Mid-job additions create requests directly
// in_progress and never transition an existing one, so they are not listed.
func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// AllowedStatuses returns the statuses an action may move a request from.
// The SQL layer feeds its status predicates from this so the table and
// the queries cannot drift apart.
func AllowedStatuses(action string) []string {
	allowed := transitionMap[action]
	out := make([]string, len(allowed))
	copy(out, allowed)
	return out
}
