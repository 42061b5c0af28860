package store

import "waitline/internal/models"

var transitionMap = map[string][]string{
	"serve":    {models.StatusWaiting},
	"complete": {models.StatusWaiting, models.StatusServing},
}

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
