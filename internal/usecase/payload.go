package usecase

import "MarketPulse/internal/domain/models"

// eventPayload extracts a typed payload from an event envelope, accepting
// either a value or a pointer.
func eventPayload[T any](ev models.Event) (T, bool) {
	switch p := ev.Payload.(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}
