// Package events carries learning notifications (rewards, broken streaks,
// newly mastered items) from the services to any interested handler.
//
// Services collect events while a unit of work runs and emit them only after
// it commits. Emission failures are logged and never fail the operation that
// produced the event.
package events
