// Package membership implements the membership transition engine.
//
// A reconcile pass loads one profile, its recent events and its open segment
// memberships, evaluates every candidate segment against that single
// snapshot, and persists the difference: new open rows for segments the
// profile entered, closed rows for segments it left. Passes are idempotent
// and level-triggered; running one twice with no data change produces an
// empty transition the second time, and a pass that failed part-way is
// corrected by the next one.
//
// The engine takes no locks. Duplicate open rows are prevented by the
// repository's conditional insert, and only rows that actually changed are
// reported, so concurrent passes for the same profile cannot double-fire a
// trigger.
//
// The service layer depends on the Repository and Dispatcher interfaces
// defined in repository.go. It never imports net/http or database/sql.
package membership
