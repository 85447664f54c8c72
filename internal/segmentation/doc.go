// Package segmentation decides whether a single profile matches a segment's
// condition tree.
//
// Evaluation is a pure function over a Snapshot: the profile, its recent
// event window, and the set of segments it is already a member of. Nothing
// here performs I/O. Malformed leaves never abort an evaluation; they simply
// evaluate to false.
//
// All calendar arithmetic (on_date, in_last_days) is done in UTC so results
// do not depend on the host timezone.
//
// Segment-of-segment conditions read the membership snapshot supplied by the
// caller and never evaluate the referenced segment's rules, so they are only
// as fresh as the last reconcile pass that computed the referenced segment.
package segmentation
