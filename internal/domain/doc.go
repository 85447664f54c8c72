// Package domain defines the core business types for the IGNITE audience engine.
//
// Types in this package are pure value objects with no behavior, no database
// dependencies, and no HTTP concerns. They are the shared language between
// hook handlers, the membership service, the trigger dispatcher, and the
// repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Pure helpers on the types (tree walks, set lookups) are allowed
//   - Constants and enums belong here
package domain
