// Package api exposes the audience engine over HTTP.
//
// The CRUD layer and event ingestion call the hook endpoints after a profile
// changes or an event is recorded; each call becomes a task on the reconcile
// pool. Health, membership history and rule-validation endpoints sit on the
// same router.
package api
