// Package queue delivers flow trigger jobs to a durable queue consumed by the
// flow executor. Redis lists are the default backend; SQS is available for
// deployments that already run on AWS.
package queue
