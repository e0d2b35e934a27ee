// Package queue runs plate-reading jobs from a Redis list.
//
// Producers call Enqueue to store a Job and push its id. A RedisConsumer
// started by the worker command pops ids with BRPOP, decodes the job's
// images, runs them through a Runner (normally a *pipeline.Pipeline) and
// records the outcome in Redis. Failed jobs are pushed back until their
// retry budget is spent. When a ResultStore is configured every image's
// plates are also persisted.
package queue
