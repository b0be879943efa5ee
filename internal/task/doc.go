// Package task runs background work on a bounded in-memory queue served by
// a fixed pool of workers. It is used to deliver events off the request path.
package task
