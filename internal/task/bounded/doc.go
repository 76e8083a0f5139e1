// Package bounded runs a fixed list of tasks with at most N of them in flight.
//
// Workers share a single cursor over task indices. Each worker claims the next
// unclaimed index with one atomic fetch-and-increment, runs that task, stores
// its result at the same index, and repeats until the cursor is exhausted.
// Results therefore keep positional correspondence with the task list no
// matter in which order tasks complete.
//
// Tasks are expected to handle and report their own failures. A task that
// returns an error anyway (or panics) fails the whole Run: siblings already in
// flight finish normally, but no further indices are claimed.
//
// There is no cancellation token. Tasks close over whatever context they need.
package bounded
