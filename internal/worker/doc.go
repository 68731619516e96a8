// Package worker provides the bounded concurrent worker pool.
//
// A fixed number of executors draw from one shared bounded queue. Producers
// experience backpressure when the queue is full -- submissions block, they
// are never dropped. Each item is processed start-to-finish by one executor,
// and a failure in one item never stops the pool. Shutdown is a cooperative
// drain: intake closes, queued and in-flight items finish, then the
// executors exit. No cross-item ordering is guaranteed once items are
// distributed across executors.
package worker
