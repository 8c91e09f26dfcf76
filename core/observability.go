package core

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Running bool
}
