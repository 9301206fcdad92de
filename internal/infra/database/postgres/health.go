package postgres

// PoolStats reports acquired, idle and max connections of the pool
func (p *Pool) PoolStats() (active, idle, max int32) {
	stats := p.Stat()
	return stats.AcquiredConns(), stats.IdleConns(), stats.MaxConns()
}
