package memcache

// OnMemoryWarning runs the user hook and clears the cache when configured to.
// Usually invoked by a pressure.Source.
func (c *Cache[K, V]) OnMemoryWarning() {
	c.counters.memoryWarnings.Add(1)
	if c.onMemoryWarning != nil {
		c.onMemoryWarning()
	}
	if c.removeAllOnMemoryWarning.Load() {
		n := c.removeAll()
		c.logger.Info("memory warning: cache cleared", "removed", n)
	}
}

// OnEnterBackground runs the user hook and clears the cache when configured to.
func (c *Cache[K, V]) OnEnterBackground() {
	c.counters.backgrounds.Add(1)
	if c.onEnterBackground != nil {
		c.onEnterBackground()
	}
	if c.removeAllOnBackground.Load() {
		n := c.removeAll()
		c.logger.Info("entered background: cache cleared", "removed", n)
	}
}
