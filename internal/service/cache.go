// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package service

import "sync"

// profileCache holds the last list-profiles answer in process memory. It is
// cleared by every operation that changes profiles and never written to disk.
type profileCache struct {
	mu    sync.RWMutex
	names []string
	valid bool
}

// get returns a copy of the cached names, or false when nothing is cached.
func (c *profileCache) get() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return nil, false
	}
	return append([]string{}, c.names...), true
}

func (c *profileCache) set(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append([]string{}, names...)
	c.valid = true
}

func (c *profileCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = nil
	c.valid = false
}
