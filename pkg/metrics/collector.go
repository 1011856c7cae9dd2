package metrics

import (
	"time"

	"github.com/cuemby/restbackup/pkg/storage"
)

// Collector periodically refreshes gauges that are cheaper to poll
// than to keep updated on every request.
type Collector struct {
	backend storage.Backend
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector over backend.
func NewCollector(backend storage.Backend) *Collector {
	return &Collector{
		backend: backend,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	repos, err := c.backend.ListRepos()
	if err != nil {
		return
	}
	RepositoriesTotal.Set(float64(len(repos)))
}
