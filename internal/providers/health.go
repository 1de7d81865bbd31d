package providers

import (
	"context"
	"sync"
	"time"
)

const pingTimeout = 5 * time.Second

// HealthStatus is the outcome of pinging one provider.
type HealthStatus struct {
	Name     string
	IsOnline bool
	ErrorMsg string
	Latency  time.Duration
}

// CheckAll pings every provider concurrently. Results keep the input order.
func CheckAll(ctx context.Context, provs []Provider) []HealthStatus {
	statuses := make([]HealthStatus, len(provs))
	var wg sync.WaitGroup
	for i, p := range provs {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pingCtx)
			status := HealthStatus{
				Name:     p.Name(),
				IsOnline: err == nil,
				Latency:  time.Since(start),
			}
			if err != nil {
				status.ErrorMsg = err.Error()
			}
			statuses[i] = status
		}(i, p)
	}
	wg.Wait()
	return statuses
}
