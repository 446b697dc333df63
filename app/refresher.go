package app

import (
	"context"
	"time"
)

// RefreshAll recomputes the ledger of every configured meter. Failures are
// logged and recorded by compute; the count of successful refreshes is
// returned.
func (s *Service) RefreshAll(ctx context.Context) int {
	ok := 0
	for _, meter := range s.cfg.Auth.Meters.Meters() {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.LedgerFor(ctx, meter, "", time.Time{}); err == nil {
			ok++
		}
	}
	return ok
}

// StartRefresher calls RefreshAll every interval until ctx is cancelled.
func (s *Service) StartRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.RefreshAll(ctx)
			s.log.Debugf("background refresh: %d meters ok", n)
		}
	}
}
