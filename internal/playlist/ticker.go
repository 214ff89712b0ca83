package playlist

import (
	"context"
	"time"
)

// StartExpirySweeper starts a background worker that marks pending
// invitations past their seven day window as expired.
func (s *Server) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				s.sweepExpiredInvitations(ctx)
			}
		}
	}()
}

func (s *Server) sweepExpiredInvitations(ctx context.Context) {
	n, err := s.store.ExpireInvitations(ctx)
	if err != nil {
		s.log.Errorw("invitation sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Infow("expired invitations", "count", n)
	}
}
