package remote

import (
	"context"
	"time"

	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/pkg/logger"
)

// RefreshSession renews the held session and notifies subscribers. A
// refresh token the server rejects ends the session with EventSignedOut.
func (c *Client) RefreshSession(ctx context.Context) error {
	sess := c.Session()
	if sess == nil {
		return nil
	}

	renewed, err := c.refresh(ctx, sess.RefreshToken)
	if isUnauthorized(err) {
		c.clear()
		logger.Warn("session_refresh_rejected", nil)
		c.emit(identity.Event{Kind: identity.EventSignedOut})
		return nil
	}
	if err != nil {
		return err
	}

	logger.InfoWithUser(renewed.Identity.ID, "session_refreshed", nil)
	c.emit(identity.Event{Kind: identity.EventTokenRefreshed, Session: renewed.Clone()})
	return nil
}

// StartRefresher renews the access token shortly before it expires until
// ctx is cancelled. The returned func stops it and waits for it to exit.
func (c *Client) StartRefresher(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sess := c.Session()
				if sess == nil || !sess.Expired(c.now().Add(c.margin)) {
					continue
				}
				if err := c.RefreshSession(ctx); err != nil && ctx.Err() == nil {
					logger.Error("session_refresh_failed", err, nil)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
