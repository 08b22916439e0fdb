package service

import (
	"time"

	"optionbot/pkg/logger"

	"github.com/gorilla/websocket"
)

// heartbeatLoop sends local/remote timestamps on a fixed cadence.
// Heartbeats are fire-and-forget and never enter the correlation table;
// a write failure is left for the read loop to notice.
func (c *Client) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	t := time.NewTicker(c.cfg.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-done:
			return
		case <-t.C:
			hb := heartbeatFrame{
				Name: frameHeartbeat,
				Msg: heartbeatMsg{
					HeartbeatTime: time.Now().UnixMilli(),
					UserTime:      c.serverTime.Load(),
				},
			}
			if err := c.writeFrame(conn, hb); err != nil {
				logger.Debug("heartbeat write failed: %v", err)
			}
		}
	}
}
