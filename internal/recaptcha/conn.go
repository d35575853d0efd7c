package recaptcha

import (
	"context"
	"net"
	"time"
)

// deadlineConn applies a fresh deadline before every read and write.
// A write also restarts the read deadline, since the transport parks a Read
// on idle keep-alive connections before the next request is sent.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	now := time.Now()
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(now.Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(now.Add(c.writeTimeout + c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// idleTimeout returns an idle pool timeout below the read deadline, so the
// transport closes an idle connection before its parked Read times out.
func idleTimeout(read, fallback time.Duration) time.Duration {
	if read <= 0 {
		return fallback
	}
	return min(read/2, fallback)
}

func dialer(connect, read, write time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, readTimeout: read, writeTimeout: write}, nil
	}
}
