package oob

import (
	"errors"
	"io"
	"log"
	"net"
	"time"
)

// Negotiate offers GMCP and MSSP to a telnet client and waits up to
// timeout for its answers. Whatever the client sent that is not an
// answer is lost, so call it before reading any input.
func Negotiate(conn net.Conn, timeout time.Duration) *Capabilities {
	caps := NewCapabilities()

	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.Write([]byte{IAC, WILL, TeloptGMCP, IAC, WILL, TeloptMSSP})

	conn.SetReadDeadline(time.Now().Add(timeout))
	var answered int
	buf := make([]byte, 256)
	for answered < 2 {
		n, err := conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if !(errors.As(err, &netErr) && netErr.Timeout()) && err != io.EOF {
				log.Printf("oob: negotiate read: %v", err)
			}
			break
		}
		for i := 0; i+2 < n; i++ {
			if buf[i] != IAC {
				continue
			}
			cmd, opt := buf[i+1], buf[i+2]
			if cmd != DO && cmd != DONT {
				continue
			}
			switch opt {
			case TeloptGMCP:
				caps.GMCP = cmd == DO
				answered++
			case TeloptMSSP:
				caps.MSSP = cmd == DO
				answered++
			}
			i += 2
		}
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	if caps.HasAny() {
		log.Printf("oob: %s negotiated gmcp=%v mssp=%v", conn.RemoteAddr(), caps.GMCP, caps.MSSP)
	}
	return caps
}
