package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"mastervol/internal/domain"
)

// DefaultTimeout bounds dialing and each round trip of a Client.
const DefaultTimeout = 5 * time.Second

// Client talks to a running protocol server over one connection.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// Dial connects to a protocol server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("protocol: server addr required")
	}
	dialer := net.Dialer{Timeout: DefaultTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn), timeout: DefaultTimeout}, nil
}

// CurrentVolume asks for the master volume as a rounded percentage.
func (c *Client) CurrentVolume() (int, error) {
	resp, err := c.roundTrip(CurrentVolumeRequest)
	if err != nil {
		return 0, err
	}
	p, err := strconv.Atoi(resp)
	if err != nil {
		return 0, fmt.Errorf("protocol: unexpected response %q", resp)
	}
	return p, nil
}

// SetVolume sets the master volume to percent/100 and returns the scalar
// volume the server reports afterwards.
func (c *Client) SetVolume(percent int) (float32, error) {
	resp, err := c.roundTrip(strconv.Itoa(percent))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp, 32)
	if err != nil {
		return 0, fmt.Errorf("protocol: unexpected response %q", resp)
	}
	return float32(v), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(req string) (string, error) {
	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := io.WriteString(c.conn, req+"\n"); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", fmt.Errorf("protocol: server closed the connection after %q", req)
		}
		return "", err
	}
	resp := strings.TrimRight(line, "\r\n")
	if rest, ok := strings.CutPrefix(resp, "ERR "); ok {
		return "", serverError(rest)
	}
	return resp, nil
}

// serverError turns an "ERR <kind>: <message>" payload back into an error
// that matches the domain sentinel for kind.
func serverError(payload string) error {
	kind, msg, _ := strings.Cut(payload, ": ")
	if sentinel := domain.KindError(kind); sentinel != nil {
		return fmt.Errorf("server: %w: %s", sentinel, msg)
	}
	return fmt.Errorf("server: %s", payload)
}
