package notify

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

// NotifyWriteChunkSize is the chunk size when writing payload to Unix socket (avoid large single write).
const NotifyWriteChunkSize = 32 * 1024 // 32KB

// IPC request types understood by the desktop notification helper.
const (
	RequestShow              = "show"
	RequestClose             = "close"
	RequestPermission        = "permission_request"
	RequestPlaySound         = "play_sound"
	DefaultUnixSocketTimeout = 3 * time.Second
)

// Request is one message to the desktop helper.
type Request struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	Notification *types.Notification `json:"notification,omitempty"`
	Tag          string              `json:"tag,omitempty"`
	Sound        string              `json:"sound,omitempty"`
	Volume       float64             `json:"volume,omitempty"`
}

// Response is the helper's reply.
type Response struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	Permission string `json:"permission,omitempty"`
}

// IPC talks to the desktop notification helper over a Unix domain socket.
// Each request is a 4-byte little-endian length followed by the JSON payload.
type IPC struct {
	SocketPath string
	Timeout    time.Duration
}

// Send delivers req and waits for the reply.
func (c *IPC) Send(req *Request) (*Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultUnixSocketTimeout
	}
	if req.ID == "" {
		req.ID = tool.GenerateRandomUUID()
	}

	if _, err := os.Stat(c.SocketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("unix socket not found: %s (is the notification helper running?)", c.SocketPath)
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize notification request: %v", err)
	}
	if len(payload) > NotifyWriteChunkSize {
		return nil, fmt.Errorf("notification payload too large: %d bytes (max %d)", len(payload), NotifyWriteChunkSize)
	}

	conn, err := net.DialTimeout("unix", c.SocketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Unix socket %s: %v", c.SocketPath, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close Unix socket connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set deadline: %v", err)
	}

	lengthBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lengthBuf, uint32(len(payload)))
	if _, err := conn.Write(lengthBuf); err != nil {
		return nil, fmt.Errorf("failed to write length to Unix socket: %v", err)
	}
	tool.DefaultLogger.Debugf("Sending %s request to Unix socket (len=%d)", req.Type, len(payload))
	for off := 0; off < len(payload); {
		end := min(off+NotifyWriteChunkSize, len(payload))
		nw, err := conn.Write(payload[off:end])
		if err != nil {
			return nil, fmt.Errorf("failed to write payload to Unix socket: %v", err)
		}
		off += nw
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read response from Unix socket: %v", err)
	}

	resp := &Response{OK: true}
	if n > 0 {
		if err := sonic.Unmarshal(buf[:n], resp); err != nil {
			tool.DefaultLogger.Debugf("Unix socket response (raw): %s", string(buf[:n]))
			return nil, fmt.Errorf("failed to parse helper response: %v", err)
		}
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("helper returned error: %s", resp.Error)
	}
	return resp, nil
}
