package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Readiness is what the post-launch probes observed. It never fails the
// installation: the service may still be pulling images or obtaining
// certificates.
type Readiness struct {
	Healthy  bool
	Version  string
	Firehose bool
	Err      error
}

// WaitHealthy polls url until it answers 200 or ctx ends.
func WaitHealthy(ctx context.Context, client *http.Client, url string, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		version, err := checkHealth(ctx, client, url)
		if err == nil {
			return version, nil
		}
		select {
		case <-ctx.Done():
			return "", err
		case <-ticker.C:
		}
	}
}

func checkHealth(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	var body struct {
		Version string `json:"version"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)
	return body.Version, nil
}

// ProbeFirehose opens and immediately closes a subscription to the repo
// event stream.
func ProbeFirehose(ctx context.Context, url string, timeout time.Duration) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = timeout
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}
