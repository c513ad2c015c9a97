package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sitelens/models"
)

// HTTPSender posts batches to {apiURL}/batch as JSON.
type HTTPSender struct {
	apiURL string
	client *http.Client
	beacon *http.Client
}

func NewHTTPSender(apiURL string) *HTTPSender {
	return &HTTPSender{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
		// The beacon client keeps a tight deadline: at unload there is
		// nobody left to wait for a slow server.
		beacon: &http.Client{Timeout: 2 * time.Second},
	}
}

func (s *HTTPSender) Send(batch models.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	resp, err := s.client.Post(s.apiURL+"/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collection endpoint returned %s", resp.Status)
	}
	return nil
}

func (s *HTTPSender) SendBeacon(batch models.Batch) {
	body, err := json.Marshal(batch)
	if err != nil {
		return
	}
	resp, err := s.beacon.Post(s.apiURL+"/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	resp.Body.Close()
}
