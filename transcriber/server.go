package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"murmur/log"
)

const defaultTimeout = 30 * time.Second

// Server talks to a whisper-server /inference endpoint.
type Server struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// NewServer builds a client for the backend at endpoint (host:port).
func NewServer(endpoint string, timeout time.Duration) *Server {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Server{
		url:        "http://" + endpoint + "/inference",
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type inferenceResponse struct {
	Text string `json:"text"`
}

func (s *Server) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading recording: %w", err)
	}
	writer.WriteField("response_format", "json")
	writer.WriteField("temperature", "0.0")
	writer.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %v", ErrTimeout, s.timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		// The deadline can also fire mid-body, after Do has returned.
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w after %v", ErrTimeout, s.timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, truncate(data, 200))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		// Some server builds reply with bare text; take the body as-is
		// before giving up.
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		log.Warnf("transcriber: non-JSON response, using body verbatim (%d bytes)", len(data))
		return text, nil
	}

	return strings.TrimSpace(parsed.Text), nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
