// Package clients talks to the remote batch store and the label printing
// sink.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// jsonClient is the shared request path of the store and print clients.
type jsonClient struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

func newJSONClient(name, baseURL, token string, timeout time.Duration, logger *zap.Logger) jsonClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return jsonClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// remoteError is the error body the store and print sink return.
type remoteError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// do sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil). Failures are mapped onto the error kinds callers branch on.
func (c jsonClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperrors.Internal("Failed to encode request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Internal("Failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn(c.name+" request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		if isTimeout(err) {
			return apperrors.NetworkTimeout(fmt.Sprintf("The %s did not answer in time", c.name), err)
		}
		return apperrors.NetworkFailure(fmt.Sprintf("Could not reach the %s", c.name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return apperrors.NetworkTimeout(fmt.Sprintf("The %s did not answer in time", c.name), err)
		}
		return apperrors.NetworkFailure(fmt.Sprintf("Unreadable response from the %s", c.name), err)
	}
	return nil
}

func (c jsonClient) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := remoteMessage(raw)
	cause := fmt.Errorf("%s returned status %d: %s", c.name, resp.StatusCode, msg)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if msg == "" {
			msg = "Not found"
		}
		return apperrors.New(http.StatusNotFound, apperrors.KindNotFound, msg, cause)
	case resp.StatusCode == http.StatusConflict:
		if msg == "" {
			msg = "Conflict"
		}
		return apperrors.New(http.StatusConflict, apperrors.KindConflict, msg, cause)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = fmt.Sprintf("The %s rejected the request", c.name)
		}
		return apperrors.RemoteValidation(msg, cause)
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return apperrors.NetworkTimeout(fmt.Sprintf("The %s did not answer in time", c.name), cause)
	default:
		c.logger.Warn(c.name+" returned an error", zap.Int("status", resp.StatusCode), zap.String("body", msg))
		return apperrors.NetworkFailure(fmt.Sprintf("The %s failed (status %d)", c.name, resp.StatusCode), cause)
	}
}

func remoteMessage(raw []byte) string {
	var body remoteError
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, s := range []string{body.Error, body.Message, body.Detail} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
