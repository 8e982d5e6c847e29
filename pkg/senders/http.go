/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: http.go
Description: HTTP form sender for the CrashGuard engine. Posts the report's field
map as a form-encoded body to a collector endpoint, treating any non-2xx response
as a delivery failure so the report stays queued for retry.
*/

package senders

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kleascm/crashguard/pkg/report"
)

// HTTPSender posts reports to a collector URL. The zero client uses the
// default transport; timeouts come from the per-send context deadline.
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSender creates a sender for the given collector endpoint.
func NewHTTPSender(endpoint string) *HTTPSender {
	return &HTTPSender{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

func (s *HTTPSender) Name() string {
	return "http"
}

// Send posts every populated field as one form value, keyed by field name.
func (s *HTTPSender) Send(ctx context.Context, record *report.Record) error {
	form := url.Values{}
	for _, field := range record.Fields() {
		form.Set(string(field), record.Get(field))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build collector request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("collector request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("collector rejected report: %s", response.Status)
	}
	return nil
}
