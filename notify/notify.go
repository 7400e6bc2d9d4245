// Package notify sends event announcements to members through the mail
// relay.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"iris-api/identity"
	"iris-api/models"
)

// Message is one bulk announcement.
type Message struct {
	EventID     string
	Title       string
	Description string
	HTML        string
	Recipients  []string
}

// Notifier delivers bulk mail.
type Notifier interface {
	SendBulk(ctx context.Context, msg Message) error
}

// HTTPNotifier posts messages as forms to a relay URL.
type HTTPNotifier struct {
	url    string
	client *http.Client
}

// NewHTTPNotifier creates a notifier for relayURL. A nil client gets a
// default with timeout.
func NewHTTPNotifier(relayURL string, client *http.Client, timeout time.Duration) (*HTTPNotifier, error) {
	if strings.TrimSpace(relayURL) == "" {
		return nil, errors.New("mail relay url is required")
	}
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPNotifier{url: relayURL, client: client}, nil
}

func (n *HTTPNotifier) SendBulk(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("html", msg.HTML)
	form.Set("description", msg.Description)
	form.Set("eventId", msg.EventID)
	form.Set("title", msg.Title)
	for i, r := range msg.Recipients {
		form.Set("users["+strconv.Itoa(i)+"]", r)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to mail relay: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}
	return nil
}

// Recipients returns the e-mail addresses of members who may sign up for ev:
// a verified address, a username, and the signup permission of one of the
// event's groups. Order follows profiles; duplicates are dropped.
func Recipients(profiles []identity.Profile, ev models.Event, policy identity.GroupPolicy) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range profiles {
		if !p.EmailVerified || p.Email == "" || strings.TrimSpace(p.Username()) == "" {
			continue
		}
		if !policy.CanSignUpFor(p.Permissions(), ev.GroupVisibility) {
			continue
		}
		if seen[p.Email] {
			continue
		}
		seen[p.Email] = true
		out = append(out, p.Email)
	}
	return out
}
