package ibkr_http

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

// Session manages the brokerage session behind the Client Portal API.
// The session is opened lazily on first use; concurrent callers share a
// single init via singleflight, so the gateway never sees two competing
// ssodh/init calls from this process.
type Session struct {
	client      *Client
	accountHint string // configured account id, empty = discover

	mu        sync.RWMutex
	accountID string
	opened    bool
	lastAlive time.Time

	sfGroup  singleflight.Group
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewSession(client *Client, accountHint string) *Session {
	return &Session{
		client:      client,
		accountHint: accountHint,
		stopCh:      make(chan struct{}),
	}
}

type ssodhInitResponse struct {
	Authenticated bool `json:"authenticated"`
	Connected     bool `json:"connected"`
}

type portfolioAccount struct {
	AccountID string `json:"accountId"`
}

// Ensure opens the brokerage session if needed and returns the account id.
func (s *Session) Ensure(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.opened {
		acct := s.accountID
		s.mu.RUnlock()
		return acct, nil
	}
	s.mu.RUnlock()

	acct, err, _ := s.sfGroup.Do("init", func() (any, error) {
		return s.open(ctx)
	})
	if err != nil {
		return "", err
	}
	return acct.(string), nil
}

func (s *Session) open(ctx context.Context) (string, error) {
	if !s.client.Configured() {
		return "", fmt.Errorf("broker credentials not configured")
	}

	body, status, err := s.client.Post(ctx, "/iserver/auth/ssodh/init", map[string]bool{
		"publish": true,
		"compete": true,
	})
	if err != nil {
		return "", fmt.Errorf("ssodh init: %w", err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("ssodh init: status=%d body=%s", status, string(body))
	}

	var init ssodhInitResponse
	if err := json.Unmarshal(body, &init); err == nil && !init.Authenticated {
		telemetry.Warnf("ibkr: session opened but not authenticated yet (connected=%v)", init.Connected)
	}

	acct := s.accountHint
	if acct == "" {
		acct, err = s.discoverAccount(ctx)
		if err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	s.accountID = acct
	s.opened = true
	s.lastAlive = time.Now()
	s.mu.Unlock()

	telemetry.Infof("ibkr: brokerage session open, account %s", acct)
	return acct, nil
}

func (s *Session) discoverAccount(ctx context.Context) (string, error) {
	body, status, err := s.client.Get(ctx, "/portfolio/accounts")
	if err != nil {
		return "", fmt.Errorf("portfolio accounts: %w", err)
	}
	if status != 200 {
		return "", fmt.Errorf("portfolio accounts: status=%d body=%s", status, string(body))
	}

	var accounts []portfolioAccount
	if err := json.Unmarshal(body, &accounts); err != nil {
		return "", fmt.Errorf("unmarshal accounts: %w", err)
	}
	if len(accounts) == 0 || accounts[0].AccountID == "" {
		return "", fmt.Errorf("no accounts returned")
	}
	return accounts[0].AccountID, nil
}

// StartKeepalive tickles the gateway at the given interval so the
// brokerage session survives idle periods. No-op until the session opens.
func (s *Session) StartKeepalive(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go s.keepaliveLoop(interval)
}

func (s *Session) keepaliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			opened := s.opened
			s.mu.RUnlock()
			if !opened {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_, status, err := s.client.Post(ctx, "/tickle", nil)
			cancel()
			if err != nil || status != 200 {
				telemetry.Warnf("ibkr: keepalive tickle failed (status=%d err=%v)", status, err)
				continue
			}

			s.mu.Lock()
			s.lastAlive = time.Now()
			s.mu.Unlock()
			telemetry.Debugf("ibkr: session tickled")
		case <-s.stopCh:
			return
		}
	}
}

func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Status describes the session for health reporting.
func (s *Session) Status() string {
	if !s.client.Configured() {
		return "not_configured"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.opened {
		return "configured"
	}
	return fmt.Sprintf("connected (account %s)", s.accountID)
}
