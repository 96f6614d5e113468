package projector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
)

// Session owns the HTTP conversation with the projector's control
// endpoint. The firmware uses a fixed cookie rather than issued
// session tokens, but still bounces requests to a login page when it
// decides the session is stale, so every request path has to detect
// that and re-authenticate.
//
// Thread Safety: all methods are safe for concurrent use. The
// generation counter ensures at most one re-authentication happens per
// detected expiry even when several requests observe it at once.
type Session struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *logging.Logger

	mu  sync.Mutex
	gen uint64
}

// SessionConfig carries the connection parameters for NewSession.
type SessionConfig struct {
	// BaseURL is the scheme://host:port root of the device, no
	// trailing slash.
	BaseURL string

	// Username and Password are sent to the login form. When both are
	// empty the login step is skipped; some firmware revisions accept
	// the fixed cookie alone.
	Username string
	Password string
}

// NewSession builds a Session over the given HTTP client. The client's
// CheckRedirect is overridden so login redirects surface as responses
// rather than being followed.
func NewSession(cfg SessionConfig, client *http.Client, logger *logging.Logger) *Session {
	if client == nil {
		client = &http.Client{}
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Session{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   client,
		logger:   logger,
	}
}

// Do sends a form body to the control endpoint and returns the raw
// response text. On a detected session expiry it re-authenticates once
// and retries once; a second expiry after re-login is returned as
// ErrSession.
//
// Transport failures are classified as ErrTransportTimeout or
// ErrTransport so callers can decide what is retryable.
func (s *Session) Do(ctx context.Context, body string) (string, error) {
	gen := s.generation()

	text, err := s.post(ctx, ControlPath, body)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ErrSessionExpired) {
		return "", err
	}

	if authErr := s.reauthenticate(ctx, gen); authErr != nil {
		return "", authErr
	}

	text, err = s.post(ctx, ControlPath, body)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return "", fmt.Errorf("%w: expired again after re-login: %w", ErrSession, err)
		}
		return "", err
	}
	return text, nil
}

// Reset discards session state so the next request authenticates
// fresh. Used after network-level failures where the device may have
// dropped the conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

func (s *Session) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// reauthenticate runs the login sequence unless another caller already
// did so since gen was captured.
func (s *Session) reauthenticate(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}

	if s.username == "" && s.password == "" {
		// No credentials configured. The fixed cookie is all we have,
		// so just advance the generation and let the retry go out.
		s.gen++
		return nil
	}

	form := url.Values{}
	form.Set("user", s.username)
	form.Set("password", s.password)

	s.logger.Debug("re-authenticating projector session", "url", s.baseURL)

	text, err := s.postLocked(ctx, LoginPath, form.Encode())
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return fmt.Errorf("%w: login rejected", ErrSession)
		}
		return fmt.Errorf("%w: login failed: %v", ErrSession, err)
	}
	_ = text

	s.gen++
	return nil
}

func (s *Session) post(ctx context.Context, path, body string) (string, error) {
	return s.postLocked(ctx, path, body)
}

// postLocked performs a single POST. It holds no Session state; the
// name records that it is safe to call with mu held.
func (s *Session) postLocked(ctx context.Context, path, body string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", SessionCookie)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", classifyTransportErr(err)
	}
	defer resp.Body.Close()

	// The firmware answers expired sessions with a redirect to the
	// login page rather than a status code it documents anywhere.
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if strings.Contains(strings.ToLower(loc), "login") {
			return "", ErrSessionExpired
		}
		return "", fmt.Errorf("%w: unexpected redirect to %q", ErrTransport, loc)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", classifyTransportErr(err)
	}
	text := string(raw)

	if looksLikeLoginPage(text) {
		return "", ErrSessionExpired
	}
	return text, nil
}

func classifyTransportErr(err error) error {
	var nerr interface{ Timeout() bool }
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
