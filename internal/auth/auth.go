// Package auth obtains, refreshes and persists the OAuth token used to talk
// to Google Calendar.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// CalendarScope is the OAuth scope needed to manage calendars and events.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// ErrNoToken is returned when no token is stored and interactive
// authorization is not allowed.
var ErrNoToken = errors.New("no OAuth token stored, run the authorize command first")

// Credentials holds the current token, refreshes it on demand and writes
// every new token back to the store. It implements oauth2.TokenSource.
type Credentials struct {
	mu     sync.Mutex
	config *oauth2.Config
	store  TokenStore
	token  *oauth2.Token
}

// NewCredentials loads the stored token. It returns ErrNoToken when the
// store is empty.
func NewCredentials(oauthConfig *oauth2.Config, store TokenStore) (*Credentials, error) {
	token, err := store.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return nil, ErrNoToken
	}
	return &Credentials{config: oauthConfig, store: store, token: token}, nil
}

// Expired reports whether the access token is missing or about to expire.
func (c *Credentials) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.token.Valid()
}

// Refresh exchanges the refresh token for a new access token and persists
// it.
func (c *Credentials) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Credentials) refreshLocked(ctx context.Context) error {
	if c.token.RefreshToken == "" {
		return fmt.Errorf("token has no refresh token")
	}

	// An expired copy forces the oauth2 source to hit the token endpoint.
	stale := &oauth2.Token{RefreshToken: c.token.RefreshToken, Expiry: time.Unix(1, 0)}
	token, err := c.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = c.token.RefreshToken
	}

	if err := c.store.SaveToken(token); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}
	c.token = token
	return nil
}

// Token implements oauth2.TokenSource.
func (c *Credentials) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.token.Valid() {
		if err := c.refreshLocked(context.Background()); err != nil {
			return nil, err
		}
	}
	return c.token, nil
}

// HTTPClient returns an HTTP client authorized with these credentials.
func (c *Credentials) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c)
}

// startLocalServer starts a local HTTP server to receive the OAuth callback.
// Returns the redirect URL, a channel for the authorization code, and a channel for errors.
// Uses port 8080 by default, or a random port if 8080 is unavailable.
func startLocalServer() (string, <-chan string, <-chan error, error) {
	// Try port 8080 first, fall back to random port if unavailable
	listener, err := net.Listen("tcp", "127.0.0.1:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code != "" {
			fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			codeChan <- code
		} else {
			errMsg := r.URL.Query().Get("error")
			if errMsg != "" {
				errorChan <- fmt.Errorf("authorization error: %s", errMsg)
				fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
			} else {
				fmt.Fprintf(w, "<html><body><h1>No authorization code received</h1></body></html>")
				errorChan <- fmt.Errorf("no authorization code received")
			}
		}
		go func() {
			time.Sleep(1 * time.Second)
			_ = server.Shutdown(context.Background())
		}()
	})
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errorChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	return redirectURL, codeChan, errorChan, nil
}

// Authorize runs the interactive OAuth flow: it prints the consent URL to
// out, waits for the browser callback on a local server, exchanges the code
// and saves the token.
func Authorize(ctx context.Context, oauthConfig *oauth2.Config, store TokenStore, out io.Writer) error {
	redirectURL, codeChan, errorChan, err := startLocalServer()
	if err != nil {
		return err
	}
	oauthConfig.RedirectURL = redirectURL

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintf(out, "Starting local server on %s\n", redirectURL)
	if redirectURL != "http://127.0.0.1:8080" {
		fmt.Fprintf(out, "Note: Port 8080 was unavailable. Make sure to add %s to your authorized redirect URIs in Google Cloud Console.\n", redirectURL)
	}
	fmt.Fprintln(out, "\nPlease visit the following URL to authorize the application:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "\nWaiting for authorization...")

	var code string
	select {
	case code = <-codeChan:
	case err := <-errorChan:
		return fmt.Errorf("failed to receive authorization code: %w", err)
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authorization timeout: no response received within 5 minutes")
	case <-ctx.Done():
		return ctx.Err()
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := store.SaveToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Fprintln(out, "Authorization successful!")
	return nil
}
