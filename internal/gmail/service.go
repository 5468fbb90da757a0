// Package gmail adapts Google's Gmail and People APIs to the interfaces
// the rest of mailwarden consumes: message store, draft/send surface,
// filter CRUD, and contact-group directory.
package gmail

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	peoplev1 "google.golang.org/api/people/v1"

	"github.com/ppiankov/mailwarden/internal/model"
)

// Client bundles the Gmail and People services behind one value. It
// satisfies the message-store, filter, and group-directory interfaces
// consumed elsewhere.
type Client struct {
	gmail  *gmailv1.Service
	people *peoplev1.Service
}

// NewClient authenticates against Google using client credentials and a
// cached token under credentialsDir, running the loopback OAuth flow if
// no valid token exists.
func NewClient(ctx context.Context, credentialsDir string) (*Client, error) {
	credPath := filepath.Join(credentialsDir, "credentials.json")
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credPath, err)
	}

	cfg, err := google.ConfigFromJSON(b,
		gmailv1.GmailModifyScope,
		gmailv1.GmailSettingsBasicScope,
		gmailv1.GmailComposeScope,
		peoplev1.ContactsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}

	tokFile := filepath.Join(credentialsDir, "token.json")
	tok, err := readToken(tokFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, cfg)
		if err != nil {
			return nil, &model.AuthError{Service: "google", Err: err}
		}
		if err := saveToken(tokFile, tok); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.Client(ctx, tok)
	gsvc, err := gmailv1.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	psvc, err := peoplev1.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create people service: %w", err)
	}
	return &Client{gmail: gsvc, people: psvc}, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// tokenFromWeb runs a loopback server to capture the auth code,
// falling back to manual paste if the redirect never arrives.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	type result struct{ code string }
	resCh := make(chan result, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err == nil {
		port := ln.Addr().(*net.TCPAddr).Port
		cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", port)

		mux := http.NewServeMux()
		srv := &http.Server{ReadHeaderTimeout: 5 * time.Second, Handler: mux}
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "missing 'code' parameter", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case resCh <- result{code: code}:
			default:
			}
			go func() { _ = srv.Shutdown(context.Background()) }()
		})
		go func() { _ = srv.Serve(ln) }()
		defer func() { _ = srv.Shutdown(context.Background()) }()

		authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Fprintln(os.Stderr, "Open this URL in your browser to authorize mailwarden:")
		fmt.Fprintln(os.Stderr, authURL)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-resCh:
			return cfg.Exchange(ctx, strings.TrimSpace(r.code))
		case <-time.After(120 * time.Second):
			fmt.Fprintln(os.Stderr, "Timeout waiting for redirect; paste the auth code instead.")
		}
	}

	fmt.Fprint(os.Stderr, "> ")
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, fmt.Errorf("empty authorization code")
	}
	code := strings.TrimSpace(sc.Text())
	if code == "" {
		return nil, fmt.Errorf("empty authorization code")
	}
	return cfg.Exchange(ctx, code)
}
