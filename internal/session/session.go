package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ebookviewer/internal/domain"
)

const (
	DefaultUserCacheTTL = 5 * time.Minute
	defaultTimeout      = 30 * time.Second
	refreshTimeout      = defaultTimeout
)

type Options struct {
	BaseURL    string
	Store      CredentialStore
	HTTPClient *http.Client
	Logger     *zap.Logger
	// OnLogout runs after credentials are cleared, e.g. to send the user to a login view.
	OnLogout     func()
	UserCacheTTL time.Duration
	Now          func() time.Time
}

// Session owns one client's credentials and issues authenticated requests
// on their behalf. It is safe for concurrent use.
type Session struct {
	baseURL  string
	store    CredentialStore
	client   *http.Client
	log      *zap.Logger
	onLogout func()
	userTTL  time.Duration
	now      func() time.Time

	refreshes singleflight.Group

	mu       sync.Mutex
	user     *domain.User
	cachedAt time.Time
}

func New(opts Options) (*Session, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("session: base url is required")
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.UserCacheTTL <= 0 {
		opts.UserCacheTTL = DefaultUserCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		store:    opts.Store,
		client:   opts.HTTPClient,
		log:      opts.Logger,
		onLogout: opts.OnLogout,
		userTTL:  opts.UserCacheTTL,
		now:      opts.Now,
	}, nil
}

func (s *Session) Store() CredentialStore { return s.store }

// RequestOptions describes one call. The body is buffered so the request can
// be replayed after a token refresh.
type RequestOptions struct {
	Method string
	// JSON is encoded as the request body when set.
	JSON   any
	Body   []byte
	Header http.Header
}

func (o *RequestOptions) build() (method string, body []byte, header http.Header, err error) {
	method = http.MethodGet
	header = http.Header{}
	if o == nil {
		return method, nil, header, nil
	}
	if o.Method != "" {
		method = o.Method
	}
	for k, v := range o.Header {
		header[k] = append([]string(nil), v...)
	}
	body = o.Body
	if o.JSON != nil {
		if body, err = json.Marshal(o.JSON); err != nil {
			return "", nil, nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	if body != nil && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	return method, body, header, nil
}

// Result is a 2xx response.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// IsJSON reports whether the response declared a JSON content type.
func (r *Result) IsJSON() bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

func (r *Result) Decode(v any) error {
	if !r.IsJSON() {
		return fmt.Errorf("response is %q, not json", r.Header.Get("Content-Type"))
	}
	return json.Unmarshal(r.Body, v)
}

func (r *Result) Text() string { return string(r.Body) }

func (r *Result) ok() bool { return r.Status >= 200 && r.Status < 300 }

// httpError builds the error for a non-2xx result from the server envelope.
func (r *Result) httpError() *HTTPError {
	e := &HTTPError{Status: r.Status, Message: fmt.Sprintf("HTTP error! status: %d", r.Status)}
	if r.IsJSON() {
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Details any    `json:"details"`
		}
		if err := json.Unmarshal(r.Body, &envelope); err == nil {
			switch {
			case envelope.Error != "":
				e.Message = envelope.Error
			case envelope.Message != "":
				e.Message = envelope.Message
			}
			e.Details = envelope.Details
		}
		return e
	}
	if text := strings.TrimSpace(string(r.Body)); text != "" {
		e.Message = text
	}
	return e
}

// Do issues an authenticated request against path. An expired access token is
// refreshed first; a 401 answer gets exactly one refresh and retry. Any
// authentication failure clears the session before the error is returned.
func (s *Session) Do(ctx context.Context, path string, opts *RequestOptions) (*Result, error) {
	method, body, header, err := opts.build()
	if err != nil {
		return nil, err
	}

	creds, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	token := creds.AccessToken
	if token == "" {
		s.logout()
		return nil, ErrAuthenticationRequired
	}

	if IsExpired(token, s.now()) {
		s.log.Debug("access token expired, refreshing", zap.String("path", path))
		if token, err = s.Refresh(ctx); err != nil {
			return nil, authFailure(err)
		}
	}

	res, err := s.send(ctx, method, path, body, header, token)
	if err != nil {
		return nil, err
	}

	if res.Status == http.StatusUnauthorized {
		s.log.Debug("request unauthorized, refreshing once", zap.String("path", path))
		if token, err = s.Refresh(ctx); err != nil {
			return nil, authFailure(err)
		}
		if res, err = s.send(ctx, method, path, body, header, token); err != nil {
			return nil, err
		}
		if res.Status == http.StatusUnauthorized {
			s.logout()
			return nil, authRequired(res.httpError())
		}
	}

	if !res.ok() {
		return nil, res.httpError()
	}
	return res, nil
}

func authFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return authRequired(err)
}

func (s *Session) send(ctx context.Context, method, path string, body []byte, header http.Header, token string) (*Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Result{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// Refresh exchanges the stored refresh token for a new access token and stores
// it. The refresh token itself is left untouched. Overlapping calls share one
// network round trip, which runs detached from any single caller's ctx and is
// bounded by refreshTimeout. A caller whose ctx ends stops waiting and gets
// ctx.Err(); the others still receive the shared result. On failure the
// session is logged out.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	ch := s.refreshes.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(rctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	creds, err := s.store.Load()
	if err != nil {
		return "", err
	}
	if creds.RefreshToken == "" {
		s.logout()
		return "", ErrNoRefreshToken
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	body, _ := json.Marshal(map[string]string{"refreshToken": creds.RefreshToken})

	res, err := s.send(ctx, http.MethodPost, "/refresh-token", body, header, "")
	if err != nil {
		s.logout()
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if !res.ok() {
		s.logout()
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, res.httpError())
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(res.Body, &out); err != nil || out.Token == "" {
		s.logout()
		return "", fmt.Errorf("%w: response carried no token", ErrRefreshFailed)
	}
	if err := s.store.SetAccessToken(out.Token); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	s.log.Debug("access token refreshed", zap.String("username", creds.Username))
	return out.Token, nil
}

// logout clears every credential and the cached user, then fires OnLogout.
func (s *Session) logout() {
	if err := s.store.Clear(); err != nil {
		s.log.Warn("clear credentials failed", zap.Error(err))
	}
	s.forgetUser()
	s.log.Info("session cleared")
	if s.onLogout != nil {
		s.onLogout()
	}
}

func (s *Session) cacheUser(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.cachedAt = s.now()
	s.mu.Unlock()
}

func (s *Session) cachedUser() (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.now().Sub(s.cachedAt) >= s.userTTL {
		return nil, false
	}
	return s.user, true
}

func (s *Session) forgetUser() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}
