package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ebookviewer/internal/domain"
)

type LoginResult struct {
	User         *domain.User `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

type RedeemResult struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	ExpiryDate   time.Time `json:"expiryDate"`
	DurationDays int       `json:"durationDays"`
}

type UploadRequest struct {
	Title    string
	Author   string
	IsSample bool
	FileName string
	Content  io.Reader
}

func decodeInto[T any](res *Result) (T, error) {
	var v T
	if err := res.Decode(&v); err != nil {
		return v, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

func call[T any](ctx context.Context, s *Session, path string, opts *RequestOptions) (T, error) {
	res, err := s.Do(ctx, path, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeInto[T](res)
}

// public issues a request without credentials and turns non-2xx into *HTTPError.
func (s *Session) public(ctx context.Context, method, path string, payload any) (*Result, error) {
	opts := &RequestOptions{Method: method, JSON: payload}
	m, body, header, err := opts.build()
	if err != nil {
		return nil, err
	}
	res, err := s.send(ctx, m, path, body, header, "")
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return res, res.httpError()
	}
	return res, nil
}

// Login stores the issued tokens. A 401 yields ErrInvalidCredentials and
// leaves any existing session as it was.
func (s *Session) Login(ctx context.Context, username, password string) (*domain.User, error) {
	res, err := s.public(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		if res != nil && res.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}

	out, err := decodeInto[LoginResult](res)
	if err != nil {
		return nil, err
	}
	name, err := Username(out.Token)
	if err != nil {
		if out.User == nil {
			return nil, fmt.Errorf("login response: %w", err)
		}
		name = out.User.Username
	}
	if err := s.store.Save(Credentials{
		AccessToken:  out.Token,
		RefreshToken: out.RefreshToken,
		Username:     name,
	}); err != nil {
		return nil, err
	}
	if out.User != nil {
		s.cacheUser(out.User)
	}
	s.log.Info("logged in", zap.String("username", name))
	return out.User, nil
}

func (s *Session) Signup(ctx context.Context, username, password, email string) (*domain.User, error) {
	res, err := s.public(ctx, http.MethodPost, "/signup", map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	})
	if err != nil {
		return nil, err
	}
	out, err := decodeInto[struct {
		User *domain.User `json:"user"`
	}](res)
	if err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout tells the server (best effort) and clears local state. Calling it on
// an empty session is not an error.
func (s *Session) Logout(ctx context.Context) error {
	creds, err := s.store.Load()
	if err == nil && creds.RefreshToken != "" {
		if _, err := s.public(ctx, http.MethodPost, "/logout", map[string]string{"refreshToken": creds.RefreshToken}); err != nil {
			s.log.Debug("server logout failed", zap.Error(err))
		}
	}
	s.logout()
	return nil
}

// CurrentUser returns the signed-in user, served from a short-lived cache.
func (s *Session) CurrentUser(ctx context.Context) (*domain.User, error) {
	if u, ok := s.cachedUser(); ok {
		return u, nil
	}
	u, err := call[*domain.User](ctx, s, "/user", nil)
	if err != nil {
		return nil, err
	}
	s.cacheUser(u)
	return u, nil
}

// Status returns the user with any lapsed premium already cleared.
func (s *Session) Status(ctx context.Context) (*domain.User, error) {
	out, err := call[struct {
		User *domain.User `json:"user"`
	}](ctx, s, "/api/status", nil)
	if err != nil {
		return nil, err
	}
	s.cacheUser(out.User)
	return out.User, nil
}

func (s *Session) Books(ctx context.Context) ([]domain.Book, error) {
	return call[[]domain.Book](ctx, s, "/books", nil)
}

func (s *Session) PublicBooks(ctx context.Context) ([]domain.Book, error) {
	res, err := s.public(ctx, http.MethodGet, "/public-books", nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]domain.Book](res)
}

func (s *Session) Book(ctx context.Context, id string) (*domain.Book, error) {
	return call[*domain.Book](ctx, s, "/book/"+url.PathEscape(id), nil)
}

func (s *Session) UploadBook(ctx context.Context, in UploadRequest) (*domain.Book, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":    in.Title,
		"author":   in.Author,
		"isSample": strconv.FormatBool(in.IsSample),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", in.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, in.Content); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", mw.FormDataContentType())
	out, err := call[struct {
		Book *domain.Book `json:"book"`
	}](ctx, s, "/upload-book", &RequestOptions{Method: http.MethodPost, Body: buf.Bytes(), Header: header})
	if err != nil {
		return nil, err
	}
	return out.Book, nil
}

func (s *Session) Upgrade(ctx context.Context) (*domain.User, error) {
	out, err := call[struct {
		User *domain.User `json:"user"`
	}](ctx, s, "/upgrade", &RequestOptions{Method: http.MethodPost})
	if err != nil {
		return nil, err
	}
	s.cacheUser(out.User)
	return out.User, nil
}

func (s *Session) RedeemCoupon(ctx context.Context, code string) (*RedeemResult, error) {
	out, err := call[*RedeemResult](ctx, s, "/redeem-coupon", &RequestOptions{
		Method: http.MethodPost,
		JSON:   map[string]string{"couponCode": code},
	})
	if err != nil {
		return nil, err
	}
	s.forgetUser()
	return out, nil
}

func (s *Session) GenerateCoupon(ctx context.Context) (*domain.Coupon, error) {
	return call[*domain.Coupon](ctx, s, "/generate-coupon", &RequestOptions{Method: http.MethodPost})
}

func (s *Session) Coupons(ctx context.Context) ([]domain.Coupon, error) {
	return call[[]domain.Coupon](ctx, s, "/coupons", nil)
}

func (s *Session) Users(ctx context.Context) ([]domain.User, error) {
	return call[[]domain.User](ctx, s, "/users", nil)
}

func (s *Session) DeleteUser(ctx context.Context, username string) error {
	_, err := s.Do(ctx, "/users/"+url.PathEscape(username), &RequestOptions{Method: http.MethodDelete})
	return err
}

func (s *Session) DemoteUser(ctx context.Context, username string) error {
	_, err := s.Do(ctx, "/users/"+url.PathEscape(username)+"/demote", &RequestOptions{Method: http.MethodPut})
	return err
}
