package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ebookviewer/internal/pkg/logger"
	"ebookviewer/internal/session"
)

const usage = `usage: ebookctl [flags] <command> [args]

commands:
  signup <username> <password> [email]
  login <username> <password>
  logout
  whoami
  status
  books
  public-books
  book <id>
  upload [-title T] [-author A] [-sample] <file>
  upgrade
  redeem <code>
  generate-coupon
  coupons
  users
  delete-user <username>
  demote <username>
`

func main() {
	server := flag.String("server", envOr("EBOOKVIEWER_URL", "http://localhost:5001"), "API base url")
	credentials := flag.String("credentials", defaultCredentialsPath(), "credentials file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	lg, err := logger.New(logger.Config{Level: level, Pretty: true, App: "ebookctl"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	s, err := session.New(session.Options{
		BaseURL:  *server,
		Store:    session.NewFileStore(*credentials),
		Logger:   lg,
		OnLogout: func() { lg.Debug("credentials cleared", zap.String("file", *credentials)) },
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	out, err := run(ctx, s, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		report(err)
		os.Exit(1)
	}
	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}
}

func run(ctx context.Context, s *session.Session, cmd string, args []string) (any, error) {
	switch cmd {
	case "signup":
		if len(args) < 2 {
			return nil, errUsage
		}
		email := ""
		if len(args) > 2 {
			email = args[2]
		}
		return s.Signup(ctx, args[0], args[1], email)
	case "login":
		if len(args) != 2 {
			return nil, errUsage
		}
		return s.Login(ctx, args[0], args[1])
	case "logout":
		return nil, s.Logout(ctx)
	case "whoami":
		return s.CurrentUser(ctx)
	case "status":
		return s.Status(ctx)
	case "books":
		return s.Books(ctx)
	case "public-books":
		return s.PublicBooks(ctx)
	case "book":
		if len(args) != 1 {
			return nil, errUsage
		}
		return s.Book(ctx, args[0])
	case "upload":
		return upload(ctx, s, args)
	case "upgrade":
		return s.Upgrade(ctx)
	case "redeem":
		if len(args) != 1 {
			return nil, errUsage
		}
		return s.RedeemCoupon(ctx, args[0])
	case "generate-coupon":
		return s.GenerateCoupon(ctx)
	case "coupons":
		return s.Coupons(ctx)
	case "users":
		return s.Users(ctx)
	case "delete-user":
		if len(args) != 1 {
			return nil, errUsage
		}
		return nil, s.DeleteUser(ctx, args[0])
	case "demote":
		if len(args) != 1 {
			return nil, errUsage
		}
		return nil, s.DemoteUser(ctx, args[0])
	}
	return nil, errUsage
}

func upload(ctx context.Context, s *session.Session, args []string) (any, error) {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	title := fs.String("title", "", "book title (defaults to the file name)")
	author := fs.String("author", "", "book author")
	sample := fs.Bool("sample", false, "free sample visible to everyone")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() != 1 {
		return nil, errUsage
	}

	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return s.UploadBook(ctx, session.UploadRequest{
		Title:    *title,
		Author:   *author,
		IsSample: *sample,
		FileName: filepath.Base(path),
		Content:  f,
	})
}

var errUsage = errors.New("invalid command or arguments")

func report(err error) {
	var httpErr *session.HTTPError
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
	case errors.Is(err, session.ErrAuthenticationRequired):
		fmt.Fprintln(os.Stderr, "not logged in (or session expired): run ebookctl login")
	case errors.Is(err, session.ErrInvalidCredentials):
		fmt.Fprintln(os.Stderr, "invalid username or password")
	case errors.As(err, &httpErr):
		fmt.Fprintf(os.Stderr, "error %d: %s\n", httpErr.Status, httpErr.Message)
		if httpErr.Details != nil {
			fmt.Fprintf(os.Stderr, "details: %v\n", httpErr.Details)
		}
	default:
		fmt.Fprintln(os.Stderr, err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "ebookviewer", "credentials.json")
}
