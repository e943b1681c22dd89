// Package guidectl implements the audioguide command line client: an
// interactive visitor guide and a handful of staff commands.
package guidectl

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/guide"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"github.com/caarlos0/env/v11"
)

const usage = `usage: guidectl [flags] <command> [args]

commands:
  visit                 start the visitor guide (reads commands from stdin)
  login                 sign in as staff (-email, -password)
  logout                sign out
  whoami                show the signed-in staff account
  visitors              list visitors (-q filters by name or phone)
  reactivate <id>       grant a visitor a fresh 3 hour session
  deactivate <id>       revoke a visitor's access`

// Config holds guidectl configuration.
type Config struct {
	ServerURL string
	StateDir  string
	LogLevel  string
	Timeout   time.Duration
	Locale    string

	Email    string
	Password string
	Query    string

	Command string
	Args    []string
}

type envConfig struct {
	ServerURL string        `env:"AUDIOGUIDE_SERVER_URL" envDefault:"http://localhost:8080"`
	StateDir  string        `env:"AUDIOGUIDE_STATE_DIR"`
	LogLevel  string        `env:"GUIDECTL_LOG_LEVEL" envDefault:"warn"`
	Timeout   time.Duration `env:"GUIDECTL_TIMEOUT" envDefault:"30s"`
	Email     string        `env:"AUDIOGUIDE_EMAIL"`
	Password  string        `env:"AUDIOGUIDE_PASSWORD"`
	Lang      string        `env:"LANG"`
	LCAll     string        `env:"LC_ALL"`
}

// ParseConfig parses flags into a Config. environ overrides the process
// environment when non-nil.
func ParseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var envCfg envConfig
	if err := env.ParseWithOptions(&envCfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		ServerURL: envCfg.ServerURL,
		StateDir:  envCfg.StateDir,
		LogLevel:  envCfg.LogLevel,
		Timeout:   envCfg.Timeout,
		Email:     envCfg.Email,
		Password:  envCfg.Password,
		Locale:    envCfg.LCAll,
	}
	if cfg.Locale == "" {
		cfg.Locale = envCfg.Lang
	}
	if cfg.StateDir == "" {
		cfg.StateDir = guide.DefaultStateDir()
	}

	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fmt.Fprintln(fs.Output(), "\nflags:")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "audioguide server URL (default: AUDIOGUIDE_SERVER_URL)")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the stored visitor and staff sessions")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level written to stderr")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout for staff commands")
	fs.StringVar(&cfg.Email, "email", cfg.Email, "staff email for login")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "staff password for login (default: AUDIOGUIDE_PASSWORD)")
	fs.StringVar(&cfg.Query, "q", "", "filter for the visitors command")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, stderrors.New("a command is required\n\n" + usage)
	}
	cfg.Command = rest[0]
	cfg.Args = rest[1:]
	return cfg, nil
}

// Run executes the configured command.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	log, err := logger.NewWithWriter(cfg.LogLevel, logger.FormatConsole, errOut)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	persister, err := guide.NewFilePersister(cfg.StateDir)
	if err != nil {
		return err
	}
	client := guide.NewClient(cfg.ServerURL, log)

	if cfg.Command == "visit" {
		return runVisit(ctx, client, persister, log, domain.PreferredLanguage(cfg.Locale), in, out)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	admin := guide.NewAdminSession(client, persister, log)
	defer admin.Close()

	switch cfg.Command {
	case "login":
		return login(ctx, admin, cfg, out)
	case "logout":
		if _, err := admin.Init(ctx); err != nil {
			log.WithError(err).Warn("Could not verify staff session")
		}
		if err := admin.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out.")
		return nil
	case "whoami":
		user, err := admin.Init(ctx)
		if err != nil {
			return describe(err)
		}
		if user == nil {
			fmt.Fprintln(out, "Not signed in.")
			return nil
		}
		fmt.Fprintf(out, "%s (%s)\n", user.Email, user.ID)
		return nil
	case "visitors":
		return listVisitors(ctx, client, admin, cfg.Query, out)
	case "reactivate", "deactivate":
		if len(cfg.Args) != 1 {
			return fmt.Errorf("usage: guidectl %s <visitor-id>", cfg.Command)
		}
		return setVisitorActive(ctx, client, admin, cfg.Args[0], cfg.Command == "reactivate", out)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cfg.Command, usage)
	}
}

func login(ctx context.Context, admin *guide.AdminSession, cfg Config, out io.Writer) error {
	if strings.TrimSpace(cfg.Email) == "" || cfg.Password == "" {
		return stderrors.New("login requires -email and -password (or AUDIOGUIDE_EMAIL and AUDIOGUIDE_PASSWORD)")
	}
	user, err := admin.SignIn(ctx, strings.TrimSpace(cfg.Email), cfg.Password)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(out, "Signed in as %s.\n", user.Email)
	return nil
}

func requireStaff(ctx context.Context, admin *guide.AdminSession) (string, error) {
	user, err := admin.Init(ctx)
	if err != nil {
		return "", describe(err)
	}
	if user == nil {
		return "", stderrors.New("not signed in; run guidectl login first")
	}
	return admin.Token(), nil
}

func listVisitors(ctx context.Context, client *guide.Client, admin *guide.AdminSession, query string, out io.Writer) error {
	token, err := requireStaff(ctx, admin)
	if err != nil {
		return err
	}

	rows, err := client.ListVisitors(ctx, token, query)
	if err != nil {
		return describe(err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No visitors found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tSTATE\tEXPIRES")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.ID, row.FullName, row.PhoneNumber, row.AccessState, formatTime(row.ExpiresAt))
	}
	return tw.Flush()
}

func setVisitorActive(ctx context.Context, client *guide.Client, admin *guide.AdminSession, id string, active bool, out io.Writer) error {
	token, err := requireStaff(ctx, admin)
	if err != nil {
		return err
	}

	row, err := client.SetVisitorActive(ctx, token, id, active)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(out, "%s is now %s (expires %s).\n", row.FullName, row.AccessState, formatTime(row.ExpiresAt))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// describe turns an API error into the message a person should read
func describe(err error) error {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return err
	}
	if vi, ok := appErr.Details["message_vi"].(string); ok && vi != "" {
		return fmt.Errorf("%s\n%s", appErr.Message, vi)
	}
	return stderrors.New(appErr.Message)
}
