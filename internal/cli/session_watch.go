package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/finboard/internal/client"
	"github.com/rshade/finboard/internal/config"
	"github.com/rshade/finboard/internal/logging"
	"github.com/rshade/finboard/internal/session"
	"github.com/rshade/finboard/internal/tui"
)

// ErrNoCredentials is returned when neither a token nor a username is available.
var ErrNoCredentials = errors.New("no credentials: set api.token or pass --username")

// SessionWatchFlags holds the flags of the session watch command.
type SessionWatchFlags struct {
	Username      string
	PasswordStdin bool
	Plain         bool
}

// NewSessionWatchCmd creates the session watch command.
func NewSessionWatchCmd() *cobra.Command {
	var flags SessionWatchFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Log in and keep the session countdown in sync with the backend",
		Long: `Logs in (or reuses the configured token), then keeps a local session
countdown synchronized with the backend at a jittered interval. Press r to
extend the session and q to quit.`,
		Example: `  # Log in interactively
  finboard session watch --username alice

  # Read the password from stdin
  echo "$PASSWORD" | finboard session watch --username alice --password-stdin --plain`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionWatch(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Username, "username", "u", "", "login name (default from config)")
	cmd.Flags().BoolVar(&flags.PasswordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVar(&flags.Plain, "plain", false, "print session events instead of the interactive view")

	return cmd
}

func runSessionWatch(cmd *cobra.Command, flags SessionWatchFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := globalConfig()
	if err != nil {
		return err
	}
	if flags.Username != "" {
		cfg.Session.Username = flags.Username
	}

	bus := session.NewBus(logging.ComponentLogger(logger, "session"))
	defer bus.Close()

	api, err := newAPIClient(cfg, bus, false)
	if err != nil {
		return err
	}
	if err := checkServer(ctx, api, cfg.API.MinServerVersion); err != nil {
		return err
	}

	initial, err := authenticate(ctx, cmd, api, cfg, flags)
	if err != nil {
		return err
	}

	keeper := session.NewKeeper(api, bus, session.KeeperConfig{
		SyncInterval: cfg.Session.SyncInterval,
		Jitter:       cfg.Session.SyncJitter,
	}, logging.ComponentLogger(logger, "keeper"))
	defer keeper.Close()

	ticks, unsubscribeTicks := keeper.Countdown().Subscribe()
	defer unsubscribeTicks()
	events, unsubscribeEvents := bus.Subscribe(
		session.SignalForcedLogout,
		session.SignalLoginRequired,
		session.SignalSessionExpired,
		session.SignalSessionExtended,
	)
	defer unsubscribeEvents()

	if err := keeper.Start(ctx, initial); err != nil {
		return err
	}

	if !flags.Plain && isTerminal(os.Stdout) && isTerminal(os.Stdin) {
		model := tui.NewCountdownModel(ticks, events, func() error {
			return keeper.Extend(ctx)
		})
		_, err = tea.NewProgram(model, tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	return watchPlain(ctx, cmd.OutOrStdout(), events)
}

// authenticate returns the initial session lifetime, logging in when no
// token is configured.
func authenticate(
	ctx context.Context,
	cmd *cobra.Command,
	api *client.Client,
	cfg *config.Config,
	flags SessionWatchFlags,
) (int, error) {
	if api.Token() != "" {
		return api.SessionTTL(ctx)
	}
	if cfg.Session.Username == "" {
		return 0, ErrNoCredentials
	}

	password, err := readPassword(cmd, flags.PasswordStdin)
	if err != nil {
		return 0, err
	}
	seconds, err := api.Login(ctx, cfg.Session.Username, password)
	if err != nil {
		return 0, fmt.Errorf("login failed: %w", err)
	}
	logger.Info().Ctx(ctx).Str("username", cfg.Session.Username).Msg("logged in")
	if seconds > 0 {
		return seconds, nil
	}
	return api.SessionTTL(ctx)
}

// readPassword reads a password from stdin, without echo on a terminal.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin && isTerminal(os.Stdin) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(data), nil
	}
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

// watchPlain prints session events until the session ends or ctx is done.
func watchPlain(ctx context.Context, w io.Writer, events <-chan session.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			line := string(e.Signal)
			if e.Reason != "" {
				line += ": " + e.Reason
			}
			if e.Remaining > 0 {
				line += fmt.Sprintf(" (%s left)", tui.FormatRemaining(e.Remaining))
			}
			_, _ = fmt.Fprintln(w, line)
			if e.Signal != session.SignalSessionExtended {
				return nil
			}
		}
	}
}
