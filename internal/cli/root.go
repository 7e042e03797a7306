// Package cli wires the reviewgate commands: the interactive review TUI and
// the headless status, set and token commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reviewgate/internal/config"
	"reviewgate/internal/credential"
	"reviewgate/internal/forge"
	"reviewgate/internal/review"
	"reviewgate/internal/tui"
)

const version = "0.1.0"

// Exit codes.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var (
	// errNoToken is returned by headless commands when no token is stored.
	errNoToken = errors.New("no access token stored; run `reviewgate token set` first")
	errUsage   = errors.New("invalid usage")
)

// app carries what every command needs once flags are parsed.
type app struct {
	v        *viper.Viper
	settings config.Settings
	logger   *log.Logger
	closeLog func() error

	// Overridable in tests.
	openStore func(config.Settings) (credential.Store, error)
	opener    func(config.Settings) forge.Opener
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
}

func newApp() *app {
	return &app{
		v:         config.NewViper(),
		openStore: credential.Open,
		opener: func(s config.Settings) forge.Opener {
			return forge.GitHubOpener(forge.GitHubOptions{BaseURL: s.APIURL, Timeout: s.Timeout})
		},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Run executes the root command and returns an exit code.
func Run() int {
	return execute(newApp(), os.Args[1:])
}

func execute(a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	a.shutdown()
	return exitCode(err)
}

// shutdown closes the log file. Logging is gone by then, so a failure is
// reported on stderr.
func (a *app) shutdown() {
	if a.closeLog == nil {
		return
	}
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(a.stderr, "reviewgate: close log: %v\n", err)
	}
	a.closeLog = nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errNoToken), errors.Is(err, review.ErrRemote):
		return ExitAuthError
	case errors.Is(err, config.ErrMissingParam), errors.Is(err, config.ErrInvalidSetting), errors.Is(err, errUsage):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "reviewgate [review-url]",
		Short: "Review a build artifact and set its GitHub commit status",
		Long: "reviewgate shows a build or deploy artifact under review and lets the reviewer\n" +
			"mark the commit's status context as pending, accepted or rejected.\n\n" +
			"The review parameters come from the query string of review-url (or a bare\n" +
			"query string), overridden by REVIEWGATE_* environment variables and flags.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context(), args)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default <user config dir>/reviewgate/config.yaml)")
	pf.String(config.ParamContext, "", "commit status context to set")
	pf.String(config.ParamOwner, "", "repository owner")
	pf.String(config.ParamRepo, "", "repository name")
	pf.String(config.ParamCommitSHA, "", "commit SHA under review")
	pf.String(config.ParamSubjectURL, "", "URL of the artifact under review")
	pf.String(config.ParamReviewMessage, "", "instructions shown to the reviewer (markdown)")
	pf.String(config.KeyAPIURL, config.Default().APIURL, "GitHub REST API root")
	pf.Duration(config.KeyTimeout, config.Default().Timeout, "timeout per GitHub request")
	pf.String(config.KeyCredentialStore, config.StoreAuto, "token storage: auto, system or file")
	pf.String(config.KeyKeyringService, config.Default().KeyringService, "keyring service name the token is stored under")
	pf.String(config.KeyKeyringDir, "", "directory of the file keyring")
	pf.String(config.KeyKeyringPasswordEnv, config.Default().KeyringPasswordEnv, "environment variable holding the file keyring password")
	pf.String(config.KeyLogFile, "", "log file, - for stderr (default <user cache dir>/reviewgate/reviewgate.log)")
	pf.String(config.KeyLogLevel, config.Default().LogLevel, "log level: debug, info, warn or error")
	pf.String(config.KeyGlamourStyle, config.Default().GlamourStyle, "review message style: auto, dark, light or notty")

	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newSetCmd(a))
	root.AddCommand(newTokenCmd(a))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print reviewgate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "reviewgate version %s\n", version)
		},
	})
	return root
}

// setup binds flags, reads the config file and sets up logging.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if err := config.ReadConfigFile(a.v, a.v.GetString("config")); err != nil {
		return err
	}

	s, err := config.SettingsFrom(a.v)
	if err != nil {
		return err
	}
	a.settings = s

	logger, closeLog, err := newLogger(s)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

// loadReview resolves the review parameters from the optional review URL
// argument overlaid with config file, environment and flags.
func (a *app) loadReview(args []string) (config.Review, error) {
	var raw string
	if len(args) > 0 {
		raw = args[0]
	}
	base, err := config.ParseQuery(raw)
	if err != nil {
		return config.Review{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	r := base.Overlay(config.ReviewFrom(a.v))
	if err := r.Validate(); err != nil {
		return config.Review{}, err
	}
	return r, nil
}

func (a *app) newModel(args []string) (*review.Model, error) {
	r, err := a.loadReview(args)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(a.settings)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("review loaded", "owner", r.Owner, "repo", r.Repo, "sha", r.CommitSHA, "context", r.Context, "store", store.Backend())
	return review.New(r, a.opener(a.settings), store, a.logger), nil
}

func (a *app) runTUI(ctx context.Context, args []string) error {
	m, err := a.newModel(args)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	style := a.settings.GlamourStyle
	if style == "auto" {
		// Resolve before bubbletea owns the terminal; querying it later races
		// with the input reader.
		style = "light"
		if lipgloss.HasDarkBackground() {
			style = "dark"
		}
	}

	p := tea.NewProgram(tui.New(ctx, m, tui.Options{GlamourStyle: style}), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
