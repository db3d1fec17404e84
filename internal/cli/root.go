// Package cli implements the cloudvfs command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobeaver/cloudvfs"
	"github.com/gobeaver/cloudvfs/driver/azure"
	"github.com/gobeaver/cloudvfs/internal/logging"
)

var (
	// Version is set at build time via ldflags.
	// Example: go build -ldflags "-X github.com/gobeaver/cloudvfs/internal/cli.Version=1.0.0"
	Version = "dev"
)

// App carries the session and the streams shared by all commands.
type App struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// NewSession builds the session on first use. Commands that never
	// touch the store do not trigger it.
	NewSession func(ctx context.Context, prompter cloudvfs.ConnectionPrompter) (*cloudvfs.Session, error)

	quiet    bool
	readOnly bool
	session  *cloudvfs.Session
}

// NewApp returns an App wired to the process streams and a session built
// from environment config.
func NewApp() *App {
	return &App{
		In:         os.Stdin,
		Out:        os.Stdout,
		ErrOut:     os.Stderr,
		NewSession: sessionFromEnv,
	}
}

func sessionFromEnv(ctx context.Context, prompter cloudvfs.ConnectionPrompter) (*cloudvfs.Session, error) {
	cfg, err := cloudvfs.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewConsole(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cloudvfs.NewFromConfig(ctx, cfg,
		cloudvfs.WithLogger(logger),
		cloudvfs.WithCredentialProvider(&azure.BrowserCredentials{}),
		cloudvfs.WithPrompter(prompter),
	)
}

func (a *App) sessionFor(cmd *cobra.Command) (*cloudvfs.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	s, err := a.NewSession(cmd.Context(), &linePrompter{in: a.In, out: a.ErrOut})
	if err != nil {
		return nil, err
	}
	a.session = s
	return s, nil
}

// fsFor returns the file system the store commands operate on.
func (a *App) fsFor(cmd *cobra.Command) (cloudvfs.FileSystem, error) {
	s, err := a.sessionFor(cmd)
	if err != nil {
		return nil, err
	}
	if a.readOnly {
		return cloudvfs.NewReadOnlyFileSystem(s, cloudvfs.WithAllowCreateDir(true)), nil
	}
	return s, nil
}

// NewRootCmd builds the command tree bound to a.
func (a *App) NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cloudvfs",
		Short: "Browse Azure Blob Storage as a file system",
		Long: `cloudvfs presents Azure Blob Storage as a virtual file system.

Paths have the form /<connection>/<container>/<blob>. The first level lists
the registered connections, the second their containers, and deeper levels
the blob hierarchy split on "/".

Connections are added with "cloudvfs connect" and persisted in the file
named by BEAVER_CLOUDVFS_CONNECTIONS_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.ErrOut)
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress progress output")
	root.PersistentFlags().BoolVar(&a.readOnly, "read-only", false, "Refuse any command that changes the store")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	root.AddCommand(
		a.lsCmd(),
		a.statCmd(),
		a.sumCmd(),
		a.getCmd(),
		a.putCmd(),
		a.cpCmd(),
		a.mvCmd(),
		a.rmCmd(),
		a.mkdirCmd(),
		a.rmdirCmd(),
		a.connectCmd(),
		a.disconnectCmd(),
		a.versionCmd(),
	)
	return root
}

// Run executes the command line and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	root := a.NewRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if errors.Is(err, cloudvfs.ErrCopyIntegrity) {
		fmt.Fprintf(a.ErrOut, "FATAL: %v\nThe store reported a completed copy that cannot be found. The source was left in place.\n", err)
	} else if err != nil {
		fmt.Fprintf(a.ErrOut, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// Exit statuses outside the result code range.
const (
	exitUsage     = 64
	exitIntegrity = 70
)

// ExitCode maps an operation error onto a process exit code. Each result
// code gets its own exit status so scripts can tell them apart.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var usage *usageError
	if errors.As(err, &usage) {
		return exitUsage
	}
	if errors.Is(err, cloudvfs.ErrCopyIntegrity) {
		return exitIntegrity
	}
	return int(cloudvfs.ResultCodeOf(err))
}

// Execute is the entry point for the CLI. It should be called from main.go.
func Execute() {
	os.Exit(NewApp().Run(context.Background(), os.Args[1:]))
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}
