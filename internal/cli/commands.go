package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gobeaver/cloudvfs"
)

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{msg: fmt.Sprintf("%s expects %d argument(s), got %d", cmd.Name(), n, len(args))}
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return &usageError{msg: fmt.Sprintf("%s expects at most %d argument(s), got %d", cmd.Name(), n, len(args))}
		}
		return nil
	}
}

// progress returns the options reporting transfer progress on the error
// stream, and a function ending the progress line.
func (a *App) progress(label string) ([]cloudvfs.Option, func()) {
	if a.quiet {
		return nil, func() {}
	}
	last := -1
	report := cloudvfs.WithProgress(func(p int) {
		if p == last {
			return
		}
		last = p
		fmt.Fprintf(a.ErrOut, "\r%s %3d%%", label, p)
	})
	return []cloudvfs.Option{report}, func() {
		if last >= 0 {
			fmt.Fprintln(a.ErrOut)
		}
	}
}

// ============================================================================
// Navigation
// ============================================================================

func (a *App) lsCmd() *cobra.Command {
	var (
		pattern string
		long    bool
	)
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the entries below a path",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			path := cloudvfs.Separator
			if len(args) == 1 {
				path = args[0]
			}

			var entries []cloudvfs.FileInfo
			if pattern != "" {
				entries, err = fs.ListMatching(cmd.Context(), path, pattern)
			} else {
				entries, err = fs.List(cmd.Context(), path)
			}
			if err != nil {
				return err
			}
			for _, e := range entries {
				a.printEntry(e, long)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "match", "m", "", "Only list names matching a glob pattern")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show size, modification time and flags")
	return cmd
}

func (a *App) printEntry(e cloudvfs.FileInfo, long bool) {
	name := e.Name
	if e.IsDir && !e.Placeholder && !e.Pseudo {
		name += cloudvfs.Separator
	}
	if !long {
		fmt.Fprintln(a.Out, name)
		return
	}

	kind := "-"
	switch {
	case e.Pseudo:
		kind = "?"
	case e.Provisional:
		kind = "p"
	case e.IsDir:
		kind = "d"
	case e.Archived:
		kind = "a"
	}
	modified := ""
	if !e.ModTime.IsZero() {
		modified = e.ModTime.UTC().Format("2006-01-02 15:04")
	}
	fmt.Fprintf(a.Out, "%s %12d %-16s %s\n", kind, e.Size, modified, name)
}

func (a *App) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show the properties of a blob",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			props, err := fs.Properties(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, f := range cloudvfs.ContentFields() {
				v, ok := f.Value(props)
				if !ok {
					continue
				}
				if t, isTime := v.(time.Time); isTime {
					v = t.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(a.Out, "%-20s %v\n", f.Name, v)
			}
			return nil
		},
	}
}

func (a *App) sumCmd() *cobra.Command {
	var (
		algorithm string
		verify    string
	)
	cmd := &cobra.Command{
		Use:   "sum <path>",
		Short: "Hash the content of a blob",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			alg := cloudvfs.ChecksumAlgorithm(strings.ToLower(algorithm))
			sum, err := fs.Checksum(cmd.Context(), args[0], alg)
			if err != nil {
				return err
			}
			if verify != "" {
				if !strings.EqualFold(sum, verify) {
					return fmt.Errorf("%s: checksum mismatch", args[0])
				}
				fmt.Fprintln(a.Out, "OK")
				return nil
			}
			fmt.Fprintf(a.Out, "%s  %s\n", sum, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", string(cloudvfs.ChecksumSHA256), "Hash algorithm (md5, sha1, sha256, sha512, crc32, xxhash)")
	cmd.Flags().StringVar(&verify, "verify", "", "Compare against an expected hex digest")
	return cmd
}

// ============================================================================
// Transfers
// ============================================================================

type transferFlags struct {
	force bool
	move  bool
}

func (f *transferFlags) register(cmd *cobra.Command, moveHelp string) {
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "Overwrite an existing destination")
	if moveHelp != "" {
		cmd.Flags().BoolVar(&f.move, "move", false, moveHelp)
	}
}

func (f *transferFlags) options() []cloudvfs.Option {
	return []cloudvfs.Option{
		cloudvfs.WithOverwrite(f.force),
		cloudvfs.WithDeleteSource(f.move),
	}
}

func (a *App) getCmd() *cobra.Command {
	var flags transferFlags
	cmd := &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "Download a blob to a local file",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			progress, done := a.progress(args[0])
			defer done()
			return fs.Download(cmd.Context(), args[0], args[1], append(flags.options(), progress...)...)
		},
	}
	flags.register(cmd, "Delete the blob after downloading")
	return cmd
}

func (a *App) putCmd() *cobra.Command {
	var (
		flags       transferFlags
		contentType string
		metadata    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a local file as a blob",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			opts := flags.options()
			if contentType != "" {
				opts = append(opts, cloudvfs.WithContentType(contentType))
			}
			if len(metadata) > 0 {
				opts = append(opts, cloudvfs.WithMetadata(metadata))
			}
			progress, done := a.progress(args[0])
			defer done()
			return fs.Upload(cmd.Context(), args[0], args[1], append(opts, progress...)...)
		},
	}
	flags.register(cmd, "Delete the local file after uploading")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type (derived from the file name when empty)")
	cmd.Flags().StringToStringVar(&metadata, "meta", nil, "Metadata to attach (key=value)")
	return cmd
}

func (a *App) cpCmd() *cobra.Command {
	var flags transferFlags
	cmd := &cobra.Command{
		Use:   "cp <source> <destination>",
		Short: "Copy a blob within the store",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			progress, done := a.progress(args[0])
			defer done()
			return fs.Copy(cmd.Context(), args[0], args[1], append(flags.options(), progress...)...)
		},
	}
	flags.register(cmd, "")
	return cmd
}

func (a *App) mvCmd() *cobra.Command {
	var flags transferFlags
	cmd := &cobra.Command{
		Use:   "mv <source> <destination>",
		Short: "Move a blob within the store",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			progress, done := a.progress(args[0])
			defer done()
			return fs.Move(cmd.Context(), args[0], args[1], append(flags.options(), progress...)...)
		},
	}
	flags.register(cmd, "")
	return cmd
}

// ============================================================================
// Organization
// ============================================================================

func (a *App) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a blob or a connection entry",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			outcome, err := fs.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s: %s\n", args[0], outcome)
			return nil
		},
	}
}

func (a *App) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory, or add a connection at the first level",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			return fs.MakeDirectory(cmd.Context(), args[0])
		},
	}
}

func (a *App) rmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <path>",
		Short: "Remove an empty directory, or a connection at the first level",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fsFor(cmd)
			if err != nil {
				return err
			}
			removed, err := fs.RemoveDirectory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(a.Out, "%s: nothing removed\n", args[0])
			}
			return nil
		},
	}
}

// ============================================================================
// Connections
// ============================================================================

func (a *App) connectCmd() *cobra.Command {
	var option string
	cmd := &cobra.Command{
		Use:   "connect [connection-string-or-url]",
		Short: "Register a storage connection",
		Long: `Register a storage connection.

With an argument the value is registered directly. It may be a connection
string, a storage or container SAS URL, or an unsigned URL, which uses
Azure AD sign-in. With --option one of the guided connect options runs and
prompts for its input. Without either the options are listed.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && option == "" {
				for i, opt := range cloudvfs.ConnectOptions {
					fmt.Fprintf(a.Out, "%d. %s\n", i+1, opt.Label)
				}
				return nil
			}

			s, err := a.sessionFor(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				name, err := s.Registry().AddConnection(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "connected %s\n", name)
				return nil
			}

			label, err := resolveOption(option)
			if err != nil {
				return err
			}
			names, err := s.OpenConnectOption(cmd.Context(), cloudvfs.Separator+cloudvfs.ConnectAccountName+cloudvfs.Separator+label)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintf(a.Out, "connected %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&option, "option", "o", "", "Connect option, by number or label")
	return cmd
}

// resolveOption accepts a 1-based option number or a label.
func resolveOption(option string) (string, error) {
	if n, err := strconv.Atoi(option); err == nil {
		if n < 1 || n > len(cloudvfs.ConnectOptions) {
			return "", &usageError{msg: fmt.Sprintf("connect option %d out of range", n)}
		}
		return cloudvfs.ConnectOptions[n-1].Label, nil
	}
	return option, nil
}

func (a *App) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <name>",
		Short: "Remove a registered connection",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.sessionFor(cmd)
			if err != nil {
				return err
			}
			removed, err := s.Registry().Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return &cloudvfs.PathError{Op: "disconnect", Path: args[0], Err: cloudvfs.ErrNotExist}
			}
			fmt.Fprintf(a.Out, "disconnected %s\n", args[0])
			return nil
		},
	}
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.Out, "cloudvfs version %s\n", Version)
		},
	}
}
