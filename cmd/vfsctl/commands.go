package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/gobeaver/vfskit"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vfsctl",
		Short:         "Run filesystem commands against vfskit drives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.drivesFile, "drives", a.drivesFile, "drive table file (YAML, TOML or JSON)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", a.logLevel, "log level")
	root.PersistentFlags().IntVar(&a.copyBuffer, "copy-buffer", a.copyBuffer, "copy chunk size in bytes")

	root.AddCommand(
		drivesCmd(a),
		dirCmd(a),
		findCmd(a),
		simpleCmd(a, "mkdir PATH", "Create a directory", 1, func(r *vfskit.Registry, args []string) error {
			return r.Mkdir(args[0])
		}),
		simpleCmd(a, "del PATH", "Remove a file or empty directory", 1, func(r *vfskit.Registry, args []string) error {
			return r.Remove(args[0])
		}),
		simpleCmd(a, "ren OLD NEW", "Rename within one drive", 2, func(r *vfskit.Registry, args []string) error {
			return r.Rename(args[0], args[1])
		}),
		simpleCmd(a, "copy SRC DST", "Copy a file, across drives if needed", 2, func(r *vfskit.Registry, args []string) error {
			return r.Copy(args[0], args[1])
		}),
		simpleCmd(a, "move SRC DST", "Move a file, across drives if needed", 2, func(r *vfskit.Registry, args []string) error {
			return r.Move(args[0], args[1])
		}),
		simpleCmd(a, "format DRIVE", "Write an empty filesystem", 1, func(r *vfskit.Registry, args []string) error {
			return r.Format(args[0])
		}),
		simpleCmd(a, "mount DRIVE", "Mount a drive", 1, func(r *vfskit.Registry, args []string) error {
			return r.Mount(args[0], true)
		}),
		simpleCmd(a, "unmount DRIVE", "Unmount a drive", 1, func(r *vfskit.Registry, args []string) error {
			return r.Mount(args[0], false)
		}),
		typeCmd(a),
		writeCmd(a),
		crcCmd(a),
		sumCmd(a),
		statCmd(a),
		labelCmd(a),
		dfCmd(a),
		cardsCmd(a),
		shellCmd(a),
	)
	return root
}

func simpleCmd(a *app, use, short string, nargs int, fn func(*vfskit.Registry, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			return fn(r, args)
		},
	}
}

func drivesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List the drive table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DRIVE\tTYPE\tINDEX\tFIXED\tREAD-ONLY")
			for _, d := range r.Drives() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%t\n", d.Prefix(), d.Type(), d.Index(), d.Fixed(), d.ReadOnly())
			}
			return w.Flush()
		},
	}
}

func printInfo(w io.Writer, info vfskit.Info) {
	size := humanize.Bytes(uint64(info.Size))
	if info.IsDir() {
		size = "<DIR>"
	}
	mod := "-"
	if !info.Modified.IsZero() {
		mod = info.Modified.Format(timeLayout)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Attr, size, mod, info.Name)
}

func dirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dir [PATH] [PATTERN]",
		Short: "List a directory; without PATH, list the mounted drives",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			path, pattern := "/", "*"
			if len(args) > 0 {
				path = args[0]
			}
			if len(args) > 1 {
				pattern = args[1]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			d, info, err := r.FindFirst(path, pattern)
			for err == nil {
				printInfo(w, info)
				info, err = d.FindNext()
			}
			if d != nil {
				d.Close()
			}
			if !errors.Is(err, io.EOF) {
				return err
			}
			return w.Flush()
		},
	}
}

func findCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find ROOT PATTERN",
		Short: "Search a tree with a glob ('**' crosses directories)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			found, err := r.Find(args[0], args[1])
			if err != nil {
				return err
			}
			for _, f := range found {
				fmt.Fprintln(cmd.OutOrStdout(), f.Path)
			}
			return nil
		},
	}
}

func typeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "type PATH",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			f, err := r.Open(args[0], vfskit.OpenRead)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(cmd.OutOrStdout(), f)
			return err
		},
	}
}

func writeCmd(a *app) *cobra.Command {
	var appendMode bool
	cmd := &cobra.Command{
		Use:   "write PATH TEXT...",
		Short: "Write a line of text to a file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			flags := vfskit.OpenWrite | vfskit.OpenCreate | vfskit.OpenTruncate
			if appendMode {
				flags = vfskit.OpenWrite | vfskit.OpenCreate | vfskit.OpenAppend
			}
			f, err := r.Open(args[0], flags)
			if err != nil {
				return err
			}
			if _, err := f.WriteString(strings.Join(args[1:], " ") + "\n"); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().BoolVarP(&appendMode, "append", "a", false, "append instead of replacing")
	return cmd
}

func crcCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crc PATH",
		Short: "Print the STM32 CRC of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			crc, err := r.CRC(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%08X\n", crc)
			return nil
		},
	}
}

func sumCmd(a *app) *cobra.Command {
	var algo string
	cmd := &cobra.Command{
		Use:   "sum PATH",
		Short: "Print a checksum of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			sum, err := r.Checksum(args[0], vfskit.ChecksumAlgorithm(algo))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&algo, "algo", string(vfskit.ChecksumSHA256), "md5, sha1, sha256, sha512, crc32 or xxhash")
	return cmd
}

func statCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat PATH",
		Short: "Print the metadata of a file, directory or drive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			info, err := r.Stat(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			fmt.Fprintf(w, "Name:\t%s\n", info.Name)
			fmt.Fprintf(w, "Size:\t%d (%s)\n", info.Size, humanize.Bytes(uint64(info.Size)))
			fmt.Fprintf(w, "Attr:\t%s\n", info.Attr)
			fmt.Fprintf(w, "Inode:\t%08X\n", info.Inode)
			fmt.Fprintf(w, "Blocks:\t%d x %d\n", info.Blocks, info.BlockSize)
			if !info.Created.IsZero() {
				fmt.Fprintf(w, "Created:\t%s\n", info.Created.Format(timeLayout))
			}
			if !info.Modified.IsZero() {
				fmt.Fprintf(w, "Modified:\t%s\n", info.Modified.Format(timeLayout))
			}
			return w.Flush()
		},
	}
}

func labelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "label DRIVE [LABEL]",
		Short: "Print or set a volume label",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				drive := args[0]
				if !strings.HasSuffix(drive, ":") {
					drive += ":"
				}
				return r.SetLabel(drive + args[1])
			}
			label, err := r.Label(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}
}

func dfCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "df",
		Short: "Show capacity and free space of mounted drives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DRIVE\tTYPE\tSIZE\tFREE\tLABEL")
			for _, d := range r.Drives() {
				if !d.Mounted() {
					fmt.Fprintf(w, "%s\t%s\t-\t-\t(not mounted)\n", d.Prefix(), d.Type())
					continue
				}
				size, err := r.FsSize(d.Prefix())
				if err != nil {
					return err
				}
				free, err := r.FsFree(d.Prefix())
				if err != nil {
					return err
				}
				label, _ := r.Label(d.Prefix())
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Prefix(), d.Type(),
					humanize.Bytes(uint64(size)), humanize.Bytes(uint64(free)), label)
			}
			return w.Flush()
		},
	}
}

func shellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Read commands from standard input against one registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.registry(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				fields := strings.Fields(sc.Text())
				if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
					continue
				}
				switch fields[0] {
				case "exit", "quit":
					return nil
				case "shell":
					continue
				}
				sub := newRootCmd(a)
				sub.SetArgs(fields)
				sub.SetOut(out)
				sub.SetErr(cmd.ErrOrStderr())
				if err := sub.Execute(); err != nil {
					fmt.Fprintln(out, "Error:", err)
				}
			}
			return sc.Err()
		},
	}
}
