package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gobeaver/vfskit"
	"github.com/gobeaver/vfskit/internal/hotplug"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// cardSlots maps a marker file per removable drive, "sd.card" for "SD:".
func cardSlots(r *vfskit.Registry) map[string]string {
	slots := make(map[string]string)
	for _, d := range r.Drives() {
		if d.Fixed() {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(d.Prefix(), ":")) + ".card"
		slots[name] = d.Prefix()
	}
	return slots
}

// setPresence inserts or ejects the medium behind a FAT drive.
func setPresence(r *vfskit.Registry, prefix string, present bool) {
	for _, d := range r.Drives() {
		if d.Prefix() != prefix {
			continue
		}
		if b, ok := d.Backend().(*vfskit.FATBackend); ok {
			if present {
				b.Medium().Insert()
			} else {
				b.Medium().Eject()
			}
		}
	}
}

func cardsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cards DIR",
		Short: "Mount removable drives while DIR holds their marker file (sd.card for SD:)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			slots := cardSlots(r)
			if len(slots) == 0 {
				return fmt.Errorf("no removable drives in the drive table")
			}

			log := logrus.StandardLogger()
			det, err := hotplug.New(r, hotplug.Config{
				Dir:   args[0],
				Slots: slots,
				OnPresence: func(prefix string, present bool) {
					setPresence(r, prefix, present)
					fmt.Fprintf(cmd.OutOrStdout(), "%s present=%t\n", prefix, present)
				},
				Lock: &a.mu,
				Log:  log,
			})
			if err != nil {
				return err
			}
			defer det.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log.Infof("[VFS] Watching %s for %d card slots", args[0], len(slots))
			if err := det.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
