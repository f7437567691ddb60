package cmd

import (
	"fmt"

	"github.com/smazurov/framenotify/internal/acquisition"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/nats"
	"github.com/spf13/cobra"
)

// CreateControlCmd creates the control command.
func CreateControlCmd() *cobra.Command {
	var url, cameraID, reason string
	var slots int

	cmd := &cobra.Command{
		Use:   "control {start|stop|resize}",
		Short: "Send an acquisition command over NATS",
		Long: `Publishes a start, stop or resize command to a running framenotify instance ` +
			`on its camera control subject.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{nats.ActionStart, nats.ActionStop, nats.ActionResize},
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := nats.ControlMessage{
				Action:   args[0],
				CameraID: cameraID,
				Reason:   reason,
			}
			if msg.Action == nats.ActionResize {
				if err := acquisition.ValidateSlots(slots); err != nil {
					return fmt.Errorf("--slots: %w", err)
				}
				msg.Slots = slots
			}

			logging.Initialize(logging.Config{Level: "info", Format: "text", Output: cmd.ErrOrStderr()})

			pub, err := nats.NewControlPublisher(url, logging.GetLogger("nats"))
			if err != nil {
				return fmt.Errorf("connect to %s: %w", url, err)
			}
			defer pub.Close()

			return pub.Send(msg)
		},
	}

	cmd.Flags().StringVar(&url, "url", fmt.Sprintf("nats://%s:%d", nats.DefaultHost, nats.DefaultPort), "NATS server URL")
	cmd.Flags().StringVar(&cameraID, "camera", "cam0", "Target camera identifier")
	cmd.Flags().IntVar(&slots, "slots", 0, "New ring buffer slot count (resize only)")
	cmd.Flags().StringVar(&reason, "reason", "", "Free-form reason recorded with the command")

	return cmd
}
