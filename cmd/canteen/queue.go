package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/mmynk/canteen/internal/middleware"
	"github.com/mmynk/canteen/pkg/api"
	"github.com/mmynk/canteen/pkg/api/apiconnect"
)

// newQueueCommand prints a cafeteria's queue, once or on every change.
func newQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue <cafeteria-id>",
		Short: "Show the order queue and ETAs of a cafeteria",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			token, _ := cmd.Flags().GetString("token")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			watch, _ := cmd.Flags().GetBool("watch")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if token == "" {
				if email == "" {
					return errors.New("either --token or --email/--password is required")
				}
				var err error
				if token, err = login(ctx, server, email, password); err != nil {
					return err
				}
			}

			client := apiconnect.NewOrderServiceClient(http.DefaultClient, server,
				connect.WithInterceptors(middleware.BearerToken(token)))
			req := &api.GetQueueSnapshotRequest{CafeteriaID: args[0]}
			out := cmd.OutOrStdout()

			if !watch {
				resp, err := client.GetQueueSnapshot(ctx, connect.NewRequest(req))
				if err != nil {
					return err
				}
				printSnapshot(out, resp.Msg.Snapshot)
				return nil
			}

			stream, err := client.WatchQueue(ctx, connect.NewRequest(&api.WatchQueueRequest{CafeteriaID: args[0]}))
			if err != nil {
				return err
			}
			defer stream.Close()
			for stream.Receive() {
				printSnapshot(out, stream.Msg().Snapshot)
			}
			if err := stream.Err(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("server", envOr("CANTEEN_SERVER", "http://127.0.0.1:8080"), "Server base URL")
	cmd.Flags().String("token", os.Getenv("CANTEEN_TOKEN"), "Bearer token")
	cmd.Flags().String("email", "", "Login email, when no token is given")
	cmd.Flags().String("password", os.Getenv("CANTEEN_PASSWORD"), "Login password")
	cmd.Flags().Bool("watch", false, "Keep printing snapshots as the queue changes")
	return cmd
}

func login(ctx context.Context, server, email, password string) (string, error) {
	client := apiconnect.NewAuthServiceClient(http.DefaultClient, server)
	resp, err := client.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: email, Password: password}))
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return resp.Msg.Token, nil
}

func printSnapshot(w io.Writer, s *api.QueueSnapshot) {
	fmt.Fprintf(w, "%s  %s  queue=%d  avg_wait=%.1fm\n",
		time.Unix(s.GeneratedAt, 0).Format(time.TimeOnly), s.CafeteriaID, s.QueueLength, s.AverageWaitMinutes)
	for _, e := range s.PerOrderEta {
		switch {
		case e.Ready:
			fmt.Fprintf(w, "  %-36s  ready for pickup\n", e.OrderID)
		case e.Bulk:
			fmt.Fprintf(w, "  %-36s  #%d  ~%.0fm  (bulk)\n", e.OrderID, e.Rank+1, e.EtaMinutes)
		default:
			fmt.Fprintf(w, "  %-36s  #%d  ~%.0fm\n", e.OrderID, e.Rank+1, e.EtaMinutes)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
