package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/module/listener"
	"github.com/pwhiting/Translate/tools"

	"github.com/spf13/cobra"
)

func newListenCmd() *cobra.Command {
	var (
		baseURL  string
		clientID string
		level    string
	)
	c := &cobra.Command{
		Use:     "listen <meeting-code> <language>",
		Short:   "Print a meeting's translations as they arrive",
		Example: "  translate listen ABC123 es --url http://localhost:8080",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetLevel(level)
			meeting := strings.ToUpper(strings.TrimSpace(args[0]))
			lang := strings.ToLower(strings.TrimSpace(args[1]))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "=== Translation Session ===\nMeeting: %s\nLanguage: %s\nListening for translations...\n", meeting, lang)
			l := listener.New(listener.Config{
				BaseURL:     baseURL,
				MeetingCode: meeting,
				Language:    lang,
				ClientID:    clientID,
			}, out)
			err := l.Run(ctx)
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "Stopping translation listener...")
				return nil
			}
			return err
		},
	}
	c.Flags().StringVar(&baseURL, "url", tools.GetEnv("TRANSLATE_API_URL", "http://localhost:8080"), "api base url")
	c.Flags().StringVar(&clientID, "client-id", "", "reuse a client id from an earlier join")
	c.Flags().StringVar(&level, "log-level", "warn", "log level")
	c.SetErr(os.Stderr)
	return c
}
