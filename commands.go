package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/k2tzumi/new-emoji-webhook/internal/webhook"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the Slack access token with auth.test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Slack.AccessToken == "" {
				return errors.New("ACCESS_TOKEN is not set")
			}

			var opts []slack.Option
			if cfg.Slack.APIURL != "" {
				opts = append(opts, slack.OptionAPIURL(strings.TrimSuffix(cfg.Slack.APIURL, "/")+"/"))
			}
			resp, err := slack.New(cfg.Slack.AccessToken, opts...).AuthTestContext(cmd.Context())
			if err != nil {
				return fmt.Errorf("auth.test: %w", err)
			}

			logger.Info("access token is valid",
				"team", resp.Team,
				"team_id", resp.TeamID,
				"user", resp.User,
				"bot_id", resp.BotID,
				"url", resp.URL)
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var threadTS string
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Post one message to the incoming webhook",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := webhook.NewClient(cfg.Slack.IncomingWebhooksURL, webhook.WithLogger(logger))
			delivered, err := client.Invoke(cmd.Context(), strings.Join(args, " "), threadTS)
			if err != nil {
				return err
			}
			if !delivered {
				return errors.New("incoming webhook did not answer ok")
			}
			logger.Info("message posted")
			return nil
		},
	}
	cmd.Flags().StringVar(&threadTS, "thread", "", "thread_ts to reply in")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.Redacted())
		},
	}
}
