package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/meridianlabs/agentcore/internal/mailer"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send account notifications",
}

var (
	notifyName  string
	notifyToken string
)

// stdoutTransport prints deliveries instead of sending them. Real
// deployments inject an SMTP or API transport.
type stdoutTransport struct{}

func (stdoutTransport) Send(ctx context.Context, p *mailer.Payload) error {
	fmt.Printf("--- To: %s\nSubject: %s\n\n%s", p.To, p.Subject, p.Text)
	return nil
}

func newMailer() *mailer.Mailer {
	renderer, err := mailer.NewTemplateRenderer()
	if err != nil {
		fatal("failed to build renderer: %v", err)
	}

	policy := mailer.DefaultPolicy()
	if cfg.Mailer.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Mailer.MaxAttempts
	}
	if cfg.Mailer.BaseDelay > 0 {
		policy.BaseDelay = cfg.Mailer.BaseDelay
	}

	return mailer.New(renderer, stdoutTransport{}, cfg.Mailer.Domain,
		mailer.WithPolicy(policy),
		mailer.WithConcurrency(cfg.Mailer.Concurrency),
		mailer.WithLogger(logrus.WithField("component", "mailer")))
}

var notifyWelcomeCmd = &cobra.Command{
	Use:   "welcome <email>",
	Short: "Send the welcome / verification notification",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		user := &mailer.User{
			Email:                  args[0],
			Name:                   notifyName,
			EmailVerificationToken: notifyToken,
		}
		if err := newMailer().SendWelcome(context.Background(), user); err != nil {
			fatal("failed to send welcome: %v", err)
		}
	},
}

var notifyResetCmd = &cobra.Command{
	Use:   "reset <email>",
	Short: "Send the password reset notification",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		user := &mailer.User{
			Email:      args[0],
			Name:       notifyName,
			ResetToken: notifyToken,
		}
		if err := newMailer().SendPasswordReset(context.Background(), user); err != nil {
			fatal("failed to send reset: %v", err)
		}
	},
}

func init() {
	notifyCmd.PersistentFlags().StringVar(&notifyName, "name", "", "Recipient display name")
	notifyCmd.PersistentFlags().StringVar(&notifyToken, "token", "", "Verification or reset token")

	notifyCmd.AddCommand(notifyWelcomeCmd)
	notifyCmd.AddCommand(notifyResetCmd)
}
