package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/auth"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newClientFromFlags().health(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(h)
			}
			printKV(h)
			return nil
		},
	}
}

func agentsCmd() *cobra.Command {
	ag := &cobra.Command{Use: "agents", Short: "Manage agents"}
	ag.AddCommand(agentsCreateCmd())
	ag.AddCommand(agentsGetCmd())
	return ag
}

func agentsCreateCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent (returns the existing one for a known kind)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newClientFromFlags().createAgent(cmd.Context(), model.AgentKind(kind))
			if err != nil {
				return err
			}
			return printAgent(a)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(model.AgentKindBizDev), "agent kind")
	return cmd
}

func agentsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <agent-id>",
		Short: "Show an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id: %w", err)
			}
			a, err := newClientFromFlags().getAgent(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printAgent(a)
		},
	}
}

func researchCmd() *cobra.Command {
	var projectID, ticketID string
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Research one prospect ticket or every new prospect of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := agents.ResearchParams{}
			var err error
			if params.ProjectID, err = uuid.Parse(projectID); err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			if ticketID != "" {
				id, err := uuid.Parse(ticketID)
				if err != nil {
					return fmt.Errorf("invalid --ticket: %w", err)
				}
				params.TicketID = &id
			}

			var report model.ResearchReport
			if err := runAction(cmd.Context(), agents.ActionResearchProspects, params, &report); err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(report)
			}
			printResearch(report)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&ticketID, "ticket", "", "ticket id (default: every new prospect)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func generateCmd() *cobra.Command {
	var ticketID, messageType, prompt string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an outreach draft for one ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(ticketID)
			if err != nil {
				return fmt.Errorf("invalid --ticket: %w", err)
			}
			params := agents.GenerateParams{
				TicketID:    id,
				MessageType: messageType,
				Context:     model.GenerationHints{Prompt: prompt},
			}

			var out agents.OutreachOutcome
			if err := runAction(cmd.Context(), agents.ActionGenerateOutreach, params, &out); err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(out)
			}
			printOutcome(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticketID, "ticket", "", "ticket id")
	cmd.Flags().StringVar(&messageType, "type", "initial_outreach", "message type")
	cmd.Flags().StringVar(&prompt, "prompt", "", "extra instructions for the writer")
	_ = cmd.MarkFlagRequired("ticket")
	return cmd
}

func batchCmd() *cobra.Command {
	var (
		projectID, messageType, prompt string
		status, category, priority     string
		lastContactDays                int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate drafts for every matching prospect of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			params := agents.BatchParams{
				ProjectID:   id,
				MessageType: messageType,
				Context:     model.GenerationHints{Prompt: prompt},
			}
			flags := cmd.Flags()
			if flags.Changed("status") {
				params.Filters.Status = &status
			}
			if flags.Changed("category") {
				params.Filters.Category = &category
			}
			if flags.Changed("priority") {
				params.Filters.Priority = &priority
			}
			if flags.Changed("last-contact-days") {
				params.Filters.LastContactDays = &lastContactDays
			}

			var out model.BatchGenerationResult
			if err := runAction(cmd.Context(), agents.ActionBatchGenerate, params, &out); err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(out)
			}
			printBatch(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&messageType, "type", "initial_outreach", "message type")
	cmd.Flags().StringVar(&prompt, "prompt", "", "extra instructions for the writer")
	cmd.Flags().StringVar(&status, "status", "", "ticket status filter")
	cmd.Flags().StringVar(&category, "category", "", "ticket category filter")
	cmd.Flags().StringVar(&priority, "priority", "", "ticket priority filter")
	cmd.Flags().IntVar(&lastContactDays, "last-contact-days", 0, "only tickets not contacted within this many days")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func feedbackCmd() *cobra.Command {
	var score float64
	cmd := &cobra.Command{
		Use:   "feedback <message-id>",
		Short: "Record how well a sent message performed (0..1)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid message id: %w", err)
			}
			if score < 0 || score > 1 {
				return errors.New("--score must be within [0,1]")
			}
			msg, err := newClientFromFlags().recordEffectiveness(cmd.Context(), id, score)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(msg)
			}
			fmt.Printf("recorded %.2f for message %s\n", score, msg.ID)
			return nil
		},
	}
	cmd.Flags().Float64Var(&score, "score", 0, "effectiveness score")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func keygenCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the Ed25519 key pair used to sign tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, pub, err := auth.WriteKeyPair(dir)
			if err != nil {
				return err
			}
			fmt.Printf("OUTREACH_JWT_PRIVATE_KEY=%s\nOUTREACH_JWT_PUBLIC_KEY=%s\n", priv, pub)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "./keys", "directory to write the key files to")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		keyPath string
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token from the server's private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyPath == "" {
				keyPath = os.Getenv("OUTREACH_JWT_PRIVATE_KEY")
			}
			if keyPath == "" {
				return errors.New("--key or OUTREACH_JWT_PRIVATE_KEY is required")
			}
			sub := uuid.New()
			if subject != "" {
				var err error
				if sub, err = uuid.Parse(subject); err != nil {
					return fmt.Errorf("invalid --subject: %w", err)
				}
			}
			issuer, err := auth.NewIssuer(keyPath, ttl)
			if err != nil {
				return err
			}
			tok, exp, err := issuer.IssueToken(sub, auth.Role(role), ttl)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(map[string]any{"token": tok, "subject": sub, "role": role, "expires_at": exp})
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "private key PEM (default: $OUTREACH_JWT_PRIVATE_KEY)")
	cmd.Flags().StringVar(&subject, "subject", "", "subject uuid (default: random)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "admin or operator")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// runAction executes action as the agent named by --agent.
func runAction(ctx context.Context, action string, params, out any) error {
	c := newClientFromFlags()
	agentID, err := c.resolveAgent(ctx, viper.GetString("agent"))
	if err != nil {
		return err
	}
	return c.execute(ctx, agentID, action, params, out)
}
