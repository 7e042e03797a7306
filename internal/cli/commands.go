package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reviewgate/internal/model"
	"reviewgate/internal/review"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [review-url]",
		Short: "Print the current commit status of the review context",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newModel(args)
			if err != nil {
				return err
			}
			if err := loadStatus(cmd.Context(), m); err != nil {
				return err
			}
			a.printStatus(m.Snapshot(), m.Config().Context)
			return nil
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "set <pending|accept|reject> [review-url]",
		Short: "Set the commit status of the review context",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			m, err := a.newModel(args[1:])
			if err != nil {
				return err
			}
			if err := loadStatus(cmd.Context(), m); err != nil {
				return err
			}
			if cmd.Flags().Changed("description") {
				m.SetDescriptionDraft(description)
			}
			if err := m.SetStatus(cmd.Context(), kind); err != nil {
				return err
			}
			a.printStatus(m.Snapshot(), m.Config().Context)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "status description (default: keep the current one)")
	return cmd
}

// loadStatus refreshes m and fails unless a status was loaded.
func loadStatus(ctx context.Context, m *review.Model) error {
	if !m.Snapshot().HasToken {
		return errNoToken
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.Refresh(ctx)
}

func (a *app) printStatus(s review.Snapshot, statusContext string) {
	st := s.Remote.Status
	fmt.Fprintf(a.stdout, "context:     %s\n", statusContext)
	fmt.Fprintf(a.stdout, "state:       %s\n", st.State)
	fmt.Fprintf(a.stdout, "description: %s\n", s.Description())
	if st.TargetURL != "" {
		fmt.Fprintf(a.stdout, "target:      %s\n", st.TargetURL)
	}
}

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored GitHub access token",
	}

	var token string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store a GitHub access token (read from stdin unless --token is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("token") {
				line, err := bufio.NewReader(a.stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token from stdin: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("%w: token cannot be empty", errUsage)
			}
			store, err := a.openStore(a.settings)
			if err != nil {
				return err
			}
			if err := store.Set(token); err != nil {
				return err
			}
			a.logger.Info("token saved", "backend", store.Backend())
			fmt.Fprintf(a.stdout, "token saved to the %s keyring\n", store.Backend())
			return nil
		},
	}
	setCmd.Flags().StringVar(&token, "token", "", "token value (visible in shell history; prefer stdin)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored GitHub access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(a.settings)
			if err != nil {
				return err
			}
			if err := store.Delete(); err != nil {
				return err
			}
			a.logger.Info("token removed", "backend", store.Backend())
			fmt.Fprintf(a.stdout, "token removed from the %s keyring\n", store.Backend())
			return nil
		},
	}

	cmd.AddCommand(setCmd, clearCmd)
	return cmd
}
