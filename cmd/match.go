package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/logger"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/matchmaking"
)

var matchCmd = &cobra.Command{
	Use:   "match <user-id>",
	Short: "Run a matchmaking pass for one user from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer log.Sync() //nolint:errcheck

		config, err := getConfig()
		if err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}

		ctx := cmd.Context()

		components, err := buildApp(ctx, config, log)
		if err != nil {
			return err
		}
		defer components.store.Close()

		userID := args[0]

		result, err := components.engine.Run(ctx, userID)
		switch {
		case errors.Is(err, matchmaking.ErrProfileNotFound):
			fmt.Printf("user %s has no profile yet\n", userID)
			return nil
		case errors.Is(err, matchmaking.ErrEmptyPopulation):
			fmt.Println("no other profiles to match against")
			return nil
		case err != nil:
			return fmt.Errorf("matchmaking run: %w", err)
		}

		printScores(result)

		if result.TopMatch == nil {
			fmt.Println("no match selected")
			return nil
		}

		if explanation, err := components.engine.Explain(ctx, userID, result.TopMatch.UserID); err == nil {
			fmt.Println(explanation)
		} else {
			log.Warn("match explanation unavailable", zap.Error(err))
		}

		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Create a private match channel for %s and %s", userID, result.TopMatch.UserID),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			// The operator declined. Nothing else to do.
			return nil
		}

		return createMatchChannel(ctx, components, userID, result.TopMatch.UserID)
	},
}

// createMatchChannel performs the same setup the assistant does after a chat
// confirmation: shared category, private channel, both members invited by email.
func createMatchChannel(ctx context.Context, components *appComponents, requesterID, matchID string) error {
	var invited []string
	for _, id := range []string{requesterID, matchID} {
		user, err := components.heartbeat.GetUser(ctx, id)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", id, err)
		}
		if strings.TrimSpace(user.Email) == "" {
			return fmt.Errorf("user %s has no email on file", id)
		}
		invited = append(invited, user.Email)
	}

	categoryID, err := components.heartbeat.EnsureChannelCategory(ctx, "Matches")
	if err != nil {
		return fmt.Errorf("ensuring category: %w", err)
	}

	if err := components.heartbeat.CreateChatChannel(ctx, categoryID, "Your Match", "A private channel for your match.", invited); err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}

	fmt.Println("match channel created")
	return nil
}

func printScores(result *matchmaking.Result) {
	ids := make([]string, 0, len(result.Scores))
	for id := range result.Scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return result.Scores[ids[i]] > result.Scores[ids[j]]
	})

	for _, id := range ids {
		marker := " "
		if result.TopMatch != nil && id == result.TopMatch.UserID {
			marker = "*"
		}
		fmt.Printf("%s %-24s %.2f\n", marker, id, result.Scores[id])
	}
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
