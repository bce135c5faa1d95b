package commands

// Commands to inspect and delete stored tracking records

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var targetsCmd = &cobra.Command{
	Use:   "targets <chatId>",
	Short: "Print the stored tracking record of a chat as JSON",
	Long: `Print the stored tracking record of a chat as JSON.
Group chat ids are negative, pass them after "--": arb-stalker targets -- -100123`,
	Args: cobra.ExactArgs(1),
	RunE: runTargets,
}

var purgeCmd = &cobra.Command{
	Use:   "purge <chatId>",
	Short: "Delete the tracking record of a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runPurge,
}

func init() {
	targetsCmd.AddCommand(purgeCmd)
}

func parseChatID(arg string) (int64, error) {
	chatID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", arg, err)
	}
	return chatID, nil
}

func runTargets(cmd *cobra.Command, args []string) error {
	chatID, err := parseChatID(args[0])
	if err != nil {
		return err
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	st, err := newStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	record, err := st.Get(cmd.Context(), chatID)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("no record for chat %d", chatID)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	chatID, err := parseChatID(args[0])
	if err != nil {
		return err
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	st, err := newStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(cmd.Context(), chatID); err != nil {
		return fmt.Errorf("failed to delete record of chat %d: %w", chatID, err)
	}

	log.LogInfo("Record purged", zap.Int64("chatID", chatID))
	fmt.Fprintf(cmd.OutOrStdout(), "record of chat %d deleted\n", chatID)
	return nil
}
