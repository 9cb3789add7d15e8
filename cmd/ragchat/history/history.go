// Package historycmder implements the saved-conversation commands.
package historycmder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/finlexvn/ragchat/cmd/ragchat/cmdutil"
	"github.com/finlexvn/ragchat/pkg/config"
	"github.com/finlexvn/ragchat/pkg/history"
)

const historyLongDesc string = `Browse locally saved question/answer turns.

Turns are recorded by ask and chat when a history database is
configured. list prints the newest turns first; show prints one turn in
full, citations included.`

const historyShortDesc string = "Browse saved turns"

type historyCommander struct {
	configPath string
	limit      int
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}
	cmd.PersistentFlags().StringVar(&cmder.configPath, "config", "", "Path to config file (default: ~/.config/ragchat/config.toml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved turns, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runList(cmd.Context(), cmd)
		},
	}
	listCmd.Flags().IntVar(&cmder.limit, "limit", 20, "Maximum turns to print (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one turn in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid turn id %q", args[0])
			}
			return cmder.runShow(cmd.Context(), cmd, id)
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func (c *historyCommander) openStore() (history.Store, error) {
	path := c.configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.HistoryPath == "" {
		return nil, fmt.Errorf("no history database configured (set history_path in %s)", path)
	}
	return cmdutil.OpenStore(cfg)
}

func (c *historyCommander) runList(ctx context.Context, cmd *cobra.Command) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	turns, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "chưa có câu hỏi nào được lưu")
		return nil
	}
	if c.limit > 0 && len(turns) > c.limit {
		turns = turns[:c.limit]
	}

	for _, turn := range turns {
		marker := " "
		if turn.Interrupted {
			marker = "!"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%4d %s %s  %s\n",
			turn.ID, marker, turn.CreatedAt.Format("2006-01-02 15:04"), turn.Query)
	}
	return nil
}

func (c *historyCommander) runShow(ctx context.Context, cmd *cobra.Command, id int64) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	turn, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "❯ %s\n", turn.Query)
	fmt.Fprintf(out, "%s\n", turn.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, turn.Answer)
	if turn.Interrupted {
		fmt.Fprintln(out, "(kết nối bị ngắt — câu trả lời có thể chưa đầy đủ)")
	}
	if len(turn.Citations) > 0 {
		fmt.Fprintln(out, "nguồn:")
		for _, cit := range turn.Citations {
			line := fmt.Sprintf("  [%d] %s", cit.Number, cit.Source)
			if cit.Similarity > 0 {
				line += fmt.Sprintf(" (%.2f)", cit.Similarity)
			}
			fmt.Fprintln(out, line)
		}
	}
	if turn.TotalTimeMs > 0 {
		fmt.Fprintf(out, "trả lời trong %dms\n", turn.TotalTimeMs)
	}
	return nil
}
