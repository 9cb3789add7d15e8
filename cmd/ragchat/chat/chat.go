// Package chatcmder implements the interactive chat command.
package chatcmder

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/finlexvn/ragchat/cmd/ragchat/cmdutil"
	"github.com/finlexvn/ragchat/internal/tui"
	"github.com/finlexvn/ragchat/pkg/client"
	"github.com/finlexvn/ragchat/pkg/config"
	"github.com/finlexvn/ragchat/pkg/logger"
)

const chatLongDesc string = `Open an interactive chat session with the assistant.

Thinking steps, the streaming answer, and citations render live in the
terminal. Press esc to stop a running answer, ctrl+c to quit. Edits to
the config file are picked up while the session is open.`

const chatShortDesc string = "Chat with the assistant interactively"

type chatCommander struct {
	flags cmdutil.Flags
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.flags.Register(cmd)
	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, cfgPath, err := c.flags.Load()
	if err != nil {
		return err
	}

	// The TUI owns the terminal; anything zap writes would tear the
	// screen, so the client logs nowhere in chat mode.
	cl, err := client.New(client.Config{
		BaseURL:      cfg.BaseURL,
		UserID:       cfg.UserID,
		UseInterests: cfg.UseInterests,
	}, logger.Nop())
	if err != nil {
		return err
	}

	store, err := cmdutil.OpenStore(cfg)
	if err != nil {
		store = nil
	} else {
		defer store.Close()
	}

	p := tea.NewProgram(tui.New(cl, store), tea.WithAltScreen(), tea.WithContext(ctx))

	stop, err := config.Watch(cfgPath, logger.Nop(), func(updated config.Config) {
		p.Send(tui.ConfigChangedMsg{UseInterests: updated.UseInterests})
	})
	if err == nil {
		defer stop()
	}

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
