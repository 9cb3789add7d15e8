package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	askcmder "github.com/finlexvn/ragchat/cmd/ragchat/ask"
	chatcmder "github.com/finlexvn/ragchat/cmd/ragchat/chat"
	historycmder "github.com/finlexvn/ragchat/cmd/ragchat/history"
	stubcmder "github.com/finlexvn/ragchat/cmd/ragchat/stub"
)

const rootLongDesc string = `ragchat is a terminal client for the FinLex assistant, a retrieval-
augmented Q&A service for Vietnamese finance and law.

Answers stream in as they are produced, with the pipeline's thinking
steps and source citations shown alongside.`

func main() {
	rootCmd := &cobra.Command{
		Use:           "ragchat",
		Short:         "Terminal client for the FinLex assistant",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		askcmder.NewAskCmd(),
		chatcmder.NewChatCmd(),
		historycmder.NewHistoryCmd(),
		stubcmder.NewStubCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
