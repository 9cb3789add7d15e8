// Package askcmder implements the one-shot streaming query command.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/finlexvn/ragchat/cmd/ragchat/cmdutil"
	"github.com/finlexvn/ragchat/pkg/client"
	"github.com/finlexvn/ragchat/pkg/history"
	"github.com/finlexvn/ragchat/pkg/logger"
	"github.com/finlexvn/ragchat/pkg/rag"
	"github.com/finlexvn/ragchat/pkg/stream"
)

const askLongDesc string = `Ask the assistant a single question.

Thinking-step progress goes to stderr while the answer streams to
stdout, so piping the answer stays clean. With --render the answer is
buffered and printed as formatted markdown instead.

Examples:
  ragchat ask "ROE là gì?"
  ragchat ask --render "Điều kiện phát hành trái phiếu riêng lẻ?"
  ragchat ask --no-stream "ROE là gì?" > answer.txt`

const askShortDesc string = "Ask a single question"

type askCommander struct {
	flags    cmdutil.Flags
	noStream bool
	render   bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Use the non-streaming fallback endpoint")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Buffer the answer and print it as formatted markdown")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, question string) error {
	cfg, _, err := c.flags.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Debug)
	defer log.Sync()

	cl, err := client.New(client.Config{
		BaseURL:      cfg.BaseURL,
		UserID:       cfg.UserID,
		UseInterests: cfg.UseInterests,
	}, log)
	if err != nil {
		return err
	}

	store, err := cmdutil.OpenStore(cfg)
	if err != nil {
		log.Warn("history disabled", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	if c.noStream {
		return c.runFallback(ctx, cmd, cl, store, question)
	}

	session, err := cl.StreamQuery(ctx, question, func(ev rag.Event, _ *stream.Session) {
		switch ev.Type {
		case rag.EventThinking:
			if ev.Status == rag.StepDone {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ %s (%dms)\n", ev.Message, ev.ElapsedMs)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "… %s\n", ev.Message)
			}
		case rag.EventAnswerChunk:
			if !c.render {
				fmt.Fprint(cmd.OutOrStdout(), ev.Content)
			}
		}
	})

	var upstream *stream.UpstreamError
	if err != nil && !errors.As(err, &upstream) {
		return err
	}

	if c.render {
		fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(session.Answer))
	} else if session.Answer != "" {
		fmt.Fprintln(cmd.OutOrStdout())
	}

	printCitations(cmd, session)

	if session.Err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), session.Err.Error())
	} else if session.Interrupted {
		fmt.Fprintln(cmd.ErrOrStderr(), "(kết nối bị ngắt — câu trả lời có thể chưa đầy đủ)")
	}

	c.record(ctx, log, store, question, session)
	return nil
}

// runFallback uses the plain request/response endpoint: no thinking
// steps, no citations, one complete answer.
func (c *askCommander) runFallback(ctx context.Context, cmd *cobra.Command, cl *client.Client, store history.Store, question string) error {
	answer, err := cl.Query(ctx, question)
	if err != nil {
		return err
	}
	if c.render {
		fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(answer))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), answer)
	}
	if store != nil {
		_, _ = store.Put(ctx, &history.Turn{Query: question, Answer: answer})
	}
	return nil
}

// record stores the finished turn. Storage failures never fail the ask.
func (c *askCommander) record(ctx context.Context, log *zap.Logger, store history.Store, question string, session *stream.Session) {
	if store == nil || session == nil || session.Answer == "" {
		return
	}
	_, err := store.Put(ctx, &history.Turn{
		Query:       question,
		Answer:      session.Answer,
		Citations:   session.Citations,
		TotalTimeMs: session.TotalTimeMs,
		Interrupted: session.Interrupted,
	})
	if err != nil {
		log.Warn("failed to record turn", zap.Error(err))
	}
}

func printCitations(cmd *cobra.Command, session *stream.Session) {
	if len(session.Citations) == 0 {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "nguồn:")
	for _, cit := range session.Citations {
		line := fmt.Sprintf("  [%d] %s", cit.Number, cit.Source)
		if cit.Similarity > 0 {
			line += fmt.Sprintf(" (%.2f)", cit.Similarity)
		}
		if cit.Preview != "" {
			line += " — " + cit.Preview
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	if session.TotalTimeMs > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "trả lời trong %dms\n", session.TotalTimeMs)
	}
}

// renderMarkdown formats the answer for the terminal, falling back to
// the raw text when stdout is not a terminal or rendering fails.
func renderMarkdown(answer string) string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 10 {
		width = w
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return answer + "\n"
	}
	out, err := r.Render(answer)
	if err != nil {
		return answer + "\n"
	}
	return out
}
