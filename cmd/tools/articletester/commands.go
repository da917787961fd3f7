package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/article-rag/backend/internal/service/ai"
	"github.com/zhouzirui/article-rag/backend/internal/service/chat"
	"github.com/zhouzirui/article-rag/backend/internal/service/extract"
)

type app struct {
	chatModel  model.BaseChatModel
	defaultKey string
	log        *slog.Logger

	apiKey  string
	html    bool
	timeout time.Duration
}

func newRootCmd(chatModel model.BaseChatModel, defaultKey string, log *slog.Logger) *cobra.Command {
	a := &app{chatModel: chatModel, defaultKey: defaultKey, log: log}

	root := &cobra.Command{
		Use:          "articletester",
		Short:        "Run article extraction, summaries and chat turns locally",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.apiKey, "api-key", "", "Gemini API key, overrides GEMINI_API_KEY")
	root.PersistentFlags().BoolVar(&a.html, "html", false, "Treat FILE as an HTML page and extract the article first")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 2*time.Minute, "Overall command timeout")

	root.AddCommand(a.extractCmd(), a.summarizeCmd(), a.chatCmd())
	return root
}

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract article text from an HTML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := extract.FromHTML(bytes.NewReader(raw))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "method: %s\nlength: %d\n\n%s\n", res.Method, len([]rune(res.Text)), res.Text)
			return nil
		},
	}
}

func (a *app) summarizeCmd() *cobra.Command {
	var summaryType string

	cmd := &cobra.Command{
		Use:   "summarize FILE",
		Short: "Summarize the article in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readArticle(args[0])
			if err != nil {
				return err
			}
			svc, err := ai.NewService(a.chatModel, a.defaultKey, a.log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			out, err := svc.Summarize(ctx, ai.SummarizeInput{
				Text:        text,
				SummaryType: summaryType,
				APIKey:      a.apiKey,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n(%s, %d chars, %.2fs)\n", out.Summary, out.SummaryType, out.TextLength, out.ProcessingTime.Seconds())
			return nil
		},
	}
	cmd.Flags().StringVar(&summaryType, "type", "brief", "Summary style: brief, detailed or bullets")
	return cmd
}

func (a *app) chatCmd() *cobra.Command {
	var questions []string

	cmd := &cobra.Command{
		Use:   "chat FILE",
		Short: "Ask one or more questions about the article in FILE within one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(questions) == 0 {
				return fmt.Errorf("at least one --question is required")
			}
			text, err := a.readArticle(args[0])
			if err != nil {
				return err
			}
			svc, err := ai.NewService(a.chatModel, a.defaultKey, a.log)
			if err != nil {
				return err
			}
			manager, err := chat.NewManager(chat.NewService(), svc, a.log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			var sessionID string
			for _, q := range questions {
				out, err := manager.Ask(ctx, chat.AskInput{
					ArticleText: text,
					Question:    q,
					SessionID:   sessionID,
					APIKey:      a.apiKey,
				})
				if err != nil {
					return err
				}
				sessionID = out.SessionID
				fmt.Fprintf(cmd.OutOrStdout(), "Q: %s\nA: %s\n\n", q, out.Answer)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session: %s\n", sessionID)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Question to ask; repeat for a multi-turn conversation")
	return cmd
}

func (a *app) readArticle(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !a.html {
		return string(raw), nil
	}
	res, err := extract.FromHTML(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	return res.Text, nil
}
