package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/assistant"
	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the health assistant in the terminal",
	Long: `Starts an interactive chat session. Replies stream as they are generated
and any record changes the assistant proposes are applied and listed once the
reply completes. Type "exit" or press Ctrl+D to quit; Ctrl+C stops the current reply.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.newAssistant()
	if err != nil {
		return err
	}

	fmt.Printf("healthagent chat (user %d). Type \"exit\" to quit.\n\n", userID)
	for {
		prompt := promptui.Prompt{Label: "你"}
		input, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		if err := chatOnce(cmd.Context(), svc, input, os.Stdout); err != nil {
			return err
		}
	}
}

// chatOnce streams one reply to out. Only fatal errors are returned; user
// facing problems are printed.
func chatOnce(parent context.Context, svc *assistant.Service, input string, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	relay := &terminalRelay{out: out}
	fmt.Fprint(out, "助手: ")
	outcome, err := svc.Chat(ctx, userID, input, relay.emit)
	fmt.Fprintln(out)

	switch {
	case errors.Is(err, conversation.ErrEmptyUtterance), errors.Is(err, assistant.ErrUtteranceTooLong):
		fmt.Fprintf(out, "[%v]\n\n", err)
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Fprint(out, "[已停止]\n\n")
		return nil
	case outcome == nil && err != nil:
		return err
	}

	if outcome.Failed {
		fmt.Fprintln(out)
		return nil
	}
	if outcome.Changes != nil {
		printChanges(out, outcome.Changes)
	}
	if err != nil {
		fmt.Fprintf(out, "[%s]\n", assistant.UserMessage(err))
	}
	fmt.Fprintln(out)
	return nil
}

// terminalRelay prints the growing reply text as it streams.
type terminalRelay struct {
	out     io.Writer
	printed string
}

func (t *terminalRelay) emit(c session.Chunk) error {
	if strings.HasPrefix(c.Content, t.printed) {
		_, err := fmt.Fprint(t.out, c.Content[len(t.printed):])
		t.printed = c.Content
		return err
	}
	// The final reply differs from the partial text; reprint it whole.
	_, err := fmt.Fprintf(t.out, "\n%s", c.Content)
	t.printed = c.Content
	return err
}

func printChanges(out io.Writer, res *changelog.Result) {
	for _, c := range res.Applied {
		line := fmt.Sprintf("  ✓ %s = %s", c.Field, c.Text)
		if c.Reason != nil {
			line += fmt.Sprintf(" (%s)", *c.Reason)
		}
		fmt.Fprintln(out, line)
	}
	for _, d := range res.Dropped {
		fmt.Fprintf(out, "  ✗ %s: %s\n", d.Item.Field, d.Why)
	}
}
