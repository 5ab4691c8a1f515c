package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/gptrepl/internal/assistant"
	"github.com/ekisa-team/gptrepl/internal/chat"
	"github.com/ekisa-team/gptrepl/internal/config"
	"github.com/ekisa-team/gptrepl/internal/xfs"
)

const chatHelp = `Type a prompt and press enter.
  /reset  restart the chat program (applies reloaded decoder options)
  /exit   quit`

func newChatCommand(a *app) *cobra.Command {
	var system, name string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asst, err := a.newAssistant()
			if err != nil {
				return err
			}
			defer a.flushMetrics()

			if xfs.IsFile(a.configPath) {
				w, err := config.NewWatcher(a.configPath, a.log, func(cfg *config.Config, err error) {
					if err != nil {
						return
					}
					asst.UpdateDecoder(cfg.DecoderConfig())
					a.log.Info("Decoder options reloaded, type /reset to apply them", "options", len(cfg.Decoder))
				})
				if err != nil {
					return err
				}
				defer w.Close()
			}

			r := &repl{app: a, asst: asst, system: systemOrDefault(system, a.cfg), name: name}

			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System message shaping the assistant's behaviour")
	cmd.Flags().StringVar(&name, "name", "", "Chat name; exchanges are saved to and reloaded from its transcript")

	return cmd
}

// repl reads prompts line by line and prints the answers.
type repl struct {
	app    *app
	asst   *assistant.Assistant
	system string
	name   string
}

func (r *repl) run(ctx context.Context) error {
	if err := r.asst.Open(ctx, r.system, r.name); err != nil {
		return err
	}
	defer closeAssistant(r.app, r.asst)

	fmt.Fprintln(r.app.out, chatHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.app.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.app.out, "you> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.app.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.app.out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := r.asst.Open(ctx, r.system, r.name); err != nil {
				return err
			}
			fmt.Fprintln(r.app.out, "(chat program restarted)")
			continue
		}

		if err := r.ask(ctx, line); err != nil {
			return err
		}
	}
}

// ask sends one prompt. Recoverable failures restart the program; others end the loop.
func (r *repl) ask(ctx context.Context, prompt string) error {
	answer, err := r.asst.Ask(ctx, prompt)
	switch {
	case err == nil:
		fmt.Fprintf(r.app.out, "bot> %s\n", answer)
		return nil
	case errors.Is(err, chat.ErrEmptyResponse):
		fmt.Fprintln(r.app.out, "bot> (no answer)")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case isRecoverable(err):
		r.app.log.Warn("Chat program failed, restarting", "error", err)
		if err := r.asst.Open(ctx, r.system, r.name); err != nil {
			return err
		}
		fmt.Fprintln(r.app.out, "bot> (program restarted, please repeat)")
		return nil
	default:
		return err
	}
}
