package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/gptrepl/internal/assistant"
	"github.com/ekisa-team/gptrepl/internal/catalog"
	"github.com/ekisa-team/gptrepl/internal/chat"
	"github.com/ekisa-team/gptrepl/internal/config"
	"github.com/ekisa-team/gptrepl/internal/xfs"
)

// closeTimeout bounds the wait for the chat program to exit on shutdown.
const closeTimeout = 10 * time.Second

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gptrepl",
		Short:         "Chat with local GPT4All models through the LlamaGPTJ-chat program",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigFilePath(), "Path to config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write session metrics in Prometheus text format to this file on exit")

	chats := &cobra.Command{
		Use:   "chats",
		Short: "Manage saved chat transcripts",
	}
	chats.AddCommand(newChatsClearCommand(a))

	root.AddCommand(
		newModelsCommand(a),
		newInitCommand(a),
		newAskCommand(a),
		newChatCommand(a),
		chats,
	)

	return root
}

func newModelsCommand(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the chat program can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := catalog.Known
			if remote {
				var err error
				names, err = catalog.NewClient(a.log).List(cmd.Context())
				if err != nil {
					return err
				}
			}

			modelsDir := filepath.Dir(a.cfg.ModelFile())
			for _, name := range names {
				line := name
				if xfs.IsFile(filepath.Join(modelsDir, name+".bin")) {
					line += " (installed)"
				}
				if name == a.cfg.Model {
					line += " *"
				}
				fmt.Fprintln(a.out, line)
			}

			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the list from the online catalog")

	return cmd
}

func newInitCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Download the chat program and the configured model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asst, err := a.newAssistant()
			if err != nil {
				return err
			}

			if err := asst.Init(cmd.Context(), force); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "executable: %s\nmodel: %s\n", asst.ExecutablePath(), asst.ModelPath())

			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Download again even when the files exist")

	return cmd
}

func newAskCommand(a *app) *cobra.Command {
	var system, name string

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asst, err := a.newAssistant()
			if err != nil {
				return err
			}
			defer a.flushMetrics()

			if err := asst.Open(cmd.Context(), systemOrDefault(system, a.cfg), name); err != nil {
				return err
			}
			defer closeAssistant(a, asst)

			answer, err := asst.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, answer)

			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System message shaping the assistant's behaviour")
	cmd.Flags().StringVar(&name, "name", "", "Chat name; the exchange is saved to and reloaded from its transcript")

	return cmd
}

func newChatsClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved chat transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asst, err := a.newAssistant()
			if err != nil {
				return err
			}

			n, err := asst.Transcripts().Clear()
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "removed %d transcript(s) from %s\n", n, asst.Transcripts().Dir)

			return nil
		},
	}
}

// systemOrDefault prefers the flag value over the configured system message.
func systemOrDefault(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}

	return cfg.Chat.SystemMessage
}

// closeAssistant stops the chat program with a fresh deadline, since the command context may be done.
func closeAssistant(a *app, asst *assistant.Assistant) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := asst.Close(ctx); err != nil {
		a.log.Warn("Failed to close chat program", "error", err)
	}
}

// isRecoverable reports whether the session must be reopened after err.
func isRecoverable(err error) bool {
	return errors.Is(err, chat.ErrStream) || errors.Is(err, chat.ErrNotInitialized)
}
