// Package main is the entry point for the taskmate CLI, a conversational
// personal to-do assistant. Tasks are managed by chatting; direct
// subcommands cover listing, stats, and API key management.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rgoodwin/taskmate/internal/config"
	"github.com/rgoodwin/taskmate/internal/credstore"
	"github.com/rgoodwin/taskmate/internal/llm"
	"github.com/rgoodwin/taskmate/internal/orchestrator"
	"github.com/rgoodwin/taskmate/internal/session"
	"github.com/rgoodwin/taskmate/internal/task"
	"github.com/rgoodwin/taskmate/pkg/types"
)

var (
	version = "0.1.0"
	cfgPath string
	userID  string
	verbose bool
)

// app bundles the wired components behind each command.
type app struct {
	cfg   *config.Config
	store *task.SQLiteStore
	svc   *task.Service
	creds *credstore.Manager
	orch  *orchestrator.Orchestrator
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskmate",
		Short: "Taskmate - conversational personal task assistant",
		Long: `Taskmate manages your to-do list through conversation.

Start chatting:       taskmate
List your tasks:      taskmate tasks
Show statistics:      taskmate stats
Store an API key:     taskmate keys set --gemini AIza...`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			return nil
		},
		RunE: runChat,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.taskmate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "default", "user the commands act for")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskmate v%s\n", version)
		},
	})

	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initLogging() {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// newApp loads configuration and wires the components every command needs.
func newApp() (*app, error) {
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && !verbose {
		zerolog.SetGlobalLevel(lvl)
	}

	store, err := task.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	svc := task.NewService(store, nil)

	secret := cfg.Security.EncryptionSecret
	if secret == "" {
		// Fall back to a machine-local secret so key storage works out of
		// the box; users can pin one in config for portability.
		secret = "taskmate:" + cfg.Storage.DataDir
	}
	creds, err := credstore.NewManager(store, secret)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init key store: %w", err)
	}

	orch := orchestrator.New(svc, store, creds, session.NewRegistry(cfg.Chat.HistoryLimit), orchestrator.Options{
		HistoryLimit: cfg.Chat.HistoryLimit,
	})

	return &app{cfg: cfg, store: store, svc: svc, creds: creds, orch: orch}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		zlog.Warn().Err(err).Msg("closing store")
	}
}

// runChat is the interactive conversation loop.
func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	// One-shot mode: taskmate "add buy milk for tomorrow"
	if len(args) > 0 {
		reply, err := a.orch.Chat(ctx, userID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	fmt.Println("Taskmate ready. Tell me what you need to do. (type 'exit' to quit, '/clear' to forget our conversation)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if line == "/clear" {
			n, err := a.orch.ClearHistory(ctx, userID)
			if err != nil {
				fmt.Println("Could not clear history:", err)
				continue
			}
			fmt.Printf("Cleared %d message(s).\n", n)
			continue
		}

		reply, err := a.orch.Chat(ctx, userID, line)
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}
		fmt.Println(reply)
	}

	return scanner.Err()
}

func tasksCmd() *cobra.Command {
	var showCompleted bool
	var priority string
	var search string
	var dailyOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List your tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			f := task.Filter{Search: search}
			if !showCompleted {
				pending := false
				f.IsCompleted = &pending
			}
			if priority != "" {
				f.Priority = types.NormalizePriority(priority)
			}
			if dailyOnly {
				daily := true
				f.IsDaily = &daily
			}

			tasks, total, err := a.svc.List(cmd.Context(), userID, f, task.Page{Limit: limit})
			if err != nil {
				return err
			}

			if total == 0 {
				fmt.Println("No tasks found.")
				return nil
			}

			for _, t := range tasks {
				printTask(&t)
			}
			if total > len(tasks) {
				fmt.Printf("... and %d more\n", total-len(tasks))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showCompleted, "all", false, "include completed tasks")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority (low, medium, high)")
	cmd.Flags().StringVar(&search, "search", "", "filter by description text")
	cmd.Flags().BoolVar(&dailyOnly, "daily", false, "only recurring daily tasks")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum tasks to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "add <description>",
		Short: "Add a task directly, without conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			t, err := a.svc.Create(cmd.Context(), userID, task.CreateInput{
				Description: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created task %s: %s\n", t.ID, t.Description)
			return nil
		},
	})

	return cmd
}

func printTask(t *types.Task) {
	mark := " "
	if t.IsCompleted {
		mark = "x"
	}
	line := fmt.Sprintf("[%s] %s  %s (%s)", mark, t.ID, t.Description, t.Priority)
	if t.IsDaily {
		line += " [daily]"
	} else if t.DueDate != nil {
		line += " due " + t.DueDate.Format("2006-01-02")
	}
	fmt.Println(line)
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.svc.Stats(cmd.Context(), userID)
			if err != nil {
				return err
			}

			fmt.Printf("Total tasks:        %d\n", stats.TotalTasks)
			fmt.Printf("Completed:          %d\n", stats.CompletedTasks)
			fmt.Printf("Pending:            %d\n", stats.PendingTasks)
			fmt.Printf("Completion rate:    %.2f%%\n", stats.CompletionRate)
			fmt.Printf("This week:          %.2f%%\n", stats.WeeklyCompletionRate)
			fmt.Printf("High prio pending:  %d\n", stats.HighPriorityPending)
			fmt.Printf("Overdue:            %d\n", stats.OverdueTasks)
			fmt.Printf("Due this week:      %d\n", stats.TasksDueThisWeek)
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored LLM API keys",
	}

	var geminiKey, openaiKey string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store an API key (encrypted at rest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if geminiKey == "" && openaiKey == "" {
				return fmt.Errorf("provide --gemini or --openai")
			}
			if geminiKey != "" && !llm.ValidGeminiKey(geminiKey) {
				return fmt.Errorf("that does not look like a Gemini key (should start with AIza)")
			}
			if openaiKey != "" && !llm.ValidOpenAIKey(openaiKey) {
				return fmt.Errorf("that does not look like an OpenAI key (should start with sk-)")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.EnsureUser(cmd.Context(), userID); err != nil {
				return err
			}
			if err := a.creds.Save(cmd.Context(), userID, credstore.Keys{
				Gemini: geminiKey,
				OpenAI: openaiKey,
			}); err != nil {
				return err
			}
			fmt.Println("Key(s) stored.")
			return nil
		},
	}
	setCmd.Flags().StringVar(&geminiKey, "gemini", "", "Google Gemini API key")
	setCmd.Flags().StringVar(&openaiKey, "openai", "", "OpenAI API key")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which keys are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.creds.GetStatus(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Printf("Gemini key: %s\n", storedWord(status.HasGemini))
			fmt.Printf("OpenAI key: %s\n", storedWord(status.HasOpenAI))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all stored keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.creds.Delete(cmd.Context(), userID); err != nil {
				return err
			}
			fmt.Println("Stored keys removed.")
			return nil
		},
	})

	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage conversation history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the saved conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.orch.ClearHistory(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d message(s).\n", n)
			return nil
		},
	})

	return cmd
}

func storedWord(stored bool) string {
	if stored {
		return "stored"
	}
	return "not set"
}
