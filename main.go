package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nunajera/kbchat/internal/config"
	"github.com/nunajera/kbchat/internal/knowledge"
	"github.com/nunajera/kbchat/internal/provider"
	"github.com/nunajera/kbchat/internal/server"
)

const janitorInterval = time.Minute

func main() {
	_ = godotenv.Load() // load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintln(os.Stderr, "找不到 API Key，請檢查 Secrets 設定。")
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kbchat",
		Short:         "Q&A chat that answers strictly from a knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Knowledge.Source == config.SourceDiagnostic {
				return runModels(cmd.Context(), cmd.OutOrStdout(), cfg)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file (default $KBCHAT_CONFIG)")
	pf.String("source", "", "knowledge source: inline, upload, autoload or diagnostic")
	pf.String("dir", "", "directory searched for knowledge.{xlsx,csv,txt,pdf}")
	pf.String("port", "", "HTTP port")
	pf.String("provider", "", "model provider: openai or mock")
	pf.String("model", "", "model name")
	pf.Bool("watch", false, "reload the knowledge file when it changes (autoload only)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the chat web server",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return runServe(cmd.Context(), cfg)
			},
		},
		newModelsCmd(),
	)
	return root
}

// loadConfig reads file and environment, applies the flags that were set, and validates.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	fs := cmd.Flags()
	path, _ := fs.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	for name, dst := range map[string]*string{
		"dir":      &cfg.Knowledge.Dir,
		"port":     &cfg.Server.Port,
		"provider": &cfg.Provider,
		"model":    &cfg.Model,
	} {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	if fs.Changed("source") {
		v, _ := fs.GetString("source")
		cfg.Knowledge.Source = config.Source(v)
	}
	if fs.Changed("watch") {
		cfg.Knowledge.Watch, _ = fs.GetBool("watch")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	logx.MustSetup(logx.LogConf{
		ServiceName: "kbchat",
		Mode:        "console",
		Encoding:    "plain",
		Level:       level,
	})
	logx.DisableStat()
}

func newProvider(cfg config.Config) (provider.ChatProvider, error) {
	if cfg.Provider == config.ProviderMock {
		return provider.MockProvider{}, nil
	}
	return provider.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
}

func runServe(ctx context.Context, cfg config.Config) error {
	chat, err := newProvider(cfg)
	if err != nil {
		return err
	}

	sessions, shared := server.NewSessionStore(cfg, chat)
	if shared != nil {
		// parse once at startup; sessions share the cached result
		if snap := shared.Current(ctx); !snap.Ready() {
			logx.Errorf("[knowledge] %s", snap.Diagnostic())
		}
	}

	if cfg.Knowledge.Watch && shared != nil {
		w, err := knowledge.NewWatcher(shared, cfg.Knowledge.Dir)
		if err != nil {
			return fmt.Errorf("watch %s: %w", cfg.Knowledge.Dir, err)
		}
		defer w.Close()
		go w.Run(ctx)
	}

	go sessions.RunJanitor(ctx, janitorInterval, cfg.Server.SessionTTL)

	return server.New(cfg, sessions, chat).Run(ctx)
}
