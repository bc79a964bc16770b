package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hitoshi/gatehouse/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMを受信するとコマンドのctxをキャンセルする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(w)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewRootCommand はgatehouseのルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして起動する。
func NewRootCommand(w io.Writer) *cobra.Command {
	serve := newConfiguredCommand(w, CommandServe, "Start the HTTP server", runServe)

	root := &cobra.Command{
		Use:           "gatehouse",
		Short:         "gatehouse - authentication portal with small JSON microservices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(serve)
	root.AddCommand(newConfiguredCommand(w, CommandWorker, "Run the expired session cleanup worker", runWorker))
	root.AddCommand(newConfiguredCommand(w, CommandMigrate, "Run database migrations",
		func(_ context.Context, cfg *config.Config) error { return runMigrate(cfg) }))
	root.AddCommand(newHealthcheckCommand())

	return root
}

// newConfiguredCommand は設定の読み込みを済ませてからrunを呼ぶサブコマンドを生成する。
func newConfiguredCommand(w io.Writer, name Command, short string, run func(context.Context, *config.Config) error) *cobra.Command {
	return &cobra.Command{
		Use:   string(name),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}

			slog.Info("starting application",
				slog.String("command", string(name)),
				slog.String("port", cfg.ServerPort),
				slog.String("base_url", cfg.BaseURL),
				slog.String("store_backend", cfg.StoreBackend),
				slog.String("session_backend", cfg.SessionBackend),
			)

			return run(cmd.Context(), cfg)
		},
	}
}

// newHealthcheckCommand は軽量なヘルスチェックコマンドを生成する。
// フル初期化をスキップし、SERVER_PORTのみを参照する。
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check the /health endpoint of a running server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = defaultPort
			}
			return runHealthcheck(port)
		},
	}
}
