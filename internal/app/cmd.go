package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/roadmap/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// defaultPort はSERVER_PORT未設定時のポート。
const defaultPort = "8080"

// newRootCommand はルートコマンドを構築する。
// サブコマンドを省略した場合はserveとして動作する。
func newRootCommand(w io.Writer) *cobra.Command {
	var configFile string

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := Init(w, configFile)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	}

	root := &cobra.Command{
		Use:           "roadmap",
		Short:         "Public roadmap proxy for Linear issues",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv(config.ConfigFileEnv),
		"設定ファイルのパス（環境変数が優先される）")

	serveCmd := &cobra.Command{
		Use:   string(CommandServe),
		Short: "APIサーバーを起動する",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	var port string
	healthcheckCmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "ローカルの/healthを確認する",
		Args:  cobra.NoArgs,
		// 軽量サブコマンドのため、フル初期化をスキップする
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), port)
		},
	}
	healthcheckCmd.Flags().StringVar(&port, "port", envOr("SERVER_PORT", defaultPort), "確認するポート")

	root.AddCommand(serveCmd, healthcheckCmd)
	root.SetOut(w)
	root.SetErr(w)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
