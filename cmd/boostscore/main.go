package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	verbose bool
}

// logger 按 --verbose 创建输出到 stderr 的文本日志。
func (c *rootCmdConfig) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "boostscore",
		Short:        "boostscore scores feature vectors with gradient-boosted tree ensembles",
		Long:         `Load an XGBoost JSON model dump and score feature vectors from files, stdin or over HTTP`,
		SilenceUsage: true,
	}
	config := &rootCmdConfig{}
	rootCmd.PersistentFlags().BoolVarP(&(config.verbose), "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd(), scoreCmd(config), serveCmd(config))
	return rootCmd
}
