package cmd

import (
	"fmt"

	"ragbridge/pkg/files"
	"ragbridge/pkg/server"

	"github.com/spf13/cobra"
)

var filesBaseDir string

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Serve the document directory over HTTP",
	Long:  "Lists and serves the text documents under the storage directory for the indexer.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime("files")
		if err != nil {
			return err
		}
		cfg, log := rt.cfg, rt.log

		baseDir := cfg.Files.BaseDir
		if filesBaseDir != "" {
			baseDir = filesBaseDir
		}

		store, err := files.NewStore(baseDir, cfg.Files.MaxReadBytes)
		if err != nil {
			return fmt.Errorf("open storage directory: %w", err)
		}

		runCtx, stop := signalContext()
		defer stop()

		log.Info("File service started", "base_dir", store.Root())
		return server.Serve(runCtx, server.Addr(cfg.Files.Host, cfg.Files.Port), files.NewHandler(store, log), log)
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.Flags().StringVar(&filesBaseDir, "dir", "", "storage directory (overrides files.base_dir)")
}
