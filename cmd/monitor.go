package cmd

import (
	"fmt"
	"strings"
	"time"

	"ragbridge/pkg/config"
	"ragbridge/pkg/ui/monitor"

	"github.com/spf13/cobra"
)

var (
	monitorInterval time.Duration
	monitorServices []string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show work-queue depths and service health",
	Long:  "Opens a terminal dashboard that polls the work-queue topics and the /health endpoint of each pipeline service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime("monitor")
		if err != nil {
			return err
		}

		services, err := monitorTargets(rt.cfg, monitorServices)
		if err != nil {
			return err
		}

		runCtx, stop := signalContext()
		defer stop()

		queue, err := openQueue(runCtx, rt.cfg, rt.log)
		if err != nil {
			return err
		}
		defer queue.Close()

		collector := monitor.NewCollector(queue, rt.table.Topics(), services, 2*time.Second)
		return monitor.Run(runCtx, collector.Collect, monitorInterval)
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 2*time.Second, "refresh interval")
	monitorCmd.Flags().StringArrayVar(&monitorServices, "service", nil, "extra health target as name=url (repeatable)")
}

// monitorTargets lists the configured services plus any name=url extras.
func monitorTargets(cfg *config.Config, extra []string) ([]monitor.Service, error) {
	services := []monitor.Service{
		{Name: "translator", URL: cfg.Translator.URL},
		{Name: "indexer", URL: strings.TrimSuffix(strings.TrimRight(cfg.Indexer.URL, "/"), "/index")},
		{Name: "files", URL: cfg.Files.ServiceURL},
	}

	for _, raw := range extra {
		name, url, ok := strings.Cut(raw, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid --service %q, want name=url", raw)
		}
		services = append(services, monitor.Service{Name: name, URL: url})
	}

	return services, nil
}
