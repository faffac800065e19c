// Package monitor is a terminal dashboard of work-queue depths and service health.
package monitor

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// CollectFunc produces one dashboard refresh.
type CollectFunc func(ctx context.Context) Snapshot

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, collect CollectFunc, interval time.Duration) error {
	program := tea.NewProgram(newModel(ctx, collect, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
