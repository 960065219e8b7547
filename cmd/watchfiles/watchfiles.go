package watchfiles

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gluufederation/shibwatcher/cmd/util"
	"github.com/gluufederation/shibwatcher/pkg/config"
	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/fswatch"
	"github.com/gluufederation/shibwatcher/pkg/sync"
)

// New creates a new `watch-files` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "watch-files",
		Short: "Sync Shibboleth files to every oxShibboleth target as they change.",
		Long: "Watch " + config.RootDir + " for filesystem events, and copy or delete\n" +
			"each changed configuration file in every oxShibboleth container.\n" +
			"Targets that join later aren't brought up to date.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run() error {
	cfg, err := util.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := util.SignalContext()
	defer stop()

	backend, err := util.NewBackend(ctx, cfg)
	if err != nil {
		return errors.WithContext(err, "create backend")
	}
	defer util.CloseBackend(backend)

	util.ServeMetrics(ctx, cfg.MetricsAddr)

	events, err := fswatch.Watch(ctx, config.RootDir, sync.Extensions)
	if err != nil {
		return errors.WithContext(err, "watch files")
	}

	log.WithField("root", config.RootDir).Info("Watching for changes")
	go sync.RunEvents(ctx, events, sync.NewEventHandler(backend))

	<-ctx.Done()
	log.Info("Cancelled by user ... exiting")
	return nil
}
