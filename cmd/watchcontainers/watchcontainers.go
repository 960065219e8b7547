package watchcontainers

import (
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gluufederation/shibwatcher/cmd/util"
	"github.com/gluufederation/shibwatcher/pkg/config"
	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/sync"
)

// New creates a new `watch-containers` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "watch-containers",
		Short: "Periodically sync changed Shibboleth files to every oxShibboleth target.",
		Long: "Poll " + config.RootDir + " for changed configuration files, and copy\n" +
			"them into every oxShibboleth container. Targets that join the fleet\n" +
			"receive every file.",
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

	reconciler := sync.NewReconciler(backend, config.RootDir, sync.Extensions)
	sync.RunPoll(ctx, reconciler, cfg.SyncInterval(), clockwork.NewRealClock())

	log.Info("Cancelled by user ... exiting")
	return nil
}
