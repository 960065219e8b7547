package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gluufederation/shibwatcher/cmd/util"
	"github.com/gluufederation/shibwatcher/cmd/version"
	"github.com/gluufederation/shibwatcher/cmd/watchcontainers"
	"github.com/gluufederation/shibwatcher/cmd/watchfiles"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "GLUU_SHIBWATCHER_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "shibwatcher",
		Short:        "Sync Shibboleth IdP configuration into oxShibboleth containers.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		version.New(),
		watchcontainers.New(),
		watchfiles.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
