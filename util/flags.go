package util

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to flag names to build their environment variable
const EnvPrefix = "NB_UPDATER_"

// SetFlagsFromEnvVars reads and updates flag values from environment variables with prefix
// NB_UPDATER_. Flags set on the command line win over the environment.
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}

		// E.g. process-name -> NB_UPDATER_PROCESS_NAME
		envName := EnvPrefix + flagNameToUpper(f.Name)

		if value, present := os.LookupEnv(envName); present {
			err := flags.Set(f.Name, value)

			if err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, envName, err)
			}
		}
	})
}

// flagNameToUpper converts a flag name to its corresponding base env name
// replacing dashes by underscores and making the result uppercase
// E.g. process-name -> PROCESS_NAME
func flagNameToUpper(cmdFlag string) string {
	return strings.ToUpper(strings.ReplaceAll(cmdFlag, "-", "_"))
}
