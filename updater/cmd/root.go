package cmd

import (
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netbirdio/netbird-updater/formatter"
	"github.com/netbirdio/netbird-updater/updater/display"
	"github.com/netbirdio/netbird-updater/updater/internal/installer"
	"github.com/netbirdio/netbird-updater/updater/internal/orchestrator"
	"github.com/netbirdio/netbird-updater/updater/task"
	"github.com/netbirdio/netbird-updater/updater/task/filetask"
	"github.com/netbirdio/netbird-updater/util"
	"github.com/netbirdio/netbird-updater/version"
)

const (
	processNameFlag     = "process-name"
	showConsoleFlag     = "show-console"
	uiFlag              = "ui"
	persistLogFlag      = "log"
	logLevelFlag        = "log-level"
	logFileFlag         = "log-file"
	graceDelayFlag      = "grace-delay"
	barrierTimeoutFlag  = "barrier-timeout"
	receiveTimeoutFlag  = "receive-timeout"
	handoffTimeoutFlag  = "handoff-timeout"
	selfDeleteDelayFlag = "self-delete-delay"

	helperLogFileName = "NauUpdate.log"
)

var (
	processName     string
	showConsole     bool
	uiName          string
	persistLog      bool
	logLevel        string
	logFile         string
	graceDelay      time.Duration
	barrierTimeout  time.Duration
	receiveTimeout  time.Duration
	handoffTimeout  time.Duration
	selfDeleteDelay time.Duration

	rootCmd = &cobra.Command{
		Use:   "netbird-updater",
		Short: "applies the deferred part of an application update",
		Long: "netbird-updater runs once the application exited: it receives the update plan, " +
			"executes the tasks that need the application to be stopped, relaunches the " +
			"application and removes its own temporary files.",
		Version:      version.Version(),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			util.SetFlagsFromEnvVars(cmd)
		},
		RunE: runUpdate,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&processName, processNameFlag, "p", "", "synchronization process name shared with the application, addresses both the termination barrier and the plan channel")
	flags.BoolVar(&showConsole, showConsoleFlag, false, "show the built-in console display")
	flags.StringVar(&uiName, uiFlag, "", "name of a registered display to show instead of the console")
	flags.BoolVar(&persistLog, persistLogFlag, false, "save the update log next to the application once the run ends")
	flags.StringVar(&logLevel, logLevelFlag, "info", "sets the updater log level")
	flags.StringVar(&logFile, logFileFlag, util.ConsoleLog, "sets the updater log path. If console is specified the log will be output to stderr")
	flags.DurationVar(&graceDelay, graceDelayFlag, orchestrator.DefaultGraceDelay, "pause before waiting for the application to terminate")
	flags.DurationVar(&barrierTimeout, barrierTimeoutFlag, 0, "give up waiting for the application to terminate after this long, 0 waits forever")
	flags.DurationVar(&receiveTimeout, receiveTimeoutFlag, orchestrator.DefaultReceiveTimeout, "give up waiting for the update plan after this long, 0 waits forever")
	flags.DurationVar(&handoffTimeout, handoffTimeoutFlag, orchestrator.DefaultHandoffTimeout, "how long the relaunched application has to fetch the plan")
	flags.DurationVar(&selfDeleteDelay, selfDeleteDelayFlag, installer.DefaultSelfDeleteDelay, "delay before the temp folder, including the updater, is removed")
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	runContext := formatter.NewContextHook()
	items := formatter.NewLogItemsHook()
	logger, err := util.NewLogger(logLevel, logFile, runContext, items)
	if err != nil {
		return err
	}
	entry := log.NewEntry(logger)
	entry.Infof("netbird-updater %s", version.Version())

	d := newDisplay(entry)
	logger.AddHook(formatter.NewDisplayHook(d))

	registry := task.NewRegistry()
	if err := filetask.Register(registry, entry); err != nil {
		return err
	}

	o := orchestrator.New(orchestrator.Config{
		ProcessName:     processName,
		PersistLog:      persistLog,
		HelperLogFile:   helperLogFile(),
		GraceDelay:      graceDelay,
		BarrierTimeout:  barrierTimeout,
		ReceiveTimeout:  receiveTimeout,
		HandoffTimeout:  handoffTimeout,
		SelfDeleteDelay: selfDeleteDelay,
		Logger:          entry,
		RunContext:      runContext,
		LogItems:        items,
		Display:         d,
		Registry:        registry,
	})

	report := o.Run(cmd.Context())
	if report.Err != nil {
		entry.Warnf("update run %s ended in %s: %v", report.RunID, report.State, report.Err)
	} else {
		entry.Infof("update run %s ended in %s", report.RunID, report.State)
	}

	// the outcome is reported through the result file, the exit code is always the same
	return nil
}

func newDisplay(logger *log.Entry) display.Display {
	switch {
	case showConsole:
		return display.New(display.ConsoleName, logger)
	case uiName != "":
		logger.Infof("loading display %q", uiName)
		return display.New(uiName, logger)
	default:
		logger.Debugf("skipping UI")
		return display.Nop{}
	}
}

// helperLogFile is where the log goes until the plan tells where the application lives
func helperLogFile() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join(os.TempDir(), helperLogFileName)
	}
	return filepath.Join(filepath.Dir(exe), helperLogFileName)
}
