package orchestrator

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/updater/barrier"
	"github.com/netbirdio/netbird-updater/updater/channel"
	"github.com/netbirdio/netbird-updater/updater/display"
	"github.com/netbirdio/netbird-updater/updater/internal/engine"
	"github.com/netbirdio/netbird-updater/updater/internal/installer"
	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/task"
	"github.com/netbirdio/netbird-updater/util"
)

const (
	DefaultGraceDelay     = time.Second
	DefaultReceiveTimeout = 30 * time.Second
	DefaultHandoffTimeout = 30 * time.Second
)

// PlanReceiver is the receiving end of the initial plan handoff
type PlanReceiver interface {
	ReceivePlan(ctx context.Context) (*plan.Plan, error)
	Close()
}

// HandoffWaiter completes once the relaunched application fetched the plan
type HandoffWaiter interface {
	Wait(ctx context.Context) error
}

// Executor runs the task records of a plan
type Executor interface {
	Run(ctx context.Context, tasks []*plan.TaskRecord, sink task.ProgressSink) (bool, []*plan.TaskRecord)
}

// Launcher starts the host application
type Launcher interface {
	Launch(info installer.LaunchInfo) (*os.Process, error)
}

// RunBinder attaches log entries to the run and its current state
type RunBinder interface {
	Bind(runID string, state func() string)
}

// LogItemsSource provides the log items produced by the offline run
type LogItemsSource interface {
	Items() []plan.LogItem
}

type (
	OpenInboxFunc          func(name string, logger *log.Entry) (PlanReceiver, error)
	SendPlanAndLaunchFunc  func(p *plan.Plan, name string, start channel.Starter, logger *log.Entry) (*os.Process, HandoffWaiter, error)
	ScheduleSelfDeleteFunc func(path string, delay time.Duration) error
	WriteResultFunc        func(ctx context.Context, dir string, result installer.Result) error
	WriteLogFunc           func(ctx context.Context, path string, items []plan.LogItem) error
	RemoveAllFunc          func(path string) error
)

// Config carries the run parameters and the collaborators of the orchestrator. Nil
// collaborators are replaced with the platform implementations.
type Config struct {
	// ProcessName addresses both the barrier token and the handoff channel
	ProcessName string
	// PersistLog dumps the merged log next to the application once the run ends
	PersistLog bool
	// HelperLogFile is where the log is dumped when the plan never arrived
	HelperLogFile string

	GraceDelay      time.Duration
	BarrierTimeout  time.Duration
	ReceiveTimeout  time.Duration
	HandoffTimeout  time.Duration
	SelfDeleteDelay time.Duration

	Logger *log.Entry
	// RunContext, when set, is bound to the run id and state of the orchestrator
	RunContext RunBinder
	LogItems   LogItemsSource
	Display    display.Display
	Registry   *task.Registry

	Barrier            barrier.Barrier
	OpenInbox          OpenInboxFunc
	SendPlanAndLaunch  SendPlanAndLaunchFunc
	Launcher           Launcher
	Executor           Executor
	ScheduleSelfDelete ScheduleSelfDeleteFunc
	WriteResult        WriteResultFunc
	WriteLog           WriteLogFunc
	RemoveAll          RemoveAllFunc
}

func (c *Config) withDefaults() {
	if c.Logger == nil {
		c.Logger = log.NewEntry(log.StandardLogger())
	}
	if c.Display == nil {
		c.Display = display.Nop{}
	}
	if c.Registry == nil {
		c.Registry = task.NewRegistry()
	}
	if c.Barrier == nil {
		c.Barrier = barrier.New(c.Logger)
	}
	if c.OpenInbox == nil {
		c.OpenInbox = openInbox
	}
	if c.SendPlanAndLaunch == nil {
		c.SendPlanAndLaunch = sendPlanAndLaunch
	}
	if c.Launcher == nil {
		c.Launcher = installer.NewLauncher(c.Logger)
	}
	if c.Executor == nil {
		c.Executor = engine.New(c.Registry, c.Logger)
	}
	if c.ScheduleSelfDelete == nil {
		c.ScheduleSelfDelete = installer.ScheduleSelfDelete
	}
	if c.WriteResult == nil {
		logger := c.Logger
		c.WriteResult = func(ctx context.Context, dir string, result installer.Result) error {
			return installer.NewResultHandler(dir, logger).Write(ctx, result)
		}
	}
	if c.WriteLog == nil {
		c.WriteLog = writeLog
	}
	if c.RemoveAll == nil {
		c.RemoveAll = os.RemoveAll
	}
	if c.SelfDeleteDelay <= 0 {
		c.SelfDeleteDelay = installer.DefaultSelfDeleteDelay
	}
}

func openInbox(name string, logger *log.Entry) (PlanReceiver, error) {
	in, err := channel.Open(name, logger)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func sendPlanAndLaunch(p *plan.Plan, name string, start channel.Starter, logger *log.Entry) (*os.Process, HandoffWaiter, error) {
	proc, out, err := channel.SendPlanAndLaunch(p, name, start, logger)
	if err != nil {
		return nil, nil, err
	}
	return proc, out, nil
}

func writeLog(ctx context.Context, path string, items []plan.LogItem) error {
	return util.WriteText(ctx, path, plan.FormatLogItems(items))
}
