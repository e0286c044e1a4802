// Package orchestrator sequences an offline update run: wait for the application to exit,
// receive its plan, execute the deferred tasks, relaunch the application and clean up.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/formatter"
	"github.com/netbirdio/netbird-updater/updater/internal/installer"
	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/status"
)

const errorBanner = "*********************************"

// Report is the outcome of a run
type Report struct {
	RunID     string
	Succeeded bool
	State     State
	// Err is the error that decided the outcome, nil on success
	Err  error
	Plan *plan.Plan
}

// Orchestrator runs a single offline update pass
type Orchestrator struct {
	cfg Config
	log *log.Entry

	mu          sync.Mutex
	state       State
	transitions []Transition

	runID     string
	hostItems []plan.LogItem
}

func New(cfg Config) *Orchestrator {
	cfg.withDefaults()
	runID := uuid.NewString()

	o := &Orchestrator{
		cfg:   cfg,
		log:   cfg.Logger.WithField(formatter.RunKey, runID),
		state: Idle,
		runID: runID,
	}
	if cfg.RunContext != nil {
		cfg.RunContext.Bind(runID, func() string {
			return o.State().String()
		})
	}
	return o
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Transitions returns the state changes recorded so far
func (o *Orchestrator) Transitions() []Transition {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Transition, len(o.transitions))
	copy(out, o.transitions)
	return out
}

// Run executes the update. It always reaches Done: fatal errors skip the task execution
// and the relaunch but never the cleanup.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	report := &Report{RunID: o.runID}
	o.cfg.Display.Show()

	p, err := o.obtainPlan(ctx)
	report.Plan = p
	if err != nil {
		o.transition(Failed)
		o.reportError(err)
		report.Err = err
	} else {
		report.Succeeded, report.Err = o.execute(ctx, p)
		if p.RelaunchApplication {
			o.relaunch(ctx, p)
		}
	}

	if err == nil {
		o.log.Infof("All done")
	}
	o.cleanup(ctx, p, report)

	o.transition(Done)
	report.State = o.State()
	return report
}

// obtainPlan waits for the application to terminate and receives its plan. The channel
// is opened before the wait so the application can hand the plan over and exit.
func (o *Orchestrator) obtainPlan(ctx context.Context) (*plan.Plan, error) {
	name := o.cfg.ProcessName
	if name == "" {
		return nil, status.Errorf(status.Configuration, "the command line needs to specify the synchronization process name")
	}
	o.log.Infof("Update process name: '%s'", name)

	inbox, err := o.cfg.OpenInbox(name, o.log)
	if err != nil {
		return nil, err
	}
	defer inbox.Close()

	o.transition(AwaitingHostExit)
	if err := o.awaitHostExit(ctx, name); err != nil {
		return nil, err
	}

	o.transition(FetchingPlan)
	receiveCtx, cancel := withOptionalTimeout(ctx, o.cfg.ReceiveTimeout)
	defer cancel()

	p, err := inbox.ReceivePlan(receiveCtx)
	if err != nil {
		return nil, err
	}

	if p != nil {
		o.hostItems = p.LogItems
	}
	if err := p.Validate(); err != nil {
		return p, err
	}

	o.log.Infof("Got %d task objects", len(p.Tasks))
	return p, nil
}

func (o *Orchestrator) awaitHostExit(ctx context.Context, name string) error {
	if o.cfg.GraceDelay > 0 {
		select {
		case <-time.After(o.cfg.GraceDelay):
		case <-ctx.Done():
			return status.Wrap(status.Timeout, ctx.Err(), "interrupted before waiting for %q", name)
		}
	}

	waitCtx, cancel := withOptionalTimeout(ctx, o.cfg.BarrierTimeout)
	defer cancel()

	if err := o.cfg.Barrier.AcquireOrWait(waitCtx, name); err != nil {
		return err
	}
	if o.cfg.Barrier.Abandoned() {
		o.log.Debugf("barrier token of %q was abandoned by its owner", name)
	}
	o.log.Infof("The application has terminated (as expected)")

	// the relaunched application takes the token again
	if err := o.cfg.Barrier.Release(); err != nil {
		o.log.Warnf("failed to release the barrier token: %v", err)
	}
	return nil
}

// execute runs the deferred tasks and applies the outcome specific cleanup
func (o *Orchestrator) execute(ctx context.Context, p *plan.Plan) (bool, error) {
	o.transition(ExecutingTasks)

	// partially applied changes cannot be rolled back, so the tasks run to completion
	ok, _ := o.cfg.Executor.Run(context.WithoutCancel(ctx), p.Tasks, o.cfg.Display)
	if ok {
		o.transition(Succeeded)
		o.log.Infof("Finished successfully")
		o.removeBackup(p.BackupFolder)
		return true, nil
	}

	o.transition(Failed)
	o.log.Errorf("Update failed")
	return false, status.Errorf(status.TaskExecution, "%s", failureMessage(p))
}

func failureMessage(p *plan.Plan) string {
	done := p.CountByStatus(plan.Successful)
	for _, t := range p.Tasks {
		if t != nil && t.ExecutionStatus == plan.Failed {
			return fmt.Sprintf("task %q failed after %d of %d task(s) succeeded", t.Description, done, len(p.Tasks))
		}
	}
	return "update failed"
}

func (o *Orchestrator) removeBackup(backupFolder string) {
	if backupFolder == "" {
		return
	}

	o.log.Infof("Removing backup folder")
	if err := o.cfg.RemoveAll(backupFolder); err != nil {
		o.log.Warn(status.Wrap(status.Cleanup, err, "remove backup folder %s", backupFolder))
	}
}

// relaunch restarts the application and hands it the plan. A failure is reported but
// does not change the outcome of the update.
func (o *Orchestrator) relaunch(ctx context.Context, p *plan.Plan) {
	o.transition(Relaunching)
	o.log.Infof("Re-launching process %s with working dir %s", p.AppPath, p.AppDir())

	info := installer.LaunchInfo{
		Path:     p.AppPath,
		Dir:      p.AppDir(),
		Detached: !o.cfg.Display.RunsInProcessUI(),
	}
	start := func() (*os.Process, error) {
		return o.cfg.Launcher.Launch(info)
	}

	o.mergeLogItems(p)
	_, handoff, err := o.cfg.SendPlanAndLaunch(p, o.cfg.ProcessName, start, o.log)
	if err != nil {
		o.reportError(err)
		return
	}

	waitCtx, cancel := withOptionalTimeout(ctx, o.cfg.HandoffTimeout)
	defer cancel()

	if err := handoff.Wait(waitCtx); err != nil {
		o.reportError(err)
	}
}

// cleanup persists the log and the result, schedules the removal of the temp folder and
// waits for the display to be dismissed. Every failure here is only logged.
func (o *Orchestrator) cleanup(ctx context.Context, p *plan.Plan, report *Report) {
	o.transition(CleaningUp)

	logFile := o.cfg.HelperLogFile
	if p != nil && p.AppPath != "" {
		logFile = p.LogFile()
	}

	persisted := false
	if o.cfg.PersistLog && logFile != "" {
		items := o.mergeLogItems(p)
		if err := o.cfg.WriteLog(ctx, logFile, items); err != nil {
			o.log.Warn(status.Wrap(status.Cleanup, err, "persist log to %s", logFile))
		} else {
			persisted = true
		}
	}

	if logFile != "" {
		o.writeResult(ctx, filepath.Dir(logFile), p, report)
	}

	if persisted {
		o.cfg.Display.WriteLine()
		o.cfg.Display.WriteLine("Log file was saved to %s", logFile)
		o.cfg.Display.WriteLine()
	}
	o.cfg.Display.WriteLine()
	o.cfg.Display.WriteLine("Press any key or close this window to exit.")
	o.cfg.Display.WaitForClose()
	o.cfg.Display.Close()

	if p != nil && p.TempFolder != "" {
		o.log.Infof("Removing updater and temp folder... %s", p.TempFolder)
		if err := o.cfg.ScheduleSelfDelete(p.TempFolder, o.cfg.SelfDeleteDelay); err != nil {
			o.log.Warn(status.Wrap(status.Cleanup, err, "schedule removal of %s", p.TempFolder))
		}
	}
}

func (o *Orchestrator) writeResult(ctx context.Context, dir string, p *plan.Plan, report *Report) {
	result := installer.Result{
		RunID:      o.runID,
		Success:    report.Succeeded,
		ExecutedAt: time.Now().UTC(),
	}
	if report.Err != nil {
		result.Error = report.Err.Error()
	}
	if p != nil {
		result.TargetVersion = p.TargetVersion
	}

	if err := o.cfg.WriteResult(ctx, dir, result); err != nil {
		o.log.Warn(status.Wrap(status.Cleanup, err, "write result"))
	}
}

// mergeLogItems puts the application's log items in front of the ones collected during
// this run. It can be called repeatedly, each call reflects the log up to that point.
func (o *Orchestrator) mergeLogItems(p *plan.Plan) []plan.LogItem {
	var offline []plan.LogItem
	if o.cfg.LogItems != nil {
		offline = o.cfg.LogItems.Items()
	}
	if p == nil {
		return offline
	}

	p.LogItems = o.hostItems
	p.MergeLogItems(offline)
	return p.LogItems
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.transitions = append(o.transitions, Transition{From: from, To: to})
	o.mu.Unlock()

	o.log.Debugf("state %s -> %s", from, to)
}

// reportError logs err and renders it on the display as a banner
func (o *Orchestrator) reportError(err error) {
	o.log.WithField(formatter.SkipDisplayKey, true).Error(err)

	var kind string
	if s, ok := status.FromError(err); ok {
		kind = s.Type().String() + ": "
	}

	d := o.cfg.Display
	d.WriteLine(errorBanner)
	d.WriteLine("   An error has occurred:")
	d.WriteLine("   " + kind + err.Error())
	d.WriteLine(errorBanner)
	d.WriteLine()
	d.WriteLine("The updater will close when you close this window.")
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
