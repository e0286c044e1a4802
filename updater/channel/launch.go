package channel

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/status"
)

// Starter starts the process that is going to fetch the plan
type Starter func() (*os.Process, error)

// SendPlanAndLaunch serves p on name and starts the peer process. The endpoint is
// listening before the process starts so the peer never races it. The returned Outbox
// must be waited on before the caller exits, otherwise the plan is lost.
func SendPlanAndLaunch(p *plan.Plan, name string, start Starter, logger *log.Entry) (*os.Process, *Outbox, error) {
	out, err := Listen(name, p, logger)
	if err != nil {
		return nil, nil, status.Wrap(status.Relaunch, err, "prepare plan handoff")
	}

	proc, err := start()
	if err != nil {
		out.Close()
		return nil, nil, status.Wrap(status.Relaunch, err, "unable to relaunch application")
	}
	if proc == nil {
		out.Close()
		return nil, nil, status.Errorf(status.Relaunch, "unable to relaunch application")
	}

	logger.Infof("relaunched application with PID %d", proc.Pid)
	return proc, out, nil
}
