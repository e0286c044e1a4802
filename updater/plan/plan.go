package plan

import (
	"encoding/json"
	"path/filepath"

	goversion "github.com/hashicorp/go-version"

	"github.com/netbirdio/netbird-updater/updater/status"
)

const logFileName = "NauUpdate.log"

// TaskRecord is one unit of change. Only ExecutionStatus is mutated during the offline run.
type TaskRecord struct {
	Description     string          `json:"description"`
	ExecutionStatus Status          `json:"executionStatus"`
	Kind            string          `json:"kind"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// Plan is the unit of work handed from the host application to the updater
type Plan struct {
	AppPath             string        `json:"appPath"`
	WorkingDirectory    string        `json:"workingDirectory,omitempty"`
	TempFolder          string        `json:"tempFolder,omitempty"`
	BackupFolder        string        `json:"backupFolder,omitempty"`
	RelaunchApplication bool          `json:"relaunchApplication"`
	TargetVersion       string        `json:"targetVersion,omitempty"`
	Tasks               []*TaskRecord `json:"tasks"`
	LogItems            []LogItem     `json:"logItems,omitempty"`
}

// Validate checks the invariants that must hold before any mutation happens
func (p *Plan) Validate() error {
	if p == nil {
		return status.Errorf(status.InvalidPlan, "invalid plan received")
	}

	if p.AppPath == "" {
		return status.Errorf(status.InvalidPlan, "plan does not specify the application path")
	}

	if len(p.Tasks) == 0 {
		return status.Errorf(status.InvalidPlan, "could not find the updates list (or it was empty)")
	}

	for i, t := range p.Tasks {
		if t == nil {
			return status.Errorf(status.InvalidPlan, "task record %d is empty", i)
		}
	}

	if p.TargetVersion != "" {
		if _, err := goversion.NewVersion(p.TargetVersion); err != nil {
			return status.Wrap(status.InvalidPlan, err, "invalid target version %q", p.TargetVersion)
		}
	}

	return nil
}

// AppDir returns the directory the host is relaunched in
func (p *Plan) AppDir() string {
	if p.WorkingDirectory != "" {
		return p.WorkingDirectory
	}
	return filepath.Dir(p.AppPath)
}

// LogFile returns the location of the persisted update log next to the host executable
func (p *Plan) LogFile() string {
	return filepath.Join(filepath.Dir(p.AppPath), logFileName)
}

// MergeLogItems prepends the log items the host already had to the offline ones
// and stores the merged sequence in the plan.
func (p *Plan) MergeLogItems(offline []LogItem) {
	merged := make([]LogItem, 0, len(p.LogItems)+len(offline))
	merged = append(merged, p.LogItems...)
	merged = append(merged, offline...)
	p.LogItems = merged
}

// CountByStatus returns how many records are currently in the given status
func (p *Plan) CountByStatus(s Status) int {
	var n int
	for _, t := range p.Tasks {
		if t != nil && t.ExecutionStatus == s {
			n++
		}
	}
	return n
}
