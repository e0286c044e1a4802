package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/util"
)

const (
	ResultFile = "result.json"
)

// Result is the outcome of an offline run as seen by the application
type Result struct {
	RunID         string    `json:"runId"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	TargetVersion string    `json:"targetVersion,omitempty"`
	ExecutedAt    time.Time `json:"executedAt"`
}

// ResultHandler handles reading and writing update results
type ResultHandler struct {
	log        *log.Entry
	resultFile string
}

// NewResultHandler creates a handler for the result file inside dir
func NewResultHandler(dir string, logger *log.Entry) *ResultHandler {
	return &ResultHandler{
		log:        logger,
		resultFile: filepath.Join(dir, ResultFile),
	}
}

// Path returns the location of the result file
func (rh *ResultHandler) Path() string {
	return rh.resultFile
}

// Watch waits until the result file shows up and returns its content. The file is
// removed once read.
func (rh *ResultHandler) Watch(ctx context.Context) (Result, error) {
	rh.log.Infof("start watching result: %s", rh.resultFile)

	defer func() {
		if err := rh.Cleanup(); err != nil {
			rh.log.Warnf("failed to cleanup result file: %v", err)
		}
	}()

	// the updater may have finished before we started watching
	if result, err := rh.tryReadResult(); err == nil {
		rh.log.Infof("update result: %+v", result)
		return result, nil
	}

	dir := filepath.Dir(rh.resultFile)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

DirectoryReady:
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			break DirectoryReady
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Result{}, fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		if err := watcher.Close(); err != nil {
			rh.log.Warnf("failed to close watcher: %v", err)
		}
	}()

	// Watch the directory, not the file, since it doesn't exist yet
	if err := watcher.Add(dir); err != nil {
		return Result{}, fmt.Errorf("failed to watch directory: %w", err)
	}

	// the file may have been renamed into place while the watcher was set up
	if result, err := rh.tryReadResult(); err == nil {
		rh.log.Infof("update result: %+v", result)
		return result, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return Result{}, errors.New("watcher closed unexpectedly")
			}

			if filepath.Clean(event.Name) != filepath.Clean(rh.resultFile) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				result, err := rh.tryReadResult()
				if err != nil {
					rh.log.Debugf("error while reading result: %v", err)
					continue
				}
				rh.log.Infof("update result: %+v", result)
				return result, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return Result{}, errors.New("watcher closed unexpectedly")
			}
			return Result{}, fmt.Errorf("watcher error: %w", err)
		}
	}
}

// Write atomically writes the update result for the application to read
func (rh *ResultHandler) Write(ctx context.Context, result Result) error {
	rh.log.Infof("write out update result to: %s", rh.resultFile)
	if err := util.WriteJson(ctx, rh.resultFile, result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Cleanup removes the result file and temp files left by interrupted writes
func (rh *ResultHandler) Cleanup() error {
	var merr *multierror.Error

	if err := os.Remove(rh.resultFile); err != nil && !os.IsNotExist(err) {
		merr = multierror.Append(merr, err)
	} else if err == nil {
		rh.log.Debugf("delete update result file: %s", rh.resultFile)
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(rh.resultFile), ".*"+ResultFile))
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	for _, f := range leftovers {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			merr = multierror.Append(merr, err)
		}
	}

	return merr.ErrorOrNil()
}

// tryReadResult attempts to read and validate the result file
func (rh *ResultHandler) tryReadResult() (Result, error) {
	result, err := util.ReadJson[Result](rh.resultFile)
	if err != nil {
		return Result{}, err
	}
	if result.RunID == "" {
		return Result{}, fmt.Errorf("result %s carries no run id", rh.resultFile)
	}
	return result, nil
}
