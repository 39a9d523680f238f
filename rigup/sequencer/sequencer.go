package sequencer

import (
	"context"
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Policy decides what a stage failure does to the run.
type Policy int

const (
	// Fatal failures halt the run in place. There is no rollback; whatever
	// the earlier stages applied stays applied for the operator to inspect.
	Fatal Policy = iota
	// Tolerated failures are logged and collected; the run continues.
	Tolerated
)

func (p Policy) String() string {
	if p == Tolerated {
		return "tolerated"
	}
	return "fatal"
}

// Stage is one step of the provisioning pipeline.
type Stage struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// Run executes stages strictly in order. It returns the aggregated tolerated
// failures (nil if none) and the fatal error that halted the run (nil if the
// pipeline completed). Stages after a fatal failure never execute.
func Run(ctx context.Context, log *logrus.Logger, stages []Stage) (tolerated error, fatal error) {
	var tol *multierror.Error

	for _, stage := range stages {
		stageLog := log.WithField("stage", stage.Name)
		stageLog.Info("stage starting")

		err := stage.Run(ctx)
		if err == nil {
			stageLog.Info("stage complete")
			continue
		}

		if stage.Policy == Tolerated {
			stageLog.WithError(err).Warn("stage failed; continuing")
			tol = multierror.Append(tol, fmt.Errorf("%s: %w", stage.Name, err))
			continue
		}

		stageLog.WithError(err).Error("stage failed; aborting run")
		return tol.ErrorOrNil(), fmt.Errorf("%s: %w", stage.Name, err)
	}

	return tol.ErrorOrNil(), nil
}
