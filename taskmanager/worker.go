package taskmanager

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/sensord/logging"
	"go.viam.com/sensord/sensors"
)

// A worker runs one task: a fixed-period loop of averaged sensor reads. Workers keep
// no state between cycles beyond the schedule anchor and stop only when the registry
// cancels their context.
type worker struct {
	conf    TaskConfig
	station *sensors.Station
	logger  logging.Logger
	clock   clock.Clock
}

func newWorker(conf TaskConfig, station *sensors.Station, logger logging.Logger, clk clock.Clock) (*worker, error) {
	if station == nil {
		return nil, errors.New("worker requires a station")
	}
	if conf.Period() <= 0 {
		return nil, errors.Errorf("task %q has non-positive period", conf.Name)
	}

	return &worker{
		conf:    conf,
		station: station,
		logger:  logger.Sublogger(conf.Name),
		clock:   clk,
	}, nil
}

// run cycles until ctx is cancelled. Deadlines derive from the nominal start of each
// period rather than from cycle completion, so cycle duration does not stretch the
// schedule. A cycle that overruns its period runs again immediately, once, and the
// schedule re-anchors at that point instead of bursting to catch up.
func (w *worker) run(ctx context.Context) {
	start := w.clock.Now()
	for {
		w.cycle(ctx)

		deadline := start.Add(w.conf.Period())
		late := !w.clock.Now().Before(deadline)
		if !waitForDeadline(ctx, w.clock, deadline) {
			return
		}
		if late {
			start = w.clock.Now()
		} else {
			start = deadline
		}
	}
}

// cycle performs one averaged read per configured sensor kind and emits a single
// record for the whole cycle. A kind that fails does not stop the remaining kinds
// from being read; it downgrades the record to a failure record.
func (w *worker) cycle(ctx context.Context) {
	var readings sensors.Readings
	failed := false
	for _, kind := range w.conf.Sensors {
		err := w.station.Average(ctx, kind, SamplesPerRead, &readings)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		failed = true
		w.logger.Debugw("averaged read failed", "sensor", string(kind), "error", err)
	}
	if ctx.Err() != nil {
		return
	}

	if failed {
		w.logger.Errorw("read error", "task", w.conf.Name)
		return
	}
	w.logger.Infow("sensor readings", w.readingFields(&readings)...)
}

// readingFields renders the fields for the kinds this task samples, in config order.
func (w *worker) readingFields(readings *sensors.Readings) []interface{} {
	fields := []interface{}{"task", w.conf.Name}
	for _, kind := range w.conf.Sensors {
		switch kind {
		case sensors.KindDHT11:
			fields = append(fields,
				"humidity", readings.Humidity,
				"temperature", readings.Temperature)
		case sensors.KindUltrasonic:
			fields = append(fields, "distance_cm", readings.Distance)
		case sensors.KindMPU6050:
			fields = append(fields,
				"accel_x", readings.Accel.X,
				"accel_y", readings.Accel.Y,
				"accel_z", readings.Accel.Z)
		case sensors.KindNone:
		}
	}

	return fields
}

// waitForDeadline blocks until the deadline passes or ctx ends, whichever is first.
// Returns false on a dead context. A deadline already in the past does not wait.
func waitForDeadline(ctx context.Context, clk clock.Clock, deadline time.Time) bool {
	wait := deadline.Sub(clk.Now())
	if wait <= 0 {
		return ctx.Err() == nil
	}

	timer := clk.Timer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
