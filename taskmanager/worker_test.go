package taskmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/sensord/logging"
	"go.viam.com/sensord/sensors"
	"go.viam.com/sensord/sensors/fake"
)

type countingRange struct {
	mu    sync.Mutex
	reads int
	err   error
}

func (cr *countingRange) Setup(ctx context.Context) error { return nil }
func (cr *countingRange) Close(ctx context.Context) error { return nil }

func (cr *countingRange) ReadDistance(ctx context.Context) (float64, error) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.reads++
	if cr.err != nil {
		return 0, cr.err
	}
	return 52.0, nil
}

func (cr *countingRange) count() int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.reads
}

func noSettleOpts() []sensors.Option {
	return []sensors.Option{
		sensors.WithSettleDelay(sensors.KindDHT11, 0),
		sensors.WithSettleDelay(sensors.KindUltrasonic, 0),
		sensors.WithSettleDelay(sensors.KindMPU6050, 0),
	}
}

func TestNewWorkerErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	conf := validTaskConfig()

	_, err := newWorker(conf, nil, logger, clock.New())
	test.That(t, err, test.ShouldNotBeNil)

	station := fastStation(logger)
	conf.PeriodMS = 0
	_, err = newWorker(conf, station, logger, clock.New())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCycleEmitsOneRecord(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	station := sensors.NewStation(sensors.StationConfig{
		Climate: fake.NewClimate(),
		Range:   fake.NewRangefinder(),
	}, logger, noSettleOpts()...)

	conf := TaskConfig{
		Name:     "climate_monitor",
		Priority: 5,
		PeriodMS: 1000,
		Sensors:  []sensors.Kind{sensors.KindDHT11},
	}
	w, err := newWorker(conf, station, logger, clock.New())
	test.That(t, err, test.ShouldBeNil)

	w.cycle(context.Background())

	records := logs.FilterMessageSnippet("sensor readings").All()
	test.That(t, len(records), test.ShouldEqual, 1)
	fields := records[0].ContextMap()
	test.That(t, fields["task"], test.ShouldEqual, "climate_monitor")
	test.That(t, fields["humidity"], test.ShouldAlmostEqual, 45.0)
	test.That(t, fields["temperature"], test.ShouldAlmostEqual, 23.5)

	// Only the configured kinds appear in the record.
	_, ok := fields["distance_cm"]
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = fields["accel_x"]
	test.That(t, ok, test.ShouldBeFalse)
}

func TestCycleFailureRecord(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	climate := fake.NewClimate()
	climate.SetError(errors.New("checksum mismatch"))
	station := sensors.NewStation(sensors.StationConfig{Climate: climate}, logger, noSettleOpts()...)

	conf := TaskConfig{
		Name:     "climate_monitor",
		Priority: 5,
		PeriodMS: 1000,
		Sensors:  []sensors.Kind{sensors.KindDHT11},
	}
	w, err := newWorker(conf, station, logger, clock.New())
	test.That(t, err, test.ShouldBeNil)

	w.cycle(context.Background())

	test.That(t, logs.FilterMessageSnippet("sensor readings").Len(), test.ShouldEqual, 0)
	failures := logs.FilterMessageSnippet("read error").All()
	test.That(t, len(failures), test.ShouldEqual, 1)
	test.That(t, failures[0].Level, test.ShouldEqual, zapcore.ErrorLevel)
	test.That(t, failures[0].ContextMap()["task"], test.ShouldEqual, "climate_monitor")
}

// One failing kind downgrades the record but the other kinds still get read.
func TestCycleContinuesPastFailedKind(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	climate := fake.NewClimate()
	climate.SetError(errors.New("checksum mismatch"))
	ranger := &countingRange{}
	station := sensors.NewStation(sensors.StationConfig{Climate: climate, Range: ranger},
		logger, noSettleOpts()...)

	conf := TaskConfig{
		Name:     "full_sweep",
		Priority: 5,
		PeriodMS: 1000,
		Sensors:  []sensors.Kind{sensors.KindDHT11, sensors.KindUltrasonic},
	}
	w, err := newWorker(conf, station, logger, clock.New())
	test.That(t, err, test.ShouldBeNil)

	w.cycle(context.Background())

	test.That(t, ranger.count(), test.ShouldEqual, SamplesPerRead)
	test.That(t, logs.FilterMessageSnippet("read error").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessageSnippet("sensor readings").Len(), test.ShouldEqual, 0)
}

func TestRunHonorsCancel(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	ranger := &countingRange{}
	station := sensors.NewStation(sensors.StationConfig{Range: ranger}, logger, noSettleOpts()...)

	conf := TaskConfig{
		Name:     "ping",
		Priority: 1,
		PeriodMS: 10,
		Sensors:  []sensors.Kind{sensors.KindUltrasonic},
	}
	w, err := newWorker(conf, station, logger, clock.New())
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx)
	}()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessageSnippet("sensor readings").Len(), test.ShouldBeGreaterThanOrEqualTo, 3)
	})

	cancel()
	<-done
}

// Deadlines come off the nominal schedule: each mock period boundary releases exactly
// one cycle, with no drift accumulating from cycle execution time.
func TestRunFollowsNominalSchedule(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	ranger := &countingRange{}
	station := sensors.NewStation(sensors.StationConfig{Range: ranger}, logger, noSettleOpts()...)

	conf := TaskConfig{
		Name:     "ping",
		Priority: 1,
		PeriodMS: 1000,
		Sensors:  []sensors.Kind{sensors.KindUltrasonic},
	}
	mockClock := clock.NewMock()
	w, err := newWorker(conf, station, logger, mockClock)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx)
	}()

	// The first cycle runs at start without waiting for a period.
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessageSnippet("sensor readings").Len(), test.ShouldEqual, 1)
	})

	for i := 0; i < 3; i++ {
		// Give the worker a beat to arm its timer before advancing the clock.
		time.Sleep(20 * time.Millisecond)
		mockClock.Add(conf.Period())
	}

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessageSnippet("sensor readings").Len(), test.ShouldEqual, 4)
	})

	cancel()
	<-done
}

func TestWaitForDeadline(t *testing.T) {
	clk := clock.New()
	ctx := context.Background()

	// A deadline in the past returns without sleeping.
	test.That(t, waitForDeadline(ctx, clk, clk.Now().Add(-time.Second)), test.ShouldBeTrue)

	start := time.Now()
	test.That(t, waitForDeadline(ctx, clk, clk.Now().Add(10*time.Millisecond)), test.ShouldBeTrue)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 10*time.Millisecond)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, waitForDeadline(cancelled, clk, clk.Now().Add(-time.Second)), test.ShouldBeFalse)
	test.That(t, waitForDeadline(cancelled, clk, clk.Now().Add(time.Hour)), test.ShouldBeFalse)
}
