package sensors

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/sensord/logging"
)

var (
	// ErrUnavailable is returned when a task samples a sensor kind the station has no
	// driver for.
	ErrUnavailable = errors.New("sensor not attached")
	// ErrNoValidSamples is returned when every raw sample of an averaging pass failed.
	ErrNoValidSamples = errors.New("no valid samples")
)

// Settle windows between consecutive raw samples of the same sensor. Reading these
// parts back-to-back returns garbage, so each read leaves the hardware alone for a
// beat before the next one.
var defaultSettleDelays = map[Kind]time.Duration{
	KindDHT11:      100 * time.Millisecond,
	KindUltrasonic: 50 * time.Millisecond,
	KindMPU6050:    10 * time.Millisecond,
}

// StationConfig lists the drivers a station hosts. Any of them may be nil; reads of
// an absent kind fail with ErrUnavailable.
type StationConfig struct {
	Climate ClimateSensor
	Range   RangeSensor
	Motion  MotionSensor
}

// An Option configures a Station beyond its drivers.
type Option func(*Station)

// WithClock substitutes the clock used for settle pacing.
func WithClock(c clock.Clock) Option {
	return func(s *Station) {
		s.clock = c
	}
}

// WithSettleDelay overrides the settle window for one sensor kind.
func WithSettleDelay(kind Kind, delay time.Duration) Option {
	return func(s *Station) {
		s.settleDelays[kind] = delay
	}
}

// A Station owns the sensor drivers and serializes access to them. There is one
// mutex per sensor kind; it is held for the duration of a single raw read and never
// across settle windows, so concurrent tasks interleave sample-by-sample instead of
// blocking for a whole averaging pass.
type Station struct {
	logger       logging.Logger
	clock        clock.Clock
	settleDelays map[Kind]time.Duration

	climateMu sync.Mutex
	climate   ClimateSensor

	rangeMu     sync.Mutex
	rangefinder RangeSensor

	motionMu sync.Mutex
	motion   MotionSensor
}

// NewStation wraps the given drivers.
func NewStation(conf StationConfig, logger logging.Logger, opts ...Option) *Station {
	station := &Station{
		logger:       logger,
		clock:        clock.New(),
		settleDelays: make(map[Kind]time.Duration, len(defaultSettleDelays)),
		climate:      conf.Climate,
		rangefinder:  conf.Range,
		motion:       conf.Motion,
	}
	for kind, delay := range defaultSettleDelays {
		station.settleDelays[kind] = delay
	}
	for _, opt := range opts {
		opt(station)
	}

	return station
}

// Setup prepares every attached driver, failing fast if any of them cannot start.
func (s *Station) Setup(ctx context.Context) error {
	var group errgroup.Group
	for _, driver := range s.drivers() {
		driver := driver
		group.Go(func() error {
			return driver.Setup(ctx)
		})
	}

	return group.Wait()
}

// Close releases every attached driver.
func (s *Station) Close(ctx context.Context) error {
	var err error
	for _, driver := range s.drivers() {
		err = multierr.Combine(err, driver.Close(ctx))
	}

	return err
}

func (s *Station) drivers() []Driver {
	var drivers []Driver
	if s.climate != nil {
		drivers = append(drivers, s.climate)
	}
	if s.rangefinder != nil {
		drivers = append(drivers, s.rangefinder)
	}
	if s.motion != nil {
		drivers = append(drivers, s.motion)
	}

	return drivers
}

// Average takes `samples` raw reads of the given kind, discards the failed ones and
// writes the mean of the rest into out. The sensor is locked per raw read and released
// during settle windows. An averaging pass where every sample failed returns
// ErrNoValidSamples; out is only written on success. KindNone is a no-op.
func (s *Station) Average(ctx context.Context, kind Kind, samples int, out *Readings) error {
	if out == nil {
		return errors.New("nil readings output")
	}
	if samples <= 0 {
		return errors.Errorf("sample count must be positive, got %d", samples)
	}

	switch kind {
	case KindNone:
		return nil
	case KindDHT11:
		return s.averageClimate(ctx, samples, out)
	case KindUltrasonic:
		return s.averageDistance(ctx, samples, out)
	case KindMPU6050:
		return s.averageAcceleration(ctx, samples, out)
	default:
		return errors.Errorf("unknown sensor kind %q", string(kind))
	}
}

func (s *Station) averageClimate(ctx context.Context, samples int, out *Readings) error {
	if s.climate == nil {
		return errors.Wrap(ErrUnavailable, string(KindDHT11))
	}

	humidities := make([]float64, 0, samples)
	temperatures := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		if i > 0 && !s.settle(ctx, KindDHT11) {
			return ctx.Err()
		}
		s.climateMu.Lock()
		climate, err := s.climate.ReadClimate(ctx)
		s.climateMu.Unlock()
		if err != nil {
			s.logger.Debugw("discarding climate sample", "error", err)
			continue
		}
		humidities = append(humidities, climate.Humidity)
		temperatures = append(temperatures, climate.Temperature)
	}

	// stats.Mean errors on an empty input, which is exactly the all-samples-failed
	// case.
	humidity, err := stats.Mean(humidities)
	if err != nil {
		return errors.Wrapf(ErrNoValidSamples, "%s after %d attempts", KindDHT11, samples)
	}
	temperature, err := stats.Mean(temperatures)
	if err != nil {
		return errors.Wrapf(ErrNoValidSamples, "%s after %d attempts", KindDHT11, samples)
	}
	out.Humidity = humidity
	out.Temperature = temperature

	return nil
}

func (s *Station) averageDistance(ctx context.Context, samples int, out *Readings) error {
	if s.rangefinder == nil {
		return errors.Wrap(ErrUnavailable, string(KindUltrasonic))
	}

	distances := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		if i > 0 && !s.settle(ctx, KindUltrasonic) {
			return ctx.Err()
		}
		s.rangeMu.Lock()
		distance, err := s.rangefinder.ReadDistance(ctx)
		s.rangeMu.Unlock()
		if err != nil {
			s.logger.Debugw("discarding distance sample", "error", err)
			continue
		}
		distances = append(distances, distance)
	}

	distance, err := stats.Mean(distances)
	if err != nil {
		return errors.Wrapf(ErrNoValidSamples, "%s after %d attempts", KindUltrasonic, samples)
	}
	out.Distance = distance

	return nil
}

func (s *Station) averageAcceleration(ctx context.Context, samples int, out *Readings) error {
	if s.motion == nil {
		return errors.Wrap(ErrUnavailable, string(KindMPU6050))
	}

	xs := make([]float64, 0, samples)
	ys := make([]float64, 0, samples)
	zs := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		if i > 0 && !s.settle(ctx, KindMPU6050) {
			return ctx.Err()
		}
		s.motionMu.Lock()
		accel, err := s.motion.ReadAcceleration(ctx)
		s.motionMu.Unlock()
		if err != nil {
			s.logger.Debugw("discarding acceleration sample", "error", err)
			continue
		}
		xs = append(xs, accel.X)
		ys = append(ys, accel.Y)
		zs = append(zs, accel.Z)
	}

	x, err := stats.Mean(xs)
	if err != nil {
		return errors.Wrapf(ErrNoValidSamples, "%s after %d attempts", KindMPU6050, samples)
	}
	y, err := stats.Mean(ys)
	if err != nil {
		return errors.Wrapf(ErrNoValidSamples, "%s after %d attempts", KindMPU6050, samples)
	}
	z, err := stats.Mean(zs)
	if err != nil {
		return errors.Wrapf(ErrNoValidSamples, "%s after %d attempts", KindMPU6050, samples)
	}
	out.Accel = r3.Vector{X: x, Y: y, Z: z}

	return nil
}

// settle leaves the sensor unlocked for its stabilization window. Returns false if
// ctx ends first.
func (s *Station) settle(ctx context.Context, kind Kind) bool {
	delay := s.settleDelays[kind]
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := s.clock.Timer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
