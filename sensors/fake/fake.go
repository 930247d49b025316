// Package fake implements in-memory sensor drivers that always succeed. They stand in
// for real hardware in development and in tests.
package fake

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"

	"go.viam.com/sensord/sensors"
)

var (
	_ sensors.ClimateSensor = (*Climate)(nil)
	_ sensors.RangeSensor   = (*Rangefinder)(nil)
	_ sensors.MotionSensor  = (*Motion)(nil)
)

// Climate is a fake DHT11 that always returns the set values.
type Climate struct {
	mu      sync.Mutex
	climate sensors.Climate
	err     error
}

// NewClimate returns a fake climate sensor reporting a comfortable room.
func NewClimate() *Climate {
	return &Climate{climate: sensors.Climate{Humidity: 45.0, Temperature: 23.5}}
}

// Setup does nothing.
func (c *Climate) Setup(ctx context.Context) error { return nil }

// Close does nothing.
func (c *Climate) Close(ctx context.Context) error { return nil }

// ReadClimate returns the set values or the set error.
func (c *Climate) ReadClimate(ctx context.Context) (sensors.Climate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return sensors.Climate{}, c.err
	}
	return c.climate, nil
}

// SetClimate changes what subsequent reads return.
func (c *Climate) SetClimate(humidity, temperature float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.climate = sensors.Climate{Humidity: humidity, Temperature: temperature}
}

// SetError makes subsequent reads fail with err. Pass nil to heal the sensor.
func (c *Climate) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Rangefinder is a fake ultrasonic sensor that always returns the set distance.
type Rangefinder struct {
	mu       sync.Mutex
	distance float64
	err      error
}

// NewRangefinder returns a fake rangefinder with an obstacle 52cm away.
func NewRangefinder() *Rangefinder {
	return &Rangefinder{distance: 52.0}
}

// Setup does nothing.
func (r *Rangefinder) Setup(ctx context.Context) error { return nil }

// Close does nothing.
func (r *Rangefinder) Close(ctx context.Context) error { return nil }

// ReadDistance returns the set distance or the set error.
func (r *Rangefinder) ReadDistance(ctx context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return r.distance, nil
}

// SetDistance changes what subsequent reads return.
func (r *Rangefinder) SetDistance(distance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distance = distance
}

// SetError makes subsequent reads fail with err. Pass nil to heal the sensor.
func (r *Rangefinder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Motion is a fake MPU6050 that always returns the set acceleration.
type Motion struct {
	mu    sync.Mutex
	accel r3.Vector
	err   error
}

// NewMotion returns a fake accelerometer at rest, reading 1g straight down.
func NewMotion() *Motion {
	return &Motion{accel: r3.Vector{X: 0, Y: 0, Z: 1.0}}
}

// Setup does nothing.
func (m *Motion) Setup(ctx context.Context) error { return nil }

// Close does nothing.
func (m *Motion) Close(ctx context.Context) error { return nil }

// ReadAcceleration returns the set acceleration or the set error.
func (m *Motion) ReadAcceleration(ctx context.Context) (r3.Vector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return r3.Vector{}, m.err
	}
	return m.accel, nil
}

// SetAcceleration changes what subsequent reads return.
func (m *Motion) SetAcceleration(accel r3.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accel = accel
}

// SetError makes subsequent reads fail with err. Pass nil to heal the sensor.
func (m *Motion) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
