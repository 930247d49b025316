package sensors

import (
	"context"

	"github.com/golang/geo/r3"
)

// A Driver is the hardware-facing half of a sensor. Implementations talk to real
// hardware, a simulator or nothing at all; the station never assumes more than this
// surface. Read methods block for the duration of one raw measurement and should honor
// ctx for early teardown.
type Driver interface {
	// Setup prepares the underlying hardware for reads.
	Setup(ctx context.Context) error
	// Close releases the hardware.
	Close(ctx context.Context) error
}

// A ClimateSensor reads relative humidity and temperature, e.g. a DHT11.
type ClimateSensor interface {
	Driver
	ReadClimate(ctx context.Context) (Climate, error)
}

// A RangeSensor reads the distance to the nearest obstacle in centimeters, e.g. an
// HC-SR04 ultrasonic rangefinder.
type RangeSensor interface {
	Driver
	ReadDistance(ctx context.Context) (float64, error)
}

// A MotionSensor reads linear acceleration in gs, e.g. an MPU6050.
type MotionSensor interface {
	Driver
	ReadAcceleration(ctx context.Context) (r3.Vector, error)
}
