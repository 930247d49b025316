// Package sensors models the physical sensors that sampling tasks read: a DHT11
// climate sensor, an HC-SR04 style ultrasonic rangefinder and an MPU6050
// accelerometer. A Station owns one driver per sensor kind and arbitrates access so
// that concurrent tasks never overlap reads of the same hardware.
package sensors

import "github.com/golang/geo/r3"

// Kind identifies one of the physical sensors a task can sample.
type Kind string

const (
	// KindNone marks an unrecognized or absent sensor. Reads of it are a no-op.
	KindNone Kind = ""
	// KindDHT11 is the DHT11 combined humidity and temperature sensor.
	KindDHT11 Kind = "dht11"
	// KindUltrasonic is an HC-SR04 style ultrasonic distance sensor.
	KindUltrasonic Kind = "ultrasonic"
	// KindMPU6050 is the MPU6050 inertial measurement unit.
	KindMPU6050 Kind = "mpu6050"
)

// KindFromString maps a configuration string to a Kind. Strings that do not name a
// known sensor map to KindNone.
func KindFromString(s string) Kind {
	switch kind := Kind(s); kind {
	case KindDHT11, KindUltrasonic, KindMPU6050:
		return kind
	default:
		return KindNone
	}
}

// Climate is a single relative humidity (percent) and temperature (degrees Celsius)
// measurement.
type Climate struct {
	Humidity    float64
	Temperature float64
}

// Readings accumulates the averaged values of one sampling cycle. Only the fields for
// the kinds actually read hold meaningful values.
type Readings struct {
	// Humidity is relative humidity in percent.
	Humidity float64
	// Temperature is in degrees Celsius.
	Temperature float64
	// Distance is in centimeters.
	Distance float64
	// Accel is linear acceleration in gs.
	Accel r3.Vector
}
