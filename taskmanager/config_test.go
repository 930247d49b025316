package taskmanager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/sensord/sensors"
)

func validTaskConfig() TaskConfig {
	return TaskConfig{
		Name:     "climate_monitor",
		Priority: 5,
		PeriodMS: 2000,
		Sensors:  []sensors.Kind{sensors.KindDHT11},
	}
}

func TestValidate(t *testing.T) {
	conf := TaskConfig{}
	err := conf.Validate("tasks.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"name" is required`)

	conf.Name = "climate_monitor"
	err = conf.Validate("tasks.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"priority" is required`)

	conf.Priority = 11
	err = conf.Validate("tasks.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "priority must be between 1 and 10")

	conf.Priority = 5
	err = conf.Validate("tasks.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"period_ms" is required`)

	conf.PeriodMS = -100
	err = conf.Validate("tasks.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "period_ms must be positive")

	conf.PeriodMS = 2000
	err = conf.Validate("tasks.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"sensors" is required`)

	// An empty sensor list is allowed; the task just reads nothing each cycle.
	conf.Sensors = []sensors.Kind{}
	test.That(t, conf.Validate("tasks.0"), test.ShouldBeNil)

	conf.Sensors = []sensors.Kind{sensors.KindDHT11, sensors.KindMPU6050}
	test.That(t, conf.Validate("tasks.0"), test.ShouldBeNil)
}

func TestPeriod(t *testing.T) {
	conf := validTaskConfig()
	test.That(t, conf.Period(), test.ShouldEqual, 2*time.Second)
}

func TestReadTaskList(t *testing.T) {
	body := `{
		"tasks": [
			{"name": "climate_monitor", "priority": 5, "period_ms": 2000, "sensors": ["dht11"]},
			{"name": "full_sweep", "priority": 8, "period_ms": 500, "sensors": ["dht11", "ultrasonic", "mpu6050"]}
		]
	}`

	list, err := ReadTaskList(strings.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(list.Tasks), test.ShouldEqual, 2)
	test.That(t, list.Tasks[0].Name, test.ShouldEqual, "climate_monitor")
	test.That(t, list.Tasks[0].Sensors, test.ShouldResemble, []sensors.Kind{sensors.KindDHT11})
	test.That(t, list.Tasks[1].PeriodMS, test.ShouldEqual, 500)
	test.That(t, len(list.Tasks[1].Sensors), test.ShouldEqual, 3)
}

func TestReadTaskListErrors(t *testing.T) {
	_, err := ReadTaskList(strings.NewReader("{not json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot parse task list as json")

	// A parseable body without the tasks array is still a batch failure.
	_, err = ReadTaskList(strings.NewReader("{}"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadTaskList(strings.NewReader(`{"tasks": null}`))
	test.That(t, err, test.ShouldNotBeNil)

	// Present but empty is fine.
	list, err := ReadTaskList(strings.NewReader(`{"tasks": []}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(list.Tasks), test.ShouldEqual, 0)
}

func TestReadTaskListFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	body := `{"tasks": [{"name": "ping", "priority": 1, "period_ms": 1000, "sensors": ["ultrasonic"]}]}`
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)

	list, err := ReadTaskListFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(list.Tasks), test.ShouldEqual, 1)
	test.That(t, list.Tasks[0].Name, test.ShouldEqual, "ping")

	_, err = ReadTaskListFromFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
