// Package taskmanager turns declarative task lists into live periodic sampling
// workers. A bounded registry owns the workers; each worker reads its configured
// sensor kinds through a shared station at a fixed period and emits one log record
// per cycle.
package taskmanager

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sensord/sensors"
)

const (
	// MaxTasks is the registry capacity. Task lists beyond it are truncated.
	MaxTasks = 32
	// MaxSensorsPerTask bounds how many sensor kinds one task samples per cycle.
	MaxSensorsPerTask = 3
	// MaxTaskNameLen bounds task names. Longer names are truncated.
	MaxTaskNameLen = 32
	// SamplesPerRead is how many raw samples one averaged read takes.
	SamplesPerRead = 10

	// MinPriority and MaxPriority bound the advisory task priority.
	MinPriority = 1
	MaxPriority = 10
)

// A TaskList is the unit of task creation: a batch of task configs, typically
// deserialized from a controller upload or a file.
type TaskList struct {
	Tasks []TaskConfig `json:"tasks"`
}

// A TaskConfig describes one periodic sampling task.
type TaskConfig struct {
	Name     string         `json:"name"`
	Priority int            `json:"priority"`
	PeriodMS int            `json:"period_ms"`
	Sensors  []sensors.Kind `json:"sensors"`
}

// Period returns the task's sampling period.
func (conf *TaskConfig) Period() time.Duration {
	return time.Duration(conf.PeriodMS) * time.Millisecond
}

// Validate ensures all parts of the config are valid. Fields the registry can repair
// by truncation (long names, extra sensors, unknown kinds) pass validation.
func (conf *TaskConfig) Validate(path string) error {
	if conf.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if conf.Priority == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "priority")
	}
	if conf.Priority < MinPriority || conf.Priority > MaxPriority {
		return utils.NewConfigValidationError(path,
			errors.Errorf("priority must be between %d and %d, got %d", MinPriority, MaxPriority, conf.Priority))
	}
	if conf.PeriodMS == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "period_ms")
	}
	if conf.PeriodMS < 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("period_ms must be positive, got %d", conf.PeriodMS))
	}
	if conf.Sensors == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "sensors")
	}

	return nil
}

// ReadTaskList deserializes a task list. The top-level tasks array is required; a
// body that does not parse or lacks it fails as a whole.
func ReadTaskList(r io.Reader) (TaskList, error) {
	var list TaskList
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return TaskList{}, errors.Wrap(err, "cannot parse task list as json")
	}
	if list.Tasks == nil {
		return TaskList{}, errors.New("task list has no tasks array")
	}

	return list, nil
}

// ReadTaskListFromFile deserializes a task list from a file on disk.
func ReadTaskListFromFile(path string) (TaskList, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return TaskList{}, errors.Wrapf(err, "cannot open task list %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	return ReadTaskList(f)
}
