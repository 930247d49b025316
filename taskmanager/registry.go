package taskmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sensord/logging"
	"go.viam.com/sensord/sensors"
)

// An Option configures a Registry beyond its collaborators.
type Option func(*Registry)

// WithClock substitutes the clock workers schedule against.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

type slot struct {
	occupied bool
	id       uuid.UUID
	conf     TaskConfig
}

// A Registry owns up to MaxTasks periodic sampling workers. Creation is batch
// oriented and additive: workers live until StopAll tears the whole set down.
type Registry struct {
	logger  logging.Logger
	station *sensors.Station
	clock   clock.Clock

	mu    sync.Mutex
	slots [MaxTasks]slot
	count int

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewRegistry returns an empty registry whose workers will read through station.
func NewRegistry(station *sensors.Station, logger logging.Logger, opts ...Option) *Registry {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	registry := &Registry{
		logger:     logger,
		station:    station,
		clock:      clock.New(),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
	for _, opt := range opts {
		opt(registry)
	}

	return registry
}

// CreateTasks validates the batch and spawns one worker per usable entry, returning
// how many workers started. A batch larger than the free capacity is truncated with a
// warning. Entries that fail validation or whose worker cannot start are skipped
// individually; they never fail the batch.
func (r *Registry) CreateTasks(ctx context.Context, list TaskList) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := list.Tasks
	if free := MaxTasks - r.count; len(entries) > free {
		r.logger.Warnw("task list exceeds capacity, truncating",
			"requested", len(entries), "capacity", MaxTasks, "free", free)
		entries = entries[:free]
	}

	created := 0
	for i, conf := range entries {
		if ctx.Err() != nil {
			break
		}
		if err := conf.Validate(fmt.Sprintf("tasks.%d", i)); err != nil {
			r.logger.Errorw("skipping invalid task entry", "error", err)
			continue
		}
		conf = r.normalize(conf)
		if err := r.spawnLocked(conf); err != nil {
			r.logger.Errorw("failed to start worker", "task", conf.Name, "error", err)
			continue
		}
		created++
	}

	return created
}

// normalize repairs the fields Validate tolerates: over-long names and sensor lists
// are truncated, unrecognized sensor kinds are mapped to none. Each repair warns.
func (r *Registry) normalize(conf TaskConfig) TaskConfig {
	if len(conf.Name) > MaxTaskNameLen {
		truncated := conf.Name[:MaxTaskNameLen]
		r.logger.Warnw("task name too long, truncating", "name", conf.Name, "truncated", truncated)
		conf.Name = truncated
	}
	if len(conf.Sensors) > MaxSensorsPerTask {
		r.logger.Warnw("too many sensors for task, truncating",
			"task", conf.Name, "requested", len(conf.Sensors), "max", MaxSensorsPerTask)
		conf.Sensors = conf.Sensors[:MaxSensorsPerTask]
	}

	kinds := make([]sensors.Kind, 0, len(conf.Sensors))
	for _, kind := range conf.Sensors {
		known := sensors.KindFromString(string(kind))
		if known == sensors.KindNone && kind != sensors.KindNone {
			r.logger.Warnw("unknown sensor kind for task", "task", conf.Name, "sensor", string(kind))
		}
		kinds = append(kinds, known)
	}
	conf.Sensors = kinds

	return conf
}

func (r *Registry) spawnLocked(conf TaskConfig) error {
	idx := -1
	for i := range r.slots {
		if !r.slots[i].occupied {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.Errorf("no free slot for task %q", conf.Name)
	}

	w, err := newWorker(conf, r.station, r.logger, r.clock)
	if err != nil {
		return err
	}

	id := uuid.New()
	r.slots[idx] = slot{occupied: true, id: id, conf: conf}
	r.count++

	r.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		w.run(r.cancelCtx)
	}, r.activeBackgroundWorkers.Done)

	r.logger.Infow("created task",
		"task", conf.Name,
		"id", id,
		"priority", conf.Priority,
		"period", conf.Period(),
		"sensors", len(conf.Sensors))

	return nil
}

// Len returns how many workers are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Names returns the names of all registered tasks in slot order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, r.count)
	for i := range r.slots {
		if r.slots[i].occupied {
			names = append(names, r.slots[i].conf.Name)
		}
	}

	return names
}

// StopAll cancels every worker, waits for them to finish their current cycle and
// clears the registry. The registry is reusable afterwards.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelFunc()
	r.activeBackgroundWorkers.Wait()

	for i := range r.slots {
		r.slots[i] = slot{}
	}
	r.count = 0
	r.cancelCtx, r.cancelFunc = context.WithCancel(context.Background())

	r.logger.Info("all tasks stopped")
}
