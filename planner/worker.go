package planner

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-labs/avoidance"
)

// Worker owns the planning thread. The boundary pushes inputs through the
// setters; once every expected camera delivered a cloud the worker is woken
// and runs one tick. A trigger that arrives while a tick is still running is
// dropped and its inputs are carried into the next tick.
type Worker struct {
	planner *LocalPlanner

	// runningMu is the exclusive tick lock: held by the worker while
	// planning and by the boundary while applying inputs.
	runningMu sync.Mutex

	dataMu     sync.Mutex
	dataReady  *sync.Cond
	ready      bool
	shouldExit bool

	pendingClouds [][]r3.Vector
	received      []bool

	lastCloudTime time.Time
	startTime     time.Time

	onTick func(avoidance.Output)

	started                 bool
	activeBackgroundWorkers sync.WaitGroup

	clock  clock.Clock
	logger golog.Logger
}

// NewWorker wires a worker around the planner for the given number of
// cameras. onTick, if non-nil, receives each tick's output after the running
// lock is released.
func NewWorker(
	p *LocalPlanner,
	numCameras int,
	onTick func(avoidance.Output),
	clk clock.Clock,
	logger golog.Logger,
) (*Worker, error) {
	if numCameras <= 0 {
		return nil, errors.New("at least one camera is required")
	}
	w := &Worker{
		planner:       p,
		pendingClouds: make([][]r3.Vector, numCameras),
		received:      make([]bool, numCameras),
		onTick:        onTick,
		clock:         clk,
		logger:        logger,
	}
	w.dataReady = sync.NewCond(&w.dataMu)
	w.startTime = clk.Now()
	w.lastCloudTime = clk.Now()
	return w, nil
}

// Start launches the planning thread.
func (w *Worker) Start() error {
	w.dataMu.Lock()
	defer w.dataMu.Unlock()
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true
	w.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(w.loop, w.activeBackgroundWorkers.Done)
	return nil
}

// Close signals the planning thread to exit and waits for it. No tick is
// interrupted mid-execution.
func (w *Worker) Close() {
	w.dataMu.Lock()
	w.shouldExit = true
	w.dataReady.Broadcast()
	w.dataMu.Unlock()
	w.activeBackgroundWorkers.Wait()
}

func (w *Worker) loop() {
	for {
		w.dataMu.Lock()
		for !w.ready && !w.shouldExit {
			w.dataReady.Wait()
		}
		w.ready = false
		exit := w.shouldExit
		w.dataMu.Unlock()

		if exit {
			return
		}

		w.runningMu.Lock()
		start := w.clock.Now()
		w.planner.RunPlanner()
		out := w.planner.Output()
		w.runningMu.Unlock()

		w.logger.Debugw("planner tick finished",
			"elapsed", w.clock.Since(start),
			"waypoint_type", out.WaypointType.String())
		if w.onTick != nil {
			w.onTick(out)
		}
	}
}

// PushCloud delivers one camera's cloud, already transformed into the local
// origin frame. When all cameras have reported, a tick is triggered unless
// one is already running.
func (w *Worker) PushCloud(camera int, cloud []r3.Vector) error {
	w.dataMu.Lock()
	if camera < 0 || camera >= len(w.pendingClouds) {
		w.dataMu.Unlock()
		return errors.Errorf("camera index %d out of range", camera)
	}
	w.pendingClouds[camera] = cloud
	w.received[camera] = true
	w.lastCloudTime = w.clock.Now()

	all := true
	for _, r := range w.received {
		if !r {
			all = false
			break
		}
	}
	w.dataMu.Unlock()

	if all {
		w.tryTrigger()
	}
	return nil
}

// tryTrigger applies the pending clouds and wakes the worker. If the worker
// still holds the running lock the trigger is dropped; the clouds stay
// marked received and the next push retries.
func (w *Worker) tryTrigger() {
	if !w.runningMu.TryLock() {
		return
	}
	w.dataMu.Lock()
	clouds := make([][]r3.Vector, len(w.pendingClouds))
	copy(clouds, w.pendingClouds)
	for i := range w.received {
		w.received[i] = false
	}
	w.dataMu.Unlock()

	w.planner.SetClouds(clouds)
	w.runningMu.Unlock()

	w.dataMu.Lock()
	w.ready = true
	w.dataReady.Signal()
	w.dataMu.Unlock()
}

// UpdateInputs runs fn on the planner under the running lock, so inputs are
// applied atomically between ticks.
func (w *Worker) UpdateInputs(fn func(*LocalPlanner)) {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	fn(w.planner)
}

// SetPose forwards a pose update under the running lock.
func (w *Worker) SetPose(position r3.Vector, attitude quat.Number) {
	w.UpdateInputs(func(p *LocalPlanner) { p.SetPose(position, attitude) })
}

// SetVelocity forwards a velocity update under the running lock.
func (w *Worker) SetVelocity(v r3.Vector) {
	w.UpdateInputs(func(p *LocalPlanner) { p.SetVelocity(v) })
}

// SetGoal forwards a goal update under the running lock.
func (w *Worker) SetGoal(goal r3.Vector) {
	w.UpdateInputs(func(p *LocalPlanner) { p.SetGoal(goal) })
}

// SetConfig forwards a configuration swap under the running lock.
func (w *Worker) SetConfig(cfg avoidance.Config) error {
	var err error
	w.UpdateInputs(func(p *LocalPlanner) { err = p.SetConfig(cfg) })
	return err
}

// CheckFailsafe evaluates the cloud-freshness failsafe at the current time.
func (w *Worker) CheckFailsafe() FailsafeState {
	w.dataMu.Lock()
	sinceLastCloud := w.clock.Since(w.lastCloudTime)
	sinceStart := w.clock.Since(w.startTime)
	w.dataMu.Unlock()

	var cfg avoidance.Config
	w.UpdateInputs(func(p *LocalPlanner) { cfg = p.cfg })
	return CheckFailsafe(sinceLastCloud, sinceStart, cfg)
}
