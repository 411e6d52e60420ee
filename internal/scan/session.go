// Package scan runs an object scan: it owns the bounding box, the drag
// controller, the object origin, the coverage tracker and the serial queue
// the tracker lives on, and moves through the scan phases.
//
// Session methods must be called from one goroutine, the host's input or
// frame thread. Coverage bookkeeping runs on the session's worker queue;
// progress callbacks are invoked from that queue.
package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/coverage"
	"github.com/Faultbox/objscan/internal/drag"
	"github.com/Faultbox/objscan/internal/fit"
	"github.com/Faultbox/objscan/internal/logger"
	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/internal/worker"
	"github.com/Faultbox/objscan/pkg/math"
)

// Reasonable box limits.
const (
	minReasonableEdge   = 0.01
	maxReasonableEdge   = 5.0
	minReasonableVolume = 0.0005
)

// Config holds every session tunable.
type Config struct {
	MinSize              float32
	SampleEveryFrames    int
	RecomputeEveryFrames int
	MinQualityPoints     int
	QueueSize            int

	Coverage coverage.Config
	Fit      fit.Config
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		MinSize:              box.DefaultMinSize,
		SampleEveryFrames:    20,
		RecomputeEveryFrames: 10,
		MinQualityPoints:     100,
		QueueSize:            worker.DefaultBufferSize,
		Coverage:             coverage.DefaultConfig(),
		Fit:                  fit.DefaultConfig(),
	}
}

// Camera is the host camera as seen by a session.
type Camera interface {
	drag.Pose
	ForwardRay() picking.Ray
}

// Session is one object scan.
type Session struct {
	id   uuid.UUID
	name string
	cfg  Config
	cam  Camera
	log  *zap.Logger

	state State

	box       *box.Box
	drag      *drag.Controller
	tracker   *coverage.Tracker
	origin    *drag.Origin
	unsubBox  func()
	tiledSize [6]math.Vec2

	fitter *fit.Fitter
	queue  *worker.Queue

	frame        int
	pointsInside int

	recomputing atomic.Bool
	progress    atomic.Int64
	onProgress  atomic.Pointer[func(int)]
	onState     func(from, to State)
	onOutside   func(world math.Vec3)

	// generation identifies the attached tracker; reports from a detached
	// one are dropped.
	progressMu sync.Mutex
	generation uint64
}

// New creates a session in the Ready state. name may be empty, in which
// case one is derived from the session ID.
func New(cfg Config, cam Camera, name string) (*Session, error) {
	cfg.SampleEveryFrames = max(1, cfg.SampleEveryFrames)
	cfg.RecomputeEveryFrames = max(1, cfg.RecomputeEveryFrames)

	id := uuid.New()
	if name == "" {
		name = "scan-" + id.String()[:8]
	}

	q, err := worker.New("coverage-"+name, cfg.QueueSize)
	if err != nil {
		return nil, fmt.Errorf("creating coverage queue: %w", err)
	}

	s := &Session{
		id:     id,
		name:   name,
		cfg:    cfg,
		cam:    cam,
		log:    logger.Named("scan").With(zap.String("scan", name)),
		fitter: fit.New(cfg.Fit),
		queue:  q,
	}
	s.log.Info("session created", zap.Stringer("id", id))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Name returns the scan name.
func (s *Session) Name() string { return s.name }

// State returns the current phase.
func (s *Session) State() State { return s.state }

// Box returns the bounding box, or nil before one is placed.
func (s *Session) Box() *box.Box { return s.box }

// Drag returns the drag controller of the current box, or nil before one
// is placed.
func (s *Session) Drag() *drag.Controller { return s.drag }

// Progress returns the last coverage percentage computed on the queue.
// Safe for concurrent use.
func (s *Session) Progress() int { return int(s.progress.Load()) }

// OnProgress registers fn to receive coverage changes. fn runs on the
// session's worker goroutine, so it must not call Flush or Faces, which
// wait on that goroutine; hand such work to another goroutine instead.
// Safe for concurrent use.
func (s *Session) OnProgress(fn func(percent int)) {
	s.onProgress.Store(&fn)
}

// OnStateChange registers fn to be called after every state change.
func (s *Session) OnStateChange(fn func(from, to State)) {
	s.onState = fn
}

// Origin returns the object origin of the current box, or nil before one
// is placed.
func (s *Session) Origin() *drag.Origin { return s.origin }

// OnOriginMovedOutside registers fn to be called with the origin's world
// position whenever a drag or tap leaves it outside the box.
func (s *Session) OnOriginMovedOutside(fn func(world math.Vec3)) {
	s.onOutside = fn
}

// PlaceBox puts the box at a point the user picked in the world. The first
// call creates the box with an edge of a third of the camera distance,
// pushed back half an edge so the hit lands on its front. Later calls move
// the existing box to hit.
func (s *Session) PlaceBox(hit math.Vec3) {
	if s.box != nil {
		s.box.SetPosition(hit)
		return
	}

	camPos := s.cam.WorldPosition()
	size := hit.Distance(camPos) / 3
	dir := hit.Sub(camPos).Normalize()
	center := hit.Add(dir.Scale(size / 2))

	s.attach(box.New(center, math.Splat(size), s.cfg.MinSize))
	s.log.Info("bounding box placed", zap.Stringer("center", center), zap.Float32("size", size))
}

func (s *Session) attach(b *box.Box) {
	s.box = b
	s.drag = drag.New(b, s.cam, nil)
	s.tracker = coverage.NewTracker(s.cfg.Coverage, b.Snapshot())
	for _, f := range box.AllFaces {
		s.tiledSize[f] = f.Size(b.Extent())
	}

	s.origin = drag.NewOrigin(b, s.cam)
	s.origin.OnMovedOutside(func(world math.Vec3) {
		s.log.Warn("origin moved outside the bounding box", zap.Stringer("origin", world))
		if s.onOutside != nil {
			s.onOutside(world)
		}
	})

	s.progressMu.Lock()
	s.generation++
	gen := s.generation
	s.progressMu.Unlock()

	tr := s.tracker
	tr.OnProgress(func(pct int) {
		if !s.storeProgress(gen, pct) {
			return
		}
		s.log.Info("coverage changed", zap.Int("percent", pct))
		if fn := s.onProgress.Load(); fn != nil {
			(*fn)(pct)
		}
	})

	s.unsubBox = b.Subscribe(func(_ box.Event, snap box.Snapshot) {
		s.post(func() { tr.SetLayout(snap) })
	})
}

// storeProgress records pct if it comes from the tracker of generation
// gen. It reports whether the value was kept.
func (s *Session) storeProgress(gen uint64, pct int) bool {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if gen != s.generation {
		s.log.Debug("dropping progress from a detached box", zap.Int("percent", pct))
		return false
	}
	s.progress.Store(int64(pct))
	return true
}

func (s *Session) detach() {
	if s.box == nil {
		return
	}
	s.unsubBox()
	s.tracker.Close()

	s.progressMu.Lock()
	s.generation++
	s.progress.Store(0)
	s.progressMu.Unlock()

	s.box, s.drag, s.tracker, s.origin, s.unsubBox = nil, nil, nil, nil, nil
	s.recomputing.Store(false)
}

func (s *Session) post(task func()) error {
	if err := s.queue.Post(task); err != nil {
		s.log.Warn("dropping coverage task", zap.Error(err))
		return fmt.Errorf("posting coverage task: %w", err)
	}
	return nil
}

// SetState moves the scan to next. It fails with ErrNoBoundingBox when next
// needs a box and none exists. Otherwise the state changes and any
// advisories about the transition are returned.
func (s *Session) SetState(next State) ([]Advisory, error) {
	if !next.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTransition, int(next))
	}
	if next != Ready && s.box == nil {
		return nil, fmt.Errorf("entering %v: %w", next, ErrNoBoundingBox)
	}

	prev := s.state
	advisories := s.advisories(prev, next)
	for _, a := range advisories {
		s.log.Warn("state change advisory", zap.Stringer("advisory", a), zap.Stringer("to", next))
	}

	switch next {
	case Ready:
		s.detach()
	case DefineBoundingBox:
		s.resetCapture()
	case AdjustingOrigin:
		s.origin.MoveToBottom()
	}

	s.state = next
	s.log.Info("state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	if s.onState != nil {
		s.onState(prev, next)
	}
	return advisories, nil
}

func (s *Session) advisories(from, to State) []Advisory {
	var out []Advisory
	leavingDefine := from == DefineBoundingBox && to == Scanning
	finishing := from == Scanning && to == AdjustingOrigin

	if (leavingDefine || finishing) && !s.IsReasonablySized() {
		out = append(out, BoxUnreasonablySized)
	}
	if finishing {
		if s.QualityIsLow() {
			out = append(out, QualityLow)
		}
		if s.Progress() < 100 {
			out = append(out, ScanIncomplete)
		}
	}
	return out
}

func (s *Session) resetCapture() {
	s.frame = 0
	if s.tracker == nil {
		return
	}
	tr := s.tracker
	s.post(func() {
		tr.Reset()
		tr.RecomputeCapturedTiles()
	})
}

// IsReasonablySized reports whether every box edge lies in [0.01, 5] and
// the volume is at least 0.0005.
func (s *Session) IsReasonablySized() bool {
	if s.box == nil {
		return false
	}
	e := s.box.Extent()
	for _, v := range e.Array() {
		if v < minReasonableEdge || v > maxReasonableEdge {
			return false
		}
	}
	return e.X*e.Y*e.Z >= minReasonableVolume
}

// PointsInside counts the world points that lie inside the box.
func (s *Session) PointsInside(points []math.Vec3) int {
	if s.box == nil {
		return 0
	}
	snap := s.box.Snapshot()
	n := 0
	for _, p := range points {
		if snap.ContainsWorld(p) {
			n++
		}
	}
	return n
}

// QualityIsLow reports whether fewer than MinQualityPoints of the most
// recent frame's points were inside the box.
func (s *Session) QualityIsLow() bool {
	return s.pointsInside < s.cfg.MinQualityPoints
}

// Flush waits for all queued coverage work to finish. It must not be
// called from a progress callback.
func (s *Session) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

// Faces returns a copy of every face tile grid as seen by the queue once
// all earlier work has run. Like Flush, it must not be called from a
// progress callback.
func (s *Session) Faces(ctx context.Context) ([6]coverage.FaceTiles, error) {
	var out [6]coverage.FaceTiles
	tr := s.tracker
	if tr == nil {
		return out, ErrNoBoundingBox
	}

	done := make(chan struct{})
	if err := s.post(func() {
		for _, f := range box.AllFaces {
			out[f] = tr.Face(f)
		}
		close(done)
	}); err != nil {
		return out, err
	}

	select {
	case <-done:
		return out, nil
	case <-ctx.Done():
		return out, ctx.Err()
	}
}

// Close stops the coverage queue after running pending work.
func (s *Session) Close() error {
	if err := s.queue.Close(); err != nil {
		return fmt.Errorf("closing session %s: %w", s.name, err)
	}
	if s.tracker != nil {
		s.tracker.Close()
	}
	s.log.Info("session closed")
	return nil
}
