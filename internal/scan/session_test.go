package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/camera"
	"github.com/Faultbox/objscan/internal/worker"
	"github.com/Faultbox/objscan/pkg/math"
)

const eps = 1e-4

func newSession(t *testing.T) (*Session, *camera.Camera) {
	t.Helper()
	cam := camera.New(800, 600)
	s, err := New(DefaultConfig(), cam, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, cam
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// placeQuarterBox places a 0.25 cube centered on the origin.
func placeQuarterBox(t *testing.T, s *Session, cam *camera.Camera) {
	t.Helper()
	cam.LookAt(math.Vec3{Z: 0.875}, math.Vec3{})
	s.PlaceBox(math.Vec3{Z: 0.125})

	b := s.Box()
	if b == nil {
		t.Fatal("PlaceBox() did not create a box")
	}
	if !b.Extent().ApproxEqual(math.Splat(0.25), eps) || !b.Position().ApproxEqual(math.Vec3{}, eps) {
		t.Fatalf("box = %v at %v, want 0.25 cube at origin", b.Extent(), b.Position())
	}
}

func TestNewSessionNames(t *testing.T) {
	s, _ := newSession(t)
	if s.Name() == "" {
		t.Error("Name() is empty")
	}
	if s.State() != Ready {
		t.Errorf("State() = %v, want ready", s.State())
	}

	named, err := New(DefaultConfig(), camera.New(800, 600), "mug")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer named.Close()
	if named.Name() != "mug" {
		t.Errorf("Name() = %q, want mug", named.Name())
	}
	if named.ID() == s.ID() {
		t.Error("two sessions share an ID")
	}
}

func TestSetStateRequiresBox(t *testing.T) {
	s, _ := newSession(t)

	for _, st := range []State{DefineBoundingBox, Scanning, AdjustingOrigin} {
		if _, err := s.SetState(st); !errors.Is(err, ErrNoBoundingBox) {
			t.Errorf("SetState(%v) error = %v, want ErrNoBoundingBox", st, err)
		}
	}
	if s.State() != Ready {
		t.Errorf("State() = %v, want ready", s.State())
	}

	if _, err := s.SetState(State(42)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetState(42) error = %v, want ErrInvalidTransition", err)
	}
}

func TestPlaceBox(t *testing.T) {
	s, cam := newSession(t)
	cam.LookAt(math.Vec3{Z: 3}, math.Vec3{})

	s.PlaceBox(math.Vec3{})
	b := s.Box()
	if !b.Extent().ApproxEqual(math.Splat(1), eps) {
		t.Errorf("Extent() = %v, want (1, 1, 1)", b.Extent())
	}
	if !b.Position().ApproxEqual(math.Vec3{Z: -0.5}, eps) {
		t.Errorf("Position() = %v, want (0, 0, -0.5)", b.Position())
	}
	if s.Drag() == nil {
		t.Error("Drag() = nil after PlaceBox")
	}

	s.PlaceBox(math.Vec3{X: 2})
	if s.Box() != b {
		t.Error("second PlaceBox replaced the box")
	}
	if b.Position() != (math.Vec3{X: 2}) {
		t.Errorf("Position() = %v, want (2, 0, 0)", b.Position())
	}
}

func TestAdvisories(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)

	if adv, err := s.SetState(DefineBoundingBox); err != nil || len(adv) != 0 {
		t.Fatalf("SetState(define) = %v, %v", adv, err)
	}
	if adv, err := s.SetState(Scanning); err != nil || len(adv) != 0 {
		t.Fatalf("SetState(scanning) = %v, %v", adv, err)
	}

	adv, err := s.SetState(AdjustingOrigin)
	if err != nil {
		t.Fatalf("SetState(adjusting) error = %v", err)
	}
	want := []Advisory{QualityLow, ScanIncomplete}
	if len(adv) != len(want) || adv[0] != want[0] || adv[1] != want[1] {
		t.Errorf("advisories = %v, want %v", adv, want)
	}
	if s.State() != AdjustingOrigin {
		t.Errorf("State() = %v, want adjusting-origin", s.State())
	}
}

func TestUnreasonableBox(t *testing.T) {
	s, cam := newSession(t)
	cam.LookAt(math.Vec3{Z: 0.03}, math.Vec3{})
	s.PlaceBox(math.Vec3{})

	if s.IsReasonablySized() {
		t.Fatalf("IsReasonablySized() = true for %v", s.Box().Extent())
	}
	s.SetState(DefineBoundingBox)
	adv, err := s.SetState(Scanning)
	if err != nil {
		t.Fatalf("SetState(scanning) error = %v", err)
	}
	if len(adv) != 1 || adv[0] != BoxUnreasonablySized {
		t.Errorf("advisories = %v, want [box-unreasonably-sized]", adv)
	}

	s.Box().SetExtent(math.Splat(6))
	if s.IsReasonablySized() {
		t.Error("IsReasonablySized() = true for a 6 m box")
	}
}

func TestStateCallbackAndRestart(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)

	var changes [][2]State
	s.OnStateChange(func(from, to State) { changes = append(changes, [2]State{from, to}) })

	s.SetState(DefineBoundingBox)
	s.SetState(Ready)

	if len(changes) != 2 || changes[1] != [2]State{DefineBoundingBox, Ready} {
		t.Errorf("state changes = %v", changes)
	}
	if s.Box() != nil || s.Drag() != nil || s.Origin() != nil {
		t.Error("box survived a restart")
	}
	if _, err := s.Faces(context.Background()); !errors.Is(err, ErrNoBoundingBox) {
		t.Errorf("Faces() error = %v, want ErrNoBoundingBox", err)
	}
}

func TestPointsInsideAndQuality(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)

	var pts []math.Vec3
	for i := 0; i < 120; i++ {
		f := float32(i)/120*0.2 - 0.1
		pts = append(pts, math.Vec3{X: f, Y: -f, Z: f / 2})
	}
	pts = append(pts, math.Vec3{X: 1}, math.Vec3{Y: 0.125})

	if got := s.PointsInside(pts); got != 120 {
		t.Errorf("PointsInside() = %d, want 120", got)
	}

	if !s.QualityIsLow() {
		t.Error("QualityIsLow() = false before any frame")
	}
	s.Box().MarkAdjustedByUser()
	if err := s.Tick(Frame{Points: pts}); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if s.QualityIsLow() {
		t.Error("QualityIsLow() = true with 120 points inside")
	}
}

func TestTickFitsBox(t *testing.T) {
	s, cam := newSession(t)
	cam.LookAt(math.Vec3{Z: 0.03}, math.Vec3{})
	s.PlaceBox(math.Vec3{})
	s.SetState(DefineBoundingBox)

	center := s.Box().Position()
	var pts []math.Vec3
	for _, off := range []math.Vec3{{}, {Z: 0.01}, {Z: -0.01}, {X: 0.01}} {
		pts = append(pts, center.Add(off))
	}
	pts = append(pts, math.Splat(5), math.Splat(5), math.Splat(5))

	if err := s.Tick(Frame{Points: pts}); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	want := math.Vec3{X: 0.015, Y: 0.01, Z: 0.02}
	if !s.Box().Extent().ApproxEqual(want, eps) {
		t.Errorf("Extent() = %v, want %v", s.Box().Extent(), want)
	}

	// Once the user has touched the box it is no longer fitted.
	s.Box().MarkAdjustedByUser()
	s.Box().SetExtent(math.Splat(0.5))
	s.Tick(Frame{Points: pts})
	if s.Box().Extent() != math.Splat(0.5) {
		t.Errorf("Extent() = %v after fitting an adjusted box", s.Box().Extent())
	}
}

func TestTickRegeneratesTiles(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)

	s.Box().SetExtent(math.Splat(0.5))
	if err := s.Tick(Frame{}); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	faces, err := s.Faces(context.Background())
	if err != nil {
		t.Fatalf("Faces() error = %v", err)
	}
	for _, f := range faces {
		if f.Rows != 4 || f.Cols != 4 {
			t.Errorf("%v grid = %dx%d, want 4x4", f.Face, f.Rows, f.Cols)
		}
	}
}

func TestScanReachesFullCoverage(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)

	var reports []int
	s.OnProgress(func(p int) { reports = append(reports, p) })

	if _, err := s.SetState(DefineBoundingBox); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetState(Scanning); err != nil {
		t.Fatal(err)
	}

	faces, err := s.Faces(context.Background())
	if err != nil {
		t.Fatalf("Faces() error = %v", err)
	}
	snap := s.Box().Snapshot()

	for _, grid := range faces {
		if grid.Face == box.Bottom {
			continue
		}
		normal := snap.DirectionToWorld(grid.Face.Normal())
		for _, tile := range grid.Tiles {
			target := snap.FaceTransform(grid.Face).TransformPoint(math.Vec3{X: tile.Center.X, Y: tile.Center.Y})
			cam.LookAt(target.Add(normal.Scale(0.6)), target)

			for i := 0; i < s.cfg.SampleEveryFrames; i++ {
				if err := s.Tick(Frame{}); err != nil {
					t.Fatalf("Tick() error = %v", err)
				}
				flush(t, s)
			}
		}
	}

	if got := s.Progress(); got != 100 {
		t.Errorf("Progress() = %d, want 100", got)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Errorf("progress reports = %v, want to end at 100", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Errorf("progress went down: %v", reports)
			break
		}
	}

	adv, _ := s.SetState(AdjustingOrigin)
	for _, a := range adv {
		if a == ScanIncomplete {
			t.Error("ScanIncomplete reported at 100% coverage")
		}
	}
}

func TestDefineResetsCoverage(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)
	s.SetState(DefineBoundingBox)
	s.SetState(Scanning)

	// Look straight at the front face center.
	cam.LookAt(math.Vec3{Z: 1}, math.Vec3{})
	for i := 0; i < s.cfg.SampleEveryFrames; i++ {
		s.Tick(Frame{})
		flush(t, s)
	}
	if s.Progress() == 0 {
		t.Fatal("no coverage recorded")
	}

	s.SetState(DefineBoundingBox)
	flush(t, s)
	if got := s.Progress(); got != 0 {
		t.Errorf("Progress() = %d after returning to define, want 0", got)
	}
}

func TestTickAfterClose(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)
	s.SetState(DefineBoundingBox)
	s.SetState(Scanning)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Tick(Frame{}); !errors.Is(err, worker.ErrClosed) {
		t.Errorf("Tick() after Close error = %v, want ErrClosed", err)
	}
	if err := s.Close(); !errors.Is(err, worker.ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
}

func TestRestartDropsQueuedProgress(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)
	s.SetState(DefineBoundingBox)
	s.SetState(Scanning)

	var reports []int
	s.OnProgress(func(p int) { reports = append(reports, p) })

	// Look straight at the front face center and run up to the frame
	// before the first sample.
	cam.LookAt(math.Vec3{Z: 1}, math.Vec3{})
	for i := 1; i < s.cfg.SampleEveryFrames; i++ {
		if err := s.Tick(Frame{}); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		flush(t, s)
	}

	// Hold the queue so the sample and recompute of the next frame are
	// still pending when the scan restarts.
	gate := make(chan struct{})
	release := sync.OnceFunc(func() { close(gate) })
	defer release()
	if err := s.queue.Post(func() { <-gate }); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if err := s.Tick(Frame{}); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if _, err := s.SetState(Ready); err != nil {
		t.Fatalf("SetState(ready) error = %v", err)
	}
	release()
	flush(t, s)

	if got := s.Progress(); got != 0 {
		t.Errorf("Progress() after restart = %d, want 0", got)
	}

	placeQuarterBox(t, s, cam)
	if _, err := s.SetState(DefineBoundingBox); err != nil {
		t.Fatalf("SetState(define) error = %v", err)
	}
	flush(t, s)

	if got := s.Progress(); got != 0 {
		t.Errorf("Progress() on a fresh box = %d, want 0", got)
	}
	if len(reports) != 0 {
		t.Errorf("progress reports = %v, want none from the old box", reports)
	}
}

func TestProgressCallbackCanHandOffQueueWork(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)
	s.SetState(DefineBoundingBox)
	s.SetState(Scanning)

	got := make(chan error, 1)
	s.OnProgress(func(int) {
		// Waiting on the queue from here would block its own worker.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := s.Faces(ctx)
			select {
			case got <- err:
			default:
			}
		}()
	})

	cam.LookAt(math.Vec3{Z: 1}, math.Vec3{})
	for i := 0; i < s.cfg.SampleEveryFrames; i++ {
		s.Tick(Frame{})
	}

	select {
	case err := <-got:
		if err != nil {
			t.Errorf("Faces() from progress handler error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no progress report reached the handler")
	}
}

func TestAdjustingOriginMovesOriginToBottom(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)

	o := s.Origin()
	if o == nil {
		t.Fatal("Origin() = nil after PlaceBox")
	}
	if o.Position() != (math.Vec3{}) {
		t.Errorf("Position() = %v, want box center", o.Position())
	}

	s.SetState(DefineBoundingBox)
	s.SetState(Scanning)
	if _, err := s.SetState(AdjustingOrigin); err != nil {
		t.Fatalf("SetState(adjusting) error = %v", err)
	}
	if !o.Position().ApproxEqual(math.Vec3{Y: -0.125}, eps) {
		t.Errorf("Position() = %v, want (0, -0.125, 0)", o.Position())
	}

	var outside []math.Vec3
	s.OnOriginMovedOutside(func(world math.Vec3) { outside = append(outside, world) })

	target := math.Vec3{X: 0.5, Y: -0.125}
	screen, ok := cam.Project(target)
	if !ok {
		t.Fatalf("%v is behind the camera", target)
	}
	o.FlashOrReposition(screen)

	if len(outside) != 1 || !outside[0].ApproxEqual(target, 2e-3) {
		t.Errorf("moved-outside reports = %v, want one at %v", outside, target)
	}
}

func TestAdjustingOriginKeepsUserPlacement(t *testing.T) {
	s, cam := newSession(t)
	placeQuarterBox(t, s, cam)
	s.SetState(DefineBoundingBox)
	s.SetState(Scanning)

	o := s.Origin()
	o.StartDrag(math.Vec2{X: 10, Y: 10}, false)
	o.EndDrag()
	o.SetPosition(math.Vec3{Y: 0.1})

	s.SetState(AdjustingOrigin)
	if o.Position() != (math.Vec3{Y: 0.1}) {
		t.Errorf("Position() = %v, want user placement (0, 0.1, 0)", o.Position())
	}
}
