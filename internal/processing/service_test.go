package processing

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"videohub/internal/database/databasetest"
	"videohub/internal/events"
	"videohub/internal/models"
	"videohub/internal/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.VideoProcessed
	err    error
}

func (p *recordingPublisher) PublishVideoProcessed(_ context.Context, evt events.VideoProcessed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

// gatedCopier blocks every copy until gate is closed.
type gatedCopier struct {
	storage.Copier
	started chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedCopier) Copy(ctx context.Context, src, dst string) error {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.Copier.Copy(ctx, src, dst)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	db      *gorm.DB
	store   *storage.Memory
	claims  *MemoryClaimer
	events  *recordingPublisher
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:     databasetest.Open(t),
		store:  storage.NewMemory(),
		claims: NewMemoryClaimer(),
		events: &recordingPublisher{},
	}
	f.service = f.newService(f.store)
	return f
}

func (f *fixture) newService(copier storage.Copier) *Service {
	return NewService(Deps{
		DB:      f.db,
		Storage: copier,
		Claims:  f.claims,
		Events:  f.events,
		Logger:  quietLogger(),
		Now:     func() time.Time { return fixedNow },
	})
}

func (f *fixture) seedUploaded(t *testing.T) models.Video {
	t.Helper()
	f.store.Put("incoming/v1-video", []byte("video"))
	f.store.Put("incoming/v1-audio", []byte("audio"))
	return databasetest.SeedVideo(t, f.db, models.Video{
		ID:              "v1",
		Title:           "Intro",
		UploadBatchID:   "b1",
		StorageKey:      "incoming/v1-video",
		AudioStorageKey: "incoming/v1-audio",
	})
}

func (f *fixture) reload(t *testing.T, id string) models.Video {
	t.Helper()
	var v models.Video
	if err := f.db.First(&v, "id = ?", id).Error; err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return v
}

func TestProcessCopiesObjectsAndMarksVideo(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)

	res, err := f.service.Process(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Process() = %v", err)
	}
	if res.StorageKey != "uploads/batch-b1/v1.mp4" || res.AudioStorageKey != "uploads/batch-b1/v1.mp3" {
		t.Fatalf("unexpected keys %+v", res)
	}

	if data, ok := f.store.Get("uploads/batch-b1/v1.mp4"); !ok || string(data) != "video" {
		t.Fatalf("video object not copied: %q %v", data, ok)
	}
	if data, ok := f.store.Get("uploads/batch-b1/v1.mp3"); !ok || string(data) != "audio" {
		t.Fatalf("audio object not copied: %q %v", data, ok)
	}
	if _, ok := f.store.Get("incoming/v1-video"); !ok {
		t.Fatal("source object must be kept")
	}

	v := f.reload(t, "v1")
	if v.StorageKey != "uploads/batch-b1/v1.mp4" || v.AudioStorageKey != "uploads/batch-b1/v1.mp3" {
		t.Fatalf("keys not persisted: %+v", v)
	}
	if v.ProcessedAt == nil || !v.ProcessedAt.Equal(fixedNow) {
		t.Fatalf("processedAt = %v; want %v", v.ProcessedAt, fixedNow)
	}

	if len(f.events.events) != 1 || f.events.events[0].VideoID != "v1" {
		t.Fatalf("published %+v", f.events.events)
	}
	if f.claims.Held("v1") {
		t.Fatal("claim must be released")
	}
}

func TestProcessAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)

	if _, err := f.service.Process(context.Background(), "v1"); err != nil {
		t.Fatalf("first Process() = %v", err)
	}
	_, err := f.service.Process(context.Background(), "v1")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("second Process() = %v; want ErrAlreadyProcessed", err)
	}
	if n := len(f.store.Copies()); n != 2 {
		t.Fatalf("copies = %d; want 2", n)
	}
}

func TestProcessUnknownVideo(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Process(context.Background(), "missing")
	if !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("Process() = %v; want ErrVideoNotFound", err)
	}
	if len(f.store.Copies()) != 0 {
		t.Fatal("no objects may be copied")
	}
}

func TestProcessCopyFailureLeavesVideoUploaded(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)
	f.db.Model(&models.Video{}).Where("id = ?", "v1").Update("audio_storage_key", "incoming/missing")

	_, err := f.service.Process(context.Background(), "v1")
	if !errors.Is(err, ErrCopyFailed) {
		t.Fatalf("Process() = %v; want ErrCopyFailed", err)
	}
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("cause not preserved: %v", err)
	}

	v := f.reload(t, "v1")
	if v.ProcessedAt != nil {
		t.Fatal("video must stay unprocessed after a failed copy")
	}
	if v.StorageKey != "incoming/v1-video" {
		t.Fatalf("storage key changed to %q", v.StorageKey)
	}
	if f.claims.Held("v1") {
		t.Fatal("claim must be released after failure")
	}
	if len(f.events.events) != 0 {
		t.Fatal("no event may be published")
	}

	// redelivery after the object shows up succeeds
	f.store.Put("incoming/missing", []byte("audio"))
	if _, err := f.service.Process(context.Background(), "v1"); err != nil {
		t.Fatalf("retry Process() = %v", err)
	}
}

func TestProcessPublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)
	f.events.err = errors.New("brokers unavailable")

	if _, err := f.service.Process(context.Background(), "v1"); err != nil {
		t.Fatalf("Process() = %v", err)
	}
	if f.reload(t, "v1").ProcessedAt == nil {
		t.Fatal("video must be marked processed")
	}
}

func TestProcessConcurrentDeliveryIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)

	gated := &gatedCopier{Copier: f.store, started: make(chan struct{}), gate: make(chan struct{})}
	svc := f.newService(gated)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Process(context.Background(), "v1")
		done <- err
	}()
	<-gated.started

	_, err := svc.Process(context.Background(), "v1")
	if !errors.Is(err, ErrProcessingInProgress) {
		t.Fatalf("concurrent Process() = %v; want ErrProcessingInProgress", err)
	}

	close(gated.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Process() = %v", err)
	}
	if n := len(f.store.Copies()); n != 2 {
		t.Fatalf("copies = %d; want exactly one pair", n)
	}
}

func TestProcessManyConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)

	const deliveries = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Process(context.Background(), "v1")
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrProcessingInProgress):
			default:
				t.Errorf("Process() = %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("succeeded = %d; want 1", succeeded)
	}
	if n := len(f.store.Copies()); n != 2 {
		t.Fatalf("copies = %d; want exactly one pair", n)
	}
}

func TestProcessConditionalUpdateGuardsLateWriter(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)

	// another instance finishes between our load and our update
	racing := &racingCopier{Copier: f.store, db: f.db}
	_, err := f.newService(racing).Process(context.Background(), "v1")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("Process() = %v; want ErrAlreadyProcessed", err)
	}
	if len(f.events.events) != 0 {
		t.Fatal("no event may be published for the losing run")
	}
}

func TestProcessRechecksAfterClaim(t *testing.T) {
	f := newFixture(t)
	f.seedUploaded(t)

	blocking := &blockingClaimer{
		Claimer: f.claims,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	late := NewService(Deps{
		DB:      f.db,
		Storage: f.store,
		Claims:  blocking,
		Events:  f.events,
		Logger:  quietLogger(),
		Now:     func() time.Time { return fixedNow },
	})

	lateErr := make(chan error, 1)
	go func() {
		_, err := late.Process(context.Background(), "v1")
		lateErr <- err
	}()

	// the late delivery has loaded the video and is waiting to claim it
	<-blocking.entered
	if _, err := f.service.Process(context.Background(), "v1"); err != nil {
		t.Fatalf("first Process() = %v", err)
	}
	close(blocking.release)

	if err := <-lateErr; !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("late Process() = %v; want ErrAlreadyProcessed", err)
	}
	if n := len(f.store.Copies()); n != 2 {
		t.Fatalf("copies = %d; want exactly one pair", n)
	}
	if f.claims.Held("v1") {
		t.Fatal("claim still held after both runs")
	}
}

// blockingClaimer holds the first Claim call until release is closed.
type blockingClaimer struct {
	Claimer
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingClaimer) Claim(ctx context.Context, videoID string) (string, bool, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.Claimer.Claim(ctx, videoID)
}

type racingCopier struct {
	storage.Copier
	db   *gorm.DB
	once sync.Once
}

func (r *racingCopier) Copy(ctx context.Context, src, dst string) error {
	r.once.Do(func() {
		r.db.Model(&models.Video{}).Where("id = ?", "v1").Update("processed_at", fixedNow.Add(-time.Minute))
	})
	return r.Copier.Copy(ctx, src, dst)
}
