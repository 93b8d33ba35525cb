package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	directoryrepo "urgent_dispatch_backend/internal/directory/repository"
	"urgent_dispatch_backend/internal/dispatch/domain"
	"urgent_dispatch_backend/internal/dispatch/repository"
	"urgent_dispatch_backend/internal/dispatch/transport"
	"urgent_dispatch_backend/internal/events"
	"urgent_dispatch_backend/platform/apperr"
	"urgent_dispatch_backend/platform/logger"

	"github.com/google/uuid"
)

type stubConfig struct{}

func (stubConfig) GetMinRadiusKM() float64               { return 0.5 }
func (stubConfig) GetMaxRadiusKM() float64               { return 30 }
func (stubConfig) GetMaxDispatchRounds() int             { return 3 }
func (stubConfig) GetDispatchRoundWindow() time.Duration { return 10 * time.Minute }
func (stubConfig) GetRadiusGrowthFactor() float64        { return 1.5 }
func (stubConfig) GetCreateRatePerMinute() float64       { return 5 }
func (stubConfig) GetCreateBurst() int                   { return 3 }

type stubDirectory struct {
	pros []directoryrepo.Professional
}

func (d stubDirectory) FindEligible(_ context.Context, _ string) ([]directoryrepo.Professional, error) {
	return d.pros, nil
}

type stubEstimator struct{}

func (stubEstimator) Estimate(_ context.Context, _ string, _ float64) (int64, error) {
	return 10000, nil
}

func (stubEstimator) KnownCategory(_ context.Context, _ string) (bool, error) {
	return true, nil
}

type recordingSweeps struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
}

func (r *recordingSweeps) ScheduleDispatchSweep(_ context.Context, requestID uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, requestID)
	return nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.published {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

// fakeStore replays the repository's conditional-update semantics in memory:
// the status field is the single synchronization point, guarded by one mutex
// the way the real store is guarded by single-statement UPDATEs.
type fakeStore struct {
	mu         sync.Mutex
	req        repository.UrgentRequest
	candidates []*repository.Candidate
	rejections map[uuid.UUID]struct{}
	assignment *repository.Assignment
	radiusLog  []float64

	// onReject runs after a rejection is recorded, simulating writes that
	// land between the rejection and the caller's next read.
	onReject func(s *fakeStore)
}

func newFakeStore() *fakeStore {
	return &fakeStore{rejections: make(map[uuid.UUID]struct{})}
}

func (s *fakeStore) Create(_ context.Context, req repository.UrgentRequest) (repository.UrgentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.New()
	req.Status = domain.StatusPending
	req.DispatchRounds = 1
	req.LastDispatchAt = time.Now()
	req.CreatedAt = time.Now()
	s.req = req
	return req, nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.UrgentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req.ID != id {
		return repository.UrgentRequest{}, apperr.NotFound("urgent request not found")
	}
	return s.req, nil
}

func (s *fakeStore) GetAssignment(_ context.Context, _ uuid.UUID) (*repository.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignment, nil
}

func (s *fakeStore) History(_ context.Context, _ uuid.UUID) ([]repository.TrackingRow, error) {
	return nil, nil
}

func (s *fakeStore) CandidateCounts(_ context.Context, _ uuid.UUID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	responded := 0
	for _, c := range s.candidates {
		if c.Responded {
			responded++
		}
	}
	return len(s.candidates), responded, nil
}

func (s *fakeStore) Cancel(_ context.Context, _, clientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req.ClientID != clientID {
		return apperr.Forbidden("request belongs to another client")
	}
	if s.req.Status != domain.StatusPending {
		return apperr.BadRequest("request can no longer be cancelled")
	}
	s.req.Status = domain.StatusCancelled
	return nil
}

func (s *fakeStore) Complete(_ context.Context, _, _ uuid.UUID, rating *int16, _ *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req.Status != domain.StatusAssigned {
		return apperr.Conflict("request is not assigned")
	}
	s.req.Status = domain.StatusCompleted
	if s.assignment != nil {
		s.assignment.Rating = rating
	}
	return nil
}

func (s *fakeStore) Accept(_ context.Context, _, professionalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := s.findCandidate(professionalID)
	if candidate == nil || candidate.Responded {
		return apperr.Forbidden("professional is not a candidate for this request")
	}
	if s.req.Status != domain.StatusPending {
		if s.req.Status == domain.StatusAssigned {
			return apperr.Conflict("request already assigned to another professional")
		}
		return apperr.Conflict("request already resolved")
	}
	s.req.Status = domain.StatusAssigned
	candidate.Responded = true
	s.assignment = &repository.Assignment{
		ID:             uuid.New(),
		RequestID:      s.req.ID,
		ProfessionalID: professionalID,
		AcceptedAt:     time.Now(),
	}
	return nil
}

func (s *fakeStore) Reject(_ context.Context, _, professionalID uuid.UUID, _ string) (repository.RejectOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := s.findCandidate(professionalID)
	if candidate == nil {
		return repository.RejectRecorded, apperr.Forbidden("professional is not a candidate for this request")
	}
	if s.req.Status != domain.StatusPending {
		return repository.RejectAlreadyResolved, nil
	}
	candidate.Responded = true
	s.rejections[professionalID] = struct{}{}

	outcome := repository.RejectRecorded
	if s.openCount() == 0 {
		outcome = repository.RejectPoolExhausted
	}
	if s.onReject != nil {
		s.onReject(s)
	}
	return outcome, nil
}

func (s *fakeStore) GetJobByToken(_ context.Context, token string) (repository.CandidateJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c.AccessToken == token {
			return repository.CandidateJob{
				Candidate:          *c,
				RequestStatus:      s.req.Status,
				RequestDescription: s.req.Description,
				CategorySlug:       s.req.CategorySlug,
				PriceEstimateCents: s.req.PriceEstimateCents,
				RequestCreatedAt:   s.req.CreatedAt,
				ClientID:           s.req.ClientID,
			}, nil
		}
	}
	return repository.CandidateJob{}, apperr.NotFound("job not found")
}

func (s *fakeStore) InsertCandidates(_ context.Context, requestID uuid.UUID, round int, pool []repository.CandidateInsert) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, in := range pool {
		if s.findCandidate(in.ProfessionalID) != nil {
			continue
		}
		s.candidates = append(s.candidates, &repository.Candidate{
			ID:             uuid.New(),
			RequestID:      requestID,
			ProfessionalID: in.ProfessionalID,
			DistanceKM:     in.DistanceKM,
			Round:          round,
			AccessToken:    in.AccessToken,
			CreatedAt:      time.Now(),
		})
		inserted++
	}
	return inserted, nil
}

func (s *fakeStore) ListRejectedProfessionals(_ context.Context, _ uuid.UUID) (map[uuid.UUID]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := make(map[uuid.UUID]struct{}, len(s.rejections))
	for id := range s.rejections {
		excluded[id] = struct{}{}
	}
	return excluded, nil
}

func (s *fakeStore) ListOpenAlerts(_ context.Context, _ uuid.UUID) ([]repository.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []repository.Candidate
	for _, c := range s.candidates {
		if !c.Responded {
			open = append(open, *c)
		}
	}
	return open, nil
}

func (s *fakeStore) HasOpenCandidates(_ context.Context, _ uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openCount() > 0, nil
}

func (s *fakeStore) SetRadiusAndRound(_ context.Context, _ uuid.UUID, radiusKM float64, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req.Status != domain.StatusPending {
		return apperr.Conflict("request already resolved")
	}
	s.req.RadiusKM = radiusKM
	s.req.DispatchRounds = round
	s.req.LastDispatchAt = time.Now()
	s.radiusLog = append(s.radiusLog, radiusKM)
	return nil
}

func (s *fakeStore) MarkFailedToMatch(_ context.Context, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req.Status != domain.StatusPending || s.req.FailedToMatch {
		return apperr.Conflict("request already resolved")
	}
	s.req.FailedToMatch = true
	return nil
}

func (s *fakeStore) findCandidate(professionalID uuid.UUID) *repository.Candidate {
	for _, c := range s.candidates {
		if c.ProfessionalID == professionalID {
			return c
		}
	}
	return nil
}

func (s *fakeStore) openCount() int {
	open := 0
	for _, c := range s.candidates {
		if !c.Responded {
			open++
		}
	}
	return open
}

func (s *fakeStore) snapshot() repository.UrgentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

const (
	testLat = -34.6118
	testLon = -58.3960
)

func nearbyPro(id byte) directoryrepo.Professional {
	lat := testLat + 0.005
	lon := testLon + 0.005
	return directoryrepo.Professional{
		ID:        uuid.UUID{id},
		Phone:     "+5491143215678",
		Rating:    4.0,
		Latitude:  &lat,
		Longitude: &lon,
	}
}

func newTestService(store *fakeStore, dir stubDirectory) (*Service, *recordingBus, *recordingSweeps) {
	bus := &recordingBus{}
	sweeps := &recordingSweeps{}
	svc := New(store, dir, stubEstimator{}, sweeps, bus, stubConfig{}, logger.New("test"))
	return svc, bus, sweeps
}

// seedPending installs a pending request with one unresponded candidate per
// professional and returns their access tokens in order.
func seedPending(store *fakeStore, rounds int, radiusKM float64, pros ...uuid.UUID) []string {
	store.req = repository.UrgentRequest{
		ID:             uuid.New(),
		ClientID:       uuid.New(),
		Description:    "burst pipe in the kitchen",
		Latitude:       testLat,
		Longitude:      testLon,
		RadiusKM:       radiusKM,
		CategorySlug:   "plumbing",
		Status:         domain.StatusPending,
		DispatchRounds: rounds,
		LastDispatchAt: time.Now(),
		CreatedAt:      time.Now(),
	}
	tokens := make([]string, 0, len(pros))
	for i, pro := range pros {
		token, _ := newAccessToken()
		store.candidates = append(store.candidates, &repository.Candidate{
			ID:             uuid.New(),
			RequestID:      store.req.ID,
			ProfessionalID: pro,
			DistanceKM:     float64(i) + 1,
			Round:          rounds,
			AccessToken:    token,
			CreatedAt:      time.Now(),
		})
		tokens = append(tokens, token)
	}
	return tokens
}

func TestCreateRequest_RunsFirstRound(t *testing.T) {
	store := newFakeStore()
	svc, bus, sweeps := newTestService(store, stubDirectory{pros: []directoryrepo.Professional{
		nearbyPro(1), nearbyPro(2),
	}})

	resp, err := svc.CreateRequest(context.Background(), uuid.New(), transport.CreateRequestRequest{
		Description: "no hot water",
		Latitude:    testLat,
		Longitude:   testLon,
		RadiusKM:    5,
		Category:    "plumbing",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.CandidateCount != 2 {
		t.Fatalf("expected 2 candidates dispatched, got %d", resp.CandidateCount)
	}
	if got := store.snapshot().DispatchRounds; got != 1 {
		t.Fatalf("expected dispatch_rounds 1 after the first round, got %d", got)
	}
	for _, c := range store.candidates {
		if c.Round != 1 {
			t.Errorf("expected candidate round 1, got %d", c.Round)
		}
	}
	if n := bus.count("dispatch.candidates.dispatched"); n != 1 {
		t.Fatalf("expected one fan-out event, got %d", n)
	}
	if len(sweeps.scheduled) != 1 {
		t.Fatalf("expected one sweep scheduled, got %d", len(sweeps.scheduled))
	}
}

func TestAccept_ConcurrentSingleWinner(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, stubDirectory{})
	tokens := seedPending(store, 1, 5, uuid.UUID{1}, uuid.UUID{2}, uuid.UUID{3}, uuid.UUID{4})

	results := make(chan error, len(tokens))
	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_, err := svc.Accept(context.Background(), tok)
			results <- err
		}(token)
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if wins != 1 || conflicts != len(tokens)-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d and %d", len(tokens)-1, wins, conflicts)
	}
	if got := store.snapshot().Status; got != domain.StatusAssigned {
		t.Fatalf("expected assigned status, got %s", got)
	}
}

func TestAccept_AfterCancelReportsResolved(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, stubDirectory{})
	tokens := seedPending(store, 1, 5, uuid.UUID{1})

	if err := svc.Cancel(context.Background(), store.snapshot().ClientID, store.snapshot().ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := svc.Accept(context.Background(), tokens[0])
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for accept after cancel, got %v", err)
	}
	if !strings.Contains(err.Error(), "resolved") {
		t.Fatalf("expected already-resolved conflict, got %q", err.Error())
	}
}

func TestAccept_RejectedCandidateStaysOut(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, stubDirectory{})
	tokens := seedPending(store, 1, 5, uuid.UUID{1}, uuid.UUID{2})

	if _, err := svc.Reject(context.Background(), tokens[0], transport.RejectJobRequest{Reason: "too far"}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	_, err := svc.Accept(context.Background(), tokens[0])
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for accept after own rejection, got %v", err)
	}
	if got := store.snapshot().Status; got != domain.StatusPending {
		t.Fatalf("request must stay pending, got %s", got)
	}
}

func TestEvaluateRetry_WaitsOutOpenRound(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, stubDirectory{pros: []directoryrepo.Professional{nearbyPro(1)}})
	seedPending(store, 1, 5, uuid.UUID{1})

	if err := svc.EvaluateRetry(context.Background(), store.snapshot().ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := store.snapshot()
	if req.DispatchRounds != 1 || len(store.radiusLog) != 0 {
		t.Fatalf("expected no redispatch inside the round window, got rounds=%d radius writes=%d",
			req.DispatchRounds, len(store.radiusLog))
	}
}

func TestEvaluateRetry_RedispatchIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc, bus, _ := newTestService(store, stubDirectory{pros: []directoryrepo.Professional{
		nearbyPro(1), nearbyPro(2),
	}})

	resp, err := svc.CreateRequest(context.Background(), uuid.New(), transport.CreateRequestRequest{
		Description: "no hot water",
		Latitude:    testLat,
		Longitude:   testLon,
		RadiusKM:    5,
		Category:    "plumbing",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Age the round past its window so the sweep takes effect.
	store.mu.Lock()
	store.req.LastDispatchAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	if err := svc.EvaluateRetry(context.Background(), resp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := store.snapshot()
	if req.DispatchRounds != 2 {
		t.Fatalf("expected round 2 after redispatch, got %d", req.DispatchRounds)
	}
	if len(store.candidates) != 2 {
		t.Fatalf("re-running the same pool must not duplicate candidates, got %d rows", len(store.candidates))
	}
	// No new candidates means no second fan-out.
	if n := bus.count("dispatch.candidates.dispatched"); n != 1 {
		t.Fatalf("expected one fan-out event, got %d", n)
	}
}

func TestReject_PoolExhaustionRedispatchesWider(t *testing.T) {
	store := newFakeStore()
	svc, bus, _ := newTestService(store, stubDirectory{pros: []directoryrepo.Professional{
		nearbyPro(1), nearbyPro(2),
	}})
	tokens := seedPending(store, 1, 4, uuid.UUID{1})

	resp, err := svc.Reject(context.Background(), tokens[0], transport.RejectJobRequest{Reason: "busy"})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if resp.Status != string(domain.StatusPending) {
		t.Fatalf("expected pending after redispatch, got %s", resp.Status)
	}

	req := store.snapshot()
	if req.DispatchRounds != 2 {
		t.Fatalf("expected immediate redispatch to round 2, got %d", req.DispatchRounds)
	}
	if req.RadiusKM != 6 {
		t.Fatalf("expected radius expanded to 6, got %v", req.RadiusKM)
	}
	if n := bus.count("dispatch.pool.exhausted"); n != 1 {
		t.Fatalf("expected one pool-exhausted event, got %d", n)
	}

	// The rejector stays excluded; only the new professional joins round 2.
	for _, c := range store.candidates {
		if c.ProfessionalID == (uuid.UUID{1}) && c.Round != 1 {
			t.Fatalf("rejector must not re-enter the pool")
		}
		if c.ProfessionalID == (uuid.UUID{2}) && c.Round != 2 {
			t.Fatalf("expected new candidate in round 2, got round %d", c.Round)
		}
	}
}

func TestReject_AtMaxRoundsMarksFailedToMatch(t *testing.T) {
	store := newFakeStore()
	svc, bus, _ := newTestService(store, stubDirectory{pros: []directoryrepo.Professional{nearbyPro(1)}})
	tokens := seedPending(store, 3, 9, uuid.UUID{1})

	resp, err := svc.Reject(context.Background(), tokens[0], transport.RejectJobRequest{})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	req := store.snapshot()
	if !req.FailedToMatch {
		t.Fatal("expected request marked failed to match")
	}
	if req.Status != domain.StatusPending {
		t.Fatalf("failed-to-match request must stay cancellable, got %s", req.Status)
	}
	if resp.Status != string(domain.StatusPending) {
		t.Fatalf("expected pending status in response, got %s", resp.Status)
	}
	if n := bus.count("dispatch.request.failed_to_match"); n != 1 {
		t.Fatalf("expected one failed-to-match event, got %d", n)
	}
}

func TestReject_ReportsRefreshedStatus(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, stubDirectory{})
	tokens := seedPending(store, 1, 5, uuid.UUID{1}, uuid.UUID{2})

	// A competing acceptor lands right after the rejection is recorded.
	store.onReject = func(s *fakeStore) {
		s.req.Status = domain.StatusAssigned
	}

	resp, err := svc.Reject(context.Background(), tokens[0], transport.RejectJobRequest{})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if resp.Status != string(domain.StatusAssigned) {
		t.Fatalf("expected refreshed status assigned, got %s", resp.Status)
	}
}
