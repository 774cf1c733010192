package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/ladder-system/models"
	"github.com/Dosada05/ladder-system/repositories"
)

// In-memory фейки репозиториев для тестов сервисного слоя.

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type fakeLadderRepo struct {
	mu      sync.Mutex
	ladders map[int]*models.Ladder
	nextID  int

	// casFailures — сколько ближайших вызовов UpdateCAS вернут конфликт.
	casFailures int
	casCalls    int
}

func newFakeLadderRepo() *fakeLadderRepo {
	return &fakeLadderRepo{ladders: make(map[int]*models.Ladder), nextID: 1}
}

func (r *fakeLadderRepo) put(l models.Ladder) *models.Ladder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == 0 {
		l.ID = r.nextID
		r.nextID++
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}
	stored := l
	r.ladders[l.ID] = &stored
	return &stored
}

func (r *fakeLadderRepo) Create(ctx context.Context, l *models.Ladder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = r.nextID
	r.nextID++
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	stored := *l
	r.ladders[l.ID] = &stored
	return nil
}

func (r *fakeLadderRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Ladder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ladders[id]
	if !ok {
		return nil, repositories.ErrLadderNotFound
	}
	out := *l
	return &out, nil
}

func (r *fakeLadderRepo) GetBySlug(ctx context.Context, capsuleID int, slug string) (*models.Ladder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.ladders {
		if l.CapsuleID == capsuleID && l.Slug == slug {
			out := *l
			return &out, nil
		}
	}
	return nil, repositories.ErrLadderNotFound
}

func (r *fakeLadderRepo) ListByCapsule(ctx context.Context, capsuleID int) ([]models.Ladder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Ladder, 0)
	for _, l := range r.ladders {
		if l.CapsuleID == capsuleID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeLadderRepo) Update(ctx context.Context, l *models.Ladder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ladders[l.ID]
	if !ok {
		return repositories.ErrLadderNotFound
	}
	l.UpdatedAt = time.Now().UTC()
	*stored = *l
	return nil
}

func (r *fakeLadderRepo) UpdateCAS(ctx context.Context, exec repositories.SQLExecutor, l *models.Ladder, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casCalls++
	if r.casFailures > 0 {
		r.casFailures--
		return repositories.ErrLadderVersionConflict
	}
	stored, ok := r.ladders[l.ID]
	if !ok {
		return repositories.ErrLadderNotFound
	}
	if !stored.UpdatedAt.Equal(expected) {
		return repositories.ErrLadderVersionConflict
	}
	l.UpdatedAt = stored.UpdatedAt.Add(time.Millisecond)
	*stored = *l
	return nil
}

func (r *fakeLadderRepo) UpdateLogoKey(ctx context.Context, ladderID int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ladders[ladderID]
	if !ok {
		return repositories.ErrLadderNotFound
	}
	stored.LogoKey = logoKey
	return nil
}

func (r *fakeLadderRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ladders[id]; !ok {
		return repositories.ErrLadderNotFound
	}
	delete(r.ladders, id)
	return nil
}

type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[int]models.Member
	nextID  int

	// replaceErr заставляет ReplaceAll упасть до каких-либо изменений,
	// как это делает откат транзакции в настоящем репозитории.
	replaceErr error
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[int]models.Member), nextID: 1}
}

func (r *fakeMemberRepo) put(m models.Member) models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	} else if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	r.members[m.ID] = m
	return m
}

func (r *fakeMemberRepo) ListByLadder(ctx context.Context, exec repositories.SQLExecutor, ladderID int) ([]models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Member, 0)
	for _, m := range r.members {
		if m.LadderID == ladderID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Rank != nil && b.Rank != nil && *a.Rank != *b.Rank:
			return *a.Rank < *b.Rank
		case a.Rank != nil && b.Rank == nil:
			return true
		case a.Rank == nil && b.Rank != nil:
			return false
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *fakeMemberRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, repositories.ErrMemberNotFound
	}
	out := m
	return &out, nil
}

func (r *fakeMemberRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, members []*models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range members {
		m.ID = r.nextID
		r.nextID++
		r.members[m.ID] = *m
	}
	return nil
}

func (r *fakeMemberRepo) Update(ctx context.Context, exec repositories.SQLExecutor, m *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; !ok {
		return repositories.ErrMemberNotFound
	}
	r.members[m.ID] = *m
	return nil
}

func (r *fakeMemberRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return repositories.ErrMemberNotFound
	}
	delete(r.members, id)
	return nil
}

func (r *fakeMemberRepo) ReplaceAll(ctx context.Context, tx *sql.Tx, ladderID int, members []models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	for id, m := range r.members {
		if m.LadderID == ladderID {
			delete(r.members, id)
		}
	}
	for _, m := range members {
		if m.ID == 0 {
			m.ID = r.nextID
			r.nextID++
		}
		r.members[m.ID] = m
	}
	return nil
}

type fakeChallengeRepo struct {
	mu         sync.Mutex
	challenges map[int]*models.Challenge
	nextID     int
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{challenges: make(map[int]*models.Challenge), nextID: 1}
}

func (r *fakeChallengeRepo) put(c models.Challenge) *models.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	stored := c
	r.challenges[c.ID] = &stored
	return &stored
}

func (r *fakeChallengeRepo) Create(ctx context.Context, exec repositories.SQLExecutor, c *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Вытеснение pending-вызова той же направленной пары.
	for id, existing := range r.challenges {
		if existing.LadderID == c.LadderID &&
			existing.ChallengerID == c.ChallengerID &&
			existing.OpponentID == c.OpponentID &&
			existing.Status == models.ChallengeStatusPending {
			delete(r.challenges, id)
		}
	}
	c.ID = r.nextID
	r.nextID++
	c.CreatedAt = time.Now().UTC()
	stored := *c
	r.challenges[c.ID] = &stored

	// Кап на pending: старейшие вызовы выбывают первыми.
	pendingIDs := make([]int, 0)
	for id, ch := range r.challenges {
		if ch.LadderID == c.LadderID && ch.Status == models.ChallengeStatusPending {
			pendingIDs = append(pendingIDs, id)
		}
	}
	sort.Ints(pendingIDs)
	for len(pendingIDs) > models.PendingChallengeCap {
		delete(r.challenges, pendingIDs[0])
		pendingIDs = pendingIDs[1:]
	}
	return nil
}

func (r *fakeChallengeRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, repositories.ErrChallengeNotFound
	}
	out := *c
	return &out, nil
}

func (r *fakeChallengeRepo) ListPending(ctx context.Context, exec repositories.SQLExecutor, ladderID int) ([]models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Challenge, 0)
	for _, c := range r.challenges {
		if c.LadderID == ladderID && c.Status == models.ChallengeStatusPending {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeChallengeRepo) UpdateResolved(ctx context.Context, exec repositories.SQLExecutor, id int, result *models.ChallengeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return repositories.ErrChallengeNotFound
	}
	c.Status = models.ChallengeStatusResolved
	c.Result = result
	return nil
}

func (r *fakeChallengeRepo) UpdateProofRef(ctx context.Context, exec repositories.SQLExecutor, id int, proofRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return repositories.ErrChallengeNotFound
	}
	c.ProofRef = &proofRef
	return nil
}

func (r *fakeChallengeRepo) UpdateVoid(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return repositories.ErrChallengeNotFound
	}
	c.Status = models.ChallengeStatusVoid
	return nil
}

func (r *fakeChallengeRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[id]; !ok {
		return repositories.ErrChallengeNotFound
	}
	delete(r.challenges, id)
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records map[int][]models.MatchRecord
	nextID  int
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{records: make(map[int][]models.MatchRecord), nextID: 1}
}

func (r *fakeHistoryRepo) Append(ctx context.Context, exec repositories.SQLExecutor, rec *models.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = r.nextID
	r.nextID++
	list := append(r.records[rec.LadderID], *rec)
	if len(list) > models.MatchHistoryCap {
		list = list[len(list)-models.MatchHistoryCap:]
	}
	r.records[rec.LadderID] = list
	return nil
}

func (r *fakeHistoryRepo) ListByLadder(ctx context.Context, exec repositories.SQLExecutor, ladderID, limit int) ([]models.MatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.records[ladderID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]models.MatchRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// fakeOracle выдаёт роль по userID независимо от капсулы.
type fakeOracle struct {
	viewers map[int]models.Viewer
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{viewers: make(map[int]models.Viewer)}
}

func (o *fakeOracle) set(userID int, role models.CapsuleRole, isOwner, isMember bool) {
	o.viewers[userID] = models.Viewer{UserID: userID, Role: role, IsOwner: isOwner, IsMember: isMember}
}

func (o *fakeOracle) ResolveViewer(ctx context.Context, capsuleID, userID int) (models.Viewer, error) {
	if v, ok := o.viewers[userID]; ok {
		return v, nil
	}
	return models.Viewer{UserID: userID, Role: models.RoleNone}, nil
}

type sinkCall struct {
	ladderID int
	event    Event
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

func (s *fakeSink) Publish(ladderID int, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{ladderID: ladderID, event: event})
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
