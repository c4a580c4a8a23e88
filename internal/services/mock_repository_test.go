package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

// memStore is the state behind mockRepository. Transactions hold mu for their whole
// duration and restore a snapshot when fn fails.
type memStore struct {
	mu sync.Mutex

	assessments map[uint]models.Assessment
	questions   []models.Question
	grants      map[uint]models.AttemptGrant
	orders      map[string]models.GrantOrder
	payments    []models.PaymentOrder
	sessions    map[string]models.AssessmentSession
	results     map[uint]models.Result
	violations  []models.ViolationRecord
	users       map[string]models.User

	nextGrantID     uint
	nextResultID    uint
	nextViolationID uint

	resultCreateErr error
}

func newMemStore() *memStore {
	return &memStore{
		assessments: map[uint]models.Assessment{},
		grants:      map[uint]models.AttemptGrant{},
		orders:      map[string]models.GrantOrder{},
		sessions:    map[string]models.AssessmentSession{},
		results:     map[uint]models.Result{},
		users:       map[string]models.User{},
	}
}

func (s *memStore) snapshot() *memStore {
	c := &memStore{
		assessments:     make(map[uint]models.Assessment, len(s.assessments)),
		questions:       append([]models.Question(nil), s.questions...),
		grants:          make(map[uint]models.AttemptGrant, len(s.grants)),
		orders:          make(map[string]models.GrantOrder, len(s.orders)),
		payments:        append([]models.PaymentOrder(nil), s.payments...),
		sessions:        make(map[string]models.AssessmentSession, len(s.sessions)),
		results:         make(map[uint]models.Result, len(s.results)),
		violations:      append([]models.ViolationRecord(nil), s.violations...),
		users:           s.users,
		nextGrantID:     s.nextGrantID,
		nextResultID:    s.nextResultID,
		nextViolationID: s.nextViolationID,
		resultCreateErr: s.resultCreateErr,
	}
	for k, v := range s.assessments {
		c.assessments[k] = v
	}
	for k, v := range s.grants {
		c.grants[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.results {
		c.results[k] = v
	}
	return c
}

func (s *memStore) restore(c *memStore) {
	s.assessments = c.assessments
	s.questions = c.questions
	s.grants = c.grants
	s.orders = c.orders
	s.payments = c.payments
	s.sessions = c.sessions
	s.results = c.results
	s.violations = c.violations
	s.nextGrantID = c.nextGrantID
	s.nextResultID = c.nextResultID
	s.nextViolationID = c.nextViolationID
}

type mockRepository struct {
	store *memStore
	inTx  bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{store: newMemStore()}
}

func (r *mockRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *mockRepository) Assessment() repositories.AssessmentRepository {
	return &mockAssessmentRepo{r}
}
func (r *mockRepository) Question() repositories.QuestionRepository { return &mockQuestionRepo{r} }
func (r *mockRepository) Grant() repositories.GrantRepository       { return &mockGrantRepo{r} }
func (r *mockRepository) PaymentOrder() repositories.PaymentOrderRepository {
	return &mockPaymentRepo{r}
}
func (r *mockRepository) Session() repositories.SessionRepository { return &mockSessionRepo{r} }
func (r *mockRepository) Result() repositories.ResultRepository   { return &mockResultRepo{r} }
func (r *mockRepository) Violation() repositories.ViolationRepository {
	return &mockViolationRepo{r}
}
func (r *mockRepository) User() repositories.UserRepository { return &mockUserRepo{r} }

func (r *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	saved := r.store.snapshot()
	if err := fn(&mockRepository{store: r.store, inTx: true}); err != nil {
		r.store.restore(saved)
		return err
	}
	return nil
}

func (r *mockRepository) Ping(ctx context.Context) error { return nil }
func (r *mockRepository) Close() error                   { return nil }

// ===== SEEDING =====

func (r *mockRepository) addAssessment(a models.Assessment) {
	defer r.lock()()
	if a.Status == "" {
		a.Status = models.StatusActive
	}
	r.store.assessments[a.ID] = a
}

func (r *mockRepository) addQuestions(assessmentID uint, n int) []models.Question {
	defer r.lock()()
	out := make([]models.Question, 0, n)
	base := uint(len(r.store.questions))
	for i := 0; i < n; i++ {
		q := models.Question{
			ID:           base + uint(i) + 1,
			AssessmentID: assessmentID,
			Text:         "question",
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
			Difficulty:   models.DifficultyLevel(i%3 + 1),
		}
		r.store.questions = append(r.store.questions, q)
		out = append(out, q)
	}
	return out
}

func (r *mockRepository) addGrant(g models.AttemptGrant) models.AttemptGrant {
	defer r.lock()()
	r.store.nextGrantID++
	g.ID = r.store.nextGrantID
	r.store.grants[g.ID] = g
	return g
}

func (r *mockRepository) addUser(u models.User) {
	defer r.lock()()
	r.store.users[u.ID] = u
}

func (r *mockRepository) grant(userID string, assessmentID uint) (models.AttemptGrant, bool) {
	defer r.lock()()
	for _, g := range r.store.grants {
		if g.UserID == userID && g.AssessmentID == assessmentID {
			return g, true
		}
	}
	return models.AttemptGrant{}, false
}

func (r *mockRepository) sessionCount() int {
	defer r.lock()()
	return len(r.store.sessions)
}

// ===== ASSESSMENTS & QUESTIONS =====

type mockAssessmentRepo struct{ r *mockRepository }

func (m *mockAssessmentRepo) Create(ctx context.Context, a *models.Assessment) error {
	defer m.r.lock()()
	m.r.store.assessments[a.ID] = *a
	return nil
}

func (m *mockAssessmentRepo) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	defer m.r.lock()()
	a, ok := m.r.store.assessments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

type mockQuestionRepo struct{ r *mockRepository }

func (m *mockQuestionRepo) CreateBatch(ctx context.Context, qs []models.Question) error {
	defer m.r.lock()()
	m.r.store.questions = append(m.r.store.questions, qs...)
	return nil
}

func (m *mockQuestionRepo) ListByAssessment(ctx context.Context, assessmentID uint) ([]models.Question, error) {
	defer m.r.lock()()
	var out []models.Question
	for _, q := range m.r.store.questions {
		if q.AssessmentID == assessmentID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockQuestionRepo) GetByIDs(ctx context.Context, ids []uint) ([]models.Question, error) {
	defer m.r.lock()()
	byID := make(map[uint]models.Question, len(m.r.store.questions))
	for _, q := range m.r.store.questions {
		byID[q.ID] = q
	}
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// ===== QUOTA LEDGER =====

type mockGrantRepo struct{ r *mockRepository }

func (m *mockGrantRepo) Create(ctx context.Context, g *models.AttemptGrant) error {
	defer m.r.lock()()
	for _, existing := range m.r.store.grants {
		if existing.UserID == g.UserID && existing.AssessmentID == g.AssessmentID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.r.store.nextGrantID++
	g.ID = m.r.store.nextGrantID
	m.r.store.grants[g.ID] = *g
	return nil
}

func (m *mockGrantRepo) Get(ctx context.Context, userID string, assessmentID uint) (*models.AttemptGrant, error) {
	defer m.r.lock()()
	for _, g := range m.r.store.grants {
		if g.UserID == userID && g.AssessmentID == assessmentID {
			return &g, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockGrantRepo) GetActive(ctx context.Context, userID string, assessmentID uint) (*models.AttemptGrant, error) {
	defer m.r.lock()()
	for _, g := range m.r.store.grants {
		if g.UserID == userID && g.AssessmentID == assessmentID && g.HasAccess {
			return &g, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockGrantRepo) Reserve(ctx context.Context, grantID uint) (int, bool, error) {
	defer m.r.lock()()
	g, ok := m.r.store.grants[grantID]
	if !ok || !g.HasAccess || g.AttemptsUsed >= g.MaxAttempts {
		return 0, false, nil
	}
	g.AttemptsUsed++
	m.r.store.grants[grantID] = g
	return g.AttemptsUsed, true, nil
}

func (m *mockGrantRepo) ClaimOrder(ctx context.Context, order *models.GrantOrder) (bool, error) {
	defer m.r.lock()()
	if _, seen := m.r.store.orders[order.OrderID]; seen {
		return false, nil
	}
	m.r.store.orders[order.OrderID] = *order
	return true, nil
}

func (m *mockGrantRepo) Reset(ctx context.Context, grantID uint, maxAttempts int, purchasedAt time.Time) error {
	defer m.r.lock()()
	g, ok := m.r.store.grants[grantID]
	if !ok {
		return repositories.ErrNotFound
	}
	g.HasAccess = true
	g.AttemptsUsed = 0
	g.MaxAttempts = maxAttempts
	g.PurchasedAt = purchasedAt
	m.r.store.grants[grantID] = g
	return nil
}

type mockPaymentRepo struct{ r *mockRepository }

func (m *mockPaymentRepo) ListByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) ([]*models.PaymentOrder, error) {
	defer m.r.lock()()
	var out []*models.PaymentOrder
	for i := range m.r.store.payments {
		p := m.r.store.payments[i]
		if p.UserID == userID && p.AssessmentID == assessmentID {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	defer m.r.lock()()
	for _, p := range m.r.store.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, paidAt *time.Time) error {
	defer m.r.lock()()
	for i := range m.r.store.payments {
		if m.r.store.payments[i].OrderID == orderID && m.r.store.payments[i].Status == models.PaymentPending {
			m.r.store.payments[i].Status = status
			m.r.store.payments[i].PaidAt = paidAt
		}
	}
	return nil
}

// ===== SESSIONS & RESULTS =====

type mockSessionRepo struct{ r *mockRepository }

func (m *mockSessionRepo) Create(ctx context.Context, s *models.AssessmentSession) error {
	defer m.r.lock()()
	if _, ok := m.r.store.sessions[s.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.r.store.sessions[s.ID] = *s
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*models.AssessmentSession, error) {
	defer m.r.lock()()
	s, ok := m.r.store.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

func (m *mockSessionRepo) GetForUpdate(ctx context.Context, id string) (*models.AssessmentSession, error) {
	return m.GetByID(ctx, id)
}

func (m *mockSessionRepo) LatestOpen(ctx context.Context, userID string, assessmentID uint) (*models.AssessmentSession, error) {
	defer m.r.lock()()
	var latest *models.AssessmentSession
	for _, s := range m.r.store.sessions {
		if s.UserID != userID || s.AssessmentID != assessmentID || s.Status != models.SessionInProgress {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) {
			s := s
			latest = &s
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	return latest, nil
}

func (m *mockSessionRepo) Close(ctx context.Context, id string, resultID *uint, closedAt time.Time) error {
	defer m.r.lock()()
	s, ok := m.r.store.sessions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	s.Status = models.SessionClosed
	s.ResultID = resultID
	s.ClosedAt = &closedAt
	m.r.store.sessions[id] = s
	return nil
}

type mockResultRepo struct{ r *mockRepository }

func (m *mockResultRepo) Create(ctx context.Context, res *models.Result) error {
	defer m.r.lock()()
	if m.r.store.resultCreateErr != nil {
		return m.r.store.resultCreateErr
	}
	if res.SessionID != nil {
		for _, existing := range m.r.store.results {
			if existing.SessionID != nil && *existing.SessionID == *res.SessionID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	m.r.store.nextResultID++
	res.ID = m.r.store.nextResultID
	m.r.store.results[res.ID] = *res
	return nil
}

func (m *mockResultRepo) GetByID(ctx context.Context, id uint) (*models.Result, error) {
	defer m.r.lock()()
	res, ok := m.r.store.results[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &res, nil
}

func (m *mockResultRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Result, error) {
	defer m.r.lock()()
	for _, res := range m.r.store.results {
		if res.SessionID != nil && *res.SessionID == sessionID {
			return &res, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockResultRepo) CountByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) (int64, error) {
	defer m.r.lock()()
	var n int64
	for _, res := range m.r.store.results {
		if res.UserID == userID && res.AssessmentID == assessmentID {
			n++
		}
	}
	return n, nil
}

func (m *mockResultRepo) ListByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) ([]*models.Result, error) {
	return m.list(func(res models.Result) bool {
		return res.UserID == userID && res.AssessmentID == assessmentID
	}, 0), nil
}

func (m *mockResultRepo) ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.Result, error) {
	return m.list(func(res models.Result) bool { return res.AssessmentID == assessmentID }, 0), nil
}

func (m *mockResultRepo) ListMissingCertificates(ctx context.Context, limit int) ([]*models.Result, error) {
	return m.list(func(res models.Result) bool { return res.Passed() && res.CertificateURL == nil }, limit), nil
}

func (m *mockResultRepo) list(keep func(models.Result) bool, limit int) []*models.Result {
	defer m.r.lock()()
	var out []*models.Result
	for _, res := range m.r.store.results {
		if keep(res) {
			res := res
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *mockResultRepo) SetCertificate(ctx context.Context, id uint, url, serial string, issuedAt time.Time) error {
	defer m.r.lock()()
	res, ok := m.r.store.results[id]
	if !ok {
		return repositories.ErrNotFound
	}
	res.CertificateURL = &url
	res.CertificateSerial = &serial
	res.CertificateIssuedAt = &issuedAt
	m.r.store.results[id] = res
	return nil
}

// ===== VIOLATIONS & USERS =====

type mockViolationRepo struct{ r *mockRepository }

func (m *mockViolationRepo) Create(ctx context.Context, v *models.ViolationRecord) error {
	defer m.r.lock()()
	m.r.store.nextViolationID++
	v.ID = m.r.store.nextViolationID
	m.r.store.violations = append(m.r.store.violations, *v)
	return nil
}

func (m *mockViolationRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.ViolationRecord, error) {
	defer m.r.lock()()
	var out []*models.ViolationRecord
	for _, v := range m.r.store.violations {
		if v.SessionID != nil && *v.SessionID == sessionID {
			v := v
			out = append(out, &v)
		}
	}
	return out, nil
}

func (m *mockViolationRepo) ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.ViolationRecord, error) {
	defer m.r.lock()()
	var out []*models.ViolationRecord
	for _, v := range m.r.store.violations {
		if v.AssessmentID == assessmentID {
			v := v
			out = append(out, &v)
		}
	}
	return out, nil
}

type mockUserRepo struct{ r *mockRepository }

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer m.r.lock()()
	u, ok := m.r.store.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	defer m.r.lock()()
	var out []*models.User
	for _, id := range ids {
		if u, ok := m.r.store.users[id]; ok {
			u := u
			out = append(out, &u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	defer m.r.lock()()
	_, ok := m.r.store.users[id]
	return ok, nil
}
