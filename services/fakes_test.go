package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"kpiengine/apperrors"
	"kpiengine/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is the shared in-memory state behind the fake repositories so
// service behaviour can be exercised without MongoDB. The per-interface
// fakes below are thin views over it.
type memStore struct {
	mu          sync.Mutex
	kpis        map[primitive.ObjectID]*models.KPI
	entries     map[primitive.ObjectID]*models.ProgressEntry
	milestones  map[primitive.ObjectID]*models.Milestone
	pillars     map[primitive.ObjectID]*models.Pillar
	departments map[primitive.ObjectID]*models.Department
	initiatives map[primitive.ObjectID]*models.Initiative
	alerts      []models.Alert
}

func newMemStore() *memStore {
	return &memStore{
		kpis:        make(map[primitive.ObjectID]*models.KPI),
		entries:     make(map[primitive.ObjectID]*models.ProgressEntry),
		milestones:  make(map[primitive.ObjectID]*models.Milestone),
		pillars:     make(map[primitive.ObjectID]*models.Pillar),
		departments: make(map[primitive.ObjectID]*models.Department),
		initiatives: make(map[primitive.ObjectID]*models.Initiative),
	}
}

func (s *memStore) alertsOfType(t models.AlertType) []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

var errNotFound = apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)

// fakeKPIRepo implements repositories.KPIRepository.
type fakeKPIRepo struct{ s *memStore }

func (r fakeKPIRepo) Create(_ context.Context, kpi *models.KPI) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kpi.ID = primitive.NewObjectID()
	cp := *kpi
	r.s.kpis[kpi.ID] = &cp
	return nil
}

func (r fakeKPIRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.KPI, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kpi, ok := r.s.kpis[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *kpi
	return &cp, nil
}

func (r fakeKPIRepo) GetByCode(_ context.Context, code string) (*models.KPI, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, kpi := range r.s.kpis {
		if kpi.Code == code {
			cp := *kpi
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (r fakeKPIRepo) GetAll(_ context.Context) ([]models.KPI, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.KPI, 0, len(r.s.kpis))
	for _, kpi := range r.s.kpis {
		out = append(out, *kpi)
	}
	return out, nil
}

func (r fakeKPIRepo) ListActiveByPillar(_ context.Context, pillarID primitive.ObjectID) ([]models.KPI, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.KPI
	for _, kpi := range r.s.kpis {
		if kpi.Active && kpi.PillarID == pillarID {
			out = append(out, *kpi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r fakeKPIRepo) ListActiveByDepartment(_ context.Context, departmentID primitive.ObjectID) ([]models.KPI, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.KPI
	for _, kpi := range r.s.kpis {
		if kpi.Active && kpi.DepartmentID != nil && *kpi.DepartmentID == departmentID {
			out = append(out, *kpi)
		}
	}
	return out, nil
}

func (r fakeKPIRepo) CountByPillar(_ context.Context, pillarID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, kpi := range r.s.kpis {
		if kpi.PillarID == pillarID {
			count++
		}
	}
	return count, nil
}

func (r fakeKPIRepo) SetAuthoritative(_ context.Context, id primitive.ObjectID, value float64, date time.Time, entryID primitive.ObjectID, status models.KPIStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kpi, ok := r.s.kpis[id]
	if !ok {
		return errNotFound
	}
	v, d, e := value, date, entryID
	kpi.CurrentValue = &v
	kpi.AuthoritativeDate = &d
	kpi.AuthoritativeEntry = &e
	kpi.Status = status
	kpi.Metadata.UpdatedAt = time.Now()
	return nil
}

func (r fakeKPIRepo) SetStatus(_ context.Context, id primitive.ObjectID, status models.KPIStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kpi, ok := r.s.kpis[id]
	if !ok {
		return errNotFound
	}
	kpi.Status = status
	return nil
}

func (r fakeKPIRepo) SetRisk(_ context.Context, id primitive.ObjectID, risk models.RiskAnnotation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kpi, ok := r.s.kpis[id]
	if !ok {
		return errNotFound
	}
	kpi.Risk = &risk
	return nil
}

func (r fakeKPIRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.kpis[id]; !ok {
		return errNotFound
	}
	delete(r.s.kpis, id)
	for eid, entry := range r.s.entries {
		if entry.KPIID == id {
			delete(r.s.entries, eid)
		}
	}
	for mid, ms := range r.s.milestones {
		if ms.KPIID == id {
			delete(r.s.milestones, mid)
		}
	}
	return nil
}

func (r fakeKPIRepo) CreateMilestone(_ context.Context, m *models.Milestone) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = primitive.NewObjectID()
	cp := *m
	r.s.milestones[m.ID] = &cp
	return nil
}

func (r fakeKPIRepo) GetMilestone(_ context.Context, id primitive.ObjectID) (*models.Milestone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ms, ok := r.s.milestones[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *ms
	return &cp, nil
}

func (r fakeKPIRepo) ListMilestones(_ context.Context, kpiID primitive.ObjectID) ([]models.Milestone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Milestone
	for _, ms := range r.s.milestones {
		if ms.KPIID == kpiID {
			out = append(out, *ms)
		}
	}
	return out, nil
}

func (r fakeKPIRepo) SetMilestoneCompletion(_ context.Context, id primitive.ObjectID, percent float64, updatedBy string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ms, ok := r.s.milestones[id]
	if !ok {
		return errNotFound
	}
	ms.CompletionPercent = percent
	ms.Metadata.UpdatedBy = updatedBy
	return nil
}

// fakeProgressRepo implements repositories.ProgressRepository.
type fakeProgressRepo struct{ s *memStore }

func (r fakeProgressRepo) Insert(_ context.Context, entry *models.ProgressEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	cp := *entry
	r.s.entries[entry.ID] = &cp
	return nil
}

func (r fakeProgressRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.ProgressEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r fakeProgressRepo) ListByKPI(_ context.Context, kpiID primitive.ObjectID) ([]models.ProgressEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.ProgressEntry
	for _, entry := range r.s.entries {
		if entry.KPIID == kpiID {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportingDate.Equal(out[j].ReportingDate) {
			return out[i].ReportingDate.After(out[j].ReportingDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r fakeProgressRepo) ExistsForDate(_ context.Context, kpiID primitive.ObjectID, date time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, entry := range r.s.entries {
		if entry.KPIID == kpiID && entry.ReportingDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeProgressRepo) MarkVerified(_ context.Context, id primitive.ObjectID, verifierID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok || entry.State != models.EntryPending {
		return apperrors.Wrap(apperrors.KindStateConflict, apperrors.ErrAlreadyResolved)
	}
	entry.State = models.EntryVerified
	entry.VerifierID = &verifierID
	entry.ResolvedAt = &at
	return nil
}

func (r fakeProgressRepo) MarkRejected(_ context.Context, id primitive.ObjectID, verifierID, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok || entry.State != models.EntryPending {
		return apperrors.Wrap(apperrors.KindStateConflict, apperrors.ErrAlreadyResolved)
	}
	entry.State = models.EntryRejected
	entry.VerifierID = &verifierID
	entry.RejectionReason = &reason
	entry.ResolvedAt = &at
	return nil
}

func (r fakeProgressRepo) LatestVerified(_ context.Context, kpiID primitive.ObjectID) (*models.ProgressEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.ProgressEntry
	for _, entry := range r.s.entries {
		if entry.KPIID != kpiID || entry.State != models.EntryVerified || entry.MilestoneID != nil {
			continue
		}
		if latest == nil ||
			entry.ReportingDate.After(latest.ReportingDate) ||
			(entry.ReportingDate.Equal(latest.ReportingDate) && entry.CreatedAt.After(latest.CreatedAt)) {
			latest = entry
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r fakeProgressRepo) HasAny(_ context.Context, kpiID primitive.ObjectID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, entry := range r.s.entries {
		if entry.KPIID == kpiID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeProgressRepo) CountResolved(_ context.Context, kpiID primitive.ObjectID) (int64, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var verified, rejected int64
	for _, entry := range r.s.entries {
		if entry.KPIID != kpiID {
			continue
		}
		switch entry.State {
		case models.EntryVerified:
			verified++
		case models.EntryRejected:
			rejected++
		}
	}
	return verified, rejected, nil
}

// fakeRollupRepo implements repositories.RollupRepository.
type fakeRollupRepo struct{ s *memStore }

func (r fakeRollupRepo) CreatePillar(_ context.Context, p *models.Pillar) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = primitive.NewObjectID()
	cp := *p
	r.s.pillars[p.ID] = &cp
	return nil
}

func (r fakeRollupRepo) GetPillar(_ context.Context, id primitive.ObjectID) (*models.Pillar, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pillars[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (r fakeRollupRepo) ListPillarsByInitiative(_ context.Context, initiativeID primitive.ObjectID) ([]models.Pillar, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Pillar
	for _, p := range r.s.pillars {
		if p.InitiativeID != nil && *p.InitiativeID == initiativeID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r fakeRollupRepo) DeletePillar(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.pillars[id]; !ok {
		return errNotFound
	}
	delete(r.s.pillars, id)
	return nil
}

func (r fakeRollupRepo) CreateDepartment(_ context.Context, d *models.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.ID = primitive.NewObjectID()
	cp := *d
	r.s.departments[d.ID] = &cp
	return nil
}

func (r fakeRollupRepo) GetDepartment(_ context.Context, id primitive.ObjectID) (*models.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.departments[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *d
	return &cp, nil
}

func (r fakeRollupRepo) CreateInitiative(_ context.Context, i *models.Initiative) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i.ID = primitive.NewObjectID()
	cp := *i
	r.s.initiatives[i.ID] = &cp
	return nil
}

func (r fakeRollupRepo) GetInitiative(_ context.Context, id primitive.ObjectID) (*models.Initiative, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.initiatives[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *i
	return &cp, nil
}

func (r fakeRollupRepo) SaveRollup(_ context.Context, entity models.EntityType, id primitive.ObjectID, state models.RollupState) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var current *models.RollupState
	switch entity {
	case models.EntityPillar:
		p, ok := r.s.pillars[id]
		if !ok {
			return false, errNotFound
		}
		current = &p.Rollup
	case models.EntityDepartment:
		d, ok := r.s.departments[id]
		if !ok {
			return false, errNotFound
		}
		current = &d.Rollup
	case models.EntityInitiative:
		i, ok := r.s.initiatives[id]
		if !ok {
			return false, errNotFound
		}
		current = &i.Rollup
	default:
		return false, errNotFound
	}
	if current.Version >= state.Version {
		return false, nil
	}
	*current = state
	return true, nil
}

// fakeAlertRepo implements repositories.AlertRepository.
type fakeAlertRepo struct{ s *memStore }

func (r fakeAlertRepo) Insert(_ context.Context, alert *models.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	alert.ID = primitive.NewObjectID()
	r.s.alerts = append(r.s.alerts, *alert)
	return nil
}

func (r fakeAlertRepo) List(_ context.Context, unreadOnly bool, limit int64) ([]models.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Alert
	for _, a := range r.s.alerts {
		if unreadOnly && a.Read {
			continue
		}
		out = append(out, a)
		if int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (r fakeAlertRepo) Acknowledge(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.alerts {
		if r.s.alerts[i].ID == id {
			r.s.alerts[i].Read = true
			r.s.alerts[i].Acknowledged = true
			return nil
		}
	}
	return errNotFound
}

// captureNotifier records pushed events for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (n *captureNotifier) Push(_ context.Context, event models.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
