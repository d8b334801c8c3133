package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/storage"
	"github.com/bayanihan-data/povassess/internal/store"
	"github.com/bayanihan-data/povassess/types"
)

func intPtr(v int) *int { return &v }

var (
	adminActor = policy.Actor{ID: 1, Role: types.RoleAdmin}
	ngoActor   = policy.Actor{ID: 2, Role: types.RoleNGOStaff}
)

func workerActor(id, areaID int) policy.Actor {
	return policy.Actor{ID: id, Role: types.RoleWorker, AreaID: intPtr(areaID)}
}

type fakeAreas struct {
	mu     sync.Mutex
	nextID int
	items  map[int]types.Area
}

func newFakeAreas(names ...string) *fakeAreas {
	f := &fakeAreas{items: map[int]types.Area{}}
	for _, name := range names {
		_, _ = f.Create(context.Background(), types.Area{Name: name, Location: types.NewGeoPoint(0, 0)})
	}
	return f
}

func (f *fakeAreas) List(_ context.Context, deleted bool) ([]types.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Area{}
	for _, a := range f.items {
		if a.Deleted == deleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeAreas) Get(_ context.Context, id int) (types.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		return types.Area{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAreas) FindByName(_ context.Context, name string) (types.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if !a.Deleted && strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			return a, nil
		}
	}
	return types.Area{}, store.ErrNotFound
}

func (f *fakeAreas) nameTaken(name string, except int) bool {
	for _, a := range f.items {
		if a.ID != except && !a.Deleted && strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

func (f *fakeAreas) Create(_ context.Context, area types.Area) (types.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nameTaken(area.Name, 0) {
		return types.Area{}, store.ErrConflict
	}
	f.nextID++
	area.ID = f.nextID
	area.CreatedAt = time.Now()
	area.UpdatedAt = area.CreatedAt
	f.items[area.ID] = area
	return area, nil
}

func (f *fakeAreas) Update(_ context.Context, area types.Area) (types.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.items[area.ID]
	if !ok || existing.Deleted {
		return types.Area{}, store.ErrNotFound
	}
	if f.nameTaken(area.Name, area.ID) {
		return types.Area{}, store.ErrConflict
	}
	area.CreatedAt = existing.CreatedAt
	f.items[area.ID] = area
	return area, nil
}

func (f *fakeAreas) SetDeleted(_ context.Context, id int, deleted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok || a.Deleted == deleted {
		return store.ErrNotFound
	}
	if !deleted && f.nameTaken(a.Name, id) {
		return store.ErrConflict
	}
	a.Deleted = deleted
	f.items[id] = a
	return nil
}

type fakeHouseholds struct {
	mu     sync.Mutex
	nextID int
	items  map[int]types.Household
	areas  *fakeAreas
	// raceOnCreate makes Create report a unique violation, as when a
	// concurrent import inserted the same key first.
	raceOnCreate bool
	createCalls  int
}

func newFakeHouseholds(areas *fakeAreas) *fakeHouseholds {
	return &fakeHouseholds{items: map[int]types.Household{}, areas: areas}
}

func (f *fakeHouseholds) keyTaken(key types.HouseholdKey, except int) bool {
	for _, h := range f.items {
		if h.ID != except && !h.Deleted && h.Key() == key {
			return true
		}
	}
	return false
}

func (f *fakeHouseholds) withArea(h types.Household) types.Household {
	if a, ok := f.areas.items[h.AreaID]; ok {
		h.Area = &a
	}
	return h
}

func (f *fakeHouseholds) List(_ context.Context, filter types.HouseholdFilter, offset, limit int) ([]types.Household, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []types.Household
	for _, h := range f.items {
		if h.Deleted != filter.Deleted {
			continue
		}
		if filter.AreaID != nil && h.AreaID != *filter.AreaID {
			continue
		}
		if filter.RiskLevel != "" && h.RiskLevel != filter.RiskLevel {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(h.HeadName+" "+h.Address), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, f.withArea(h))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]types.Household{}, matched[offset:end]...), total, nil
}

func (f *fakeHouseholds) Get(_ context.Context, id int) (types.Household, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.items[id]
	if !ok {
		return types.Household{}, store.ErrNotFound
	}
	return f.withArea(h), nil
}

func (f *fakeHouseholds) FindActiveByKey(_ context.Context, key types.HouseholdKey) (types.Household, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.items {
		if !h.Deleted && h.Key() == key {
			return f.withArea(h), nil
		}
	}
	return types.Household{}, store.ErrNotFound
}

func (f *fakeHouseholds) Create(_ context.Context, h types.Household) (types.Household, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.raceOnCreate || f.keyTaken(h.Key(), 0) {
		return types.Household{}, store.ErrConflict
	}
	f.nextID++
	h.ID = f.nextID
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	h.Area = nil
	f.items[h.ID] = h
	return h, nil
}

func (f *fakeHouseholds) Update(_ context.Context, h types.Household) (types.Household, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.items[h.ID]
	if !ok || existing.Deleted {
		return types.Household{}, store.ErrNotFound
	}
	if f.keyTaken(h.Key(), h.ID) {
		return types.Household{}, store.ErrConflict
	}
	h.UpdatedAt = time.Now()
	h.Area = nil
	f.items[h.ID] = h
	return h, nil
}

func (f *fakeHouseholds) SetDeleted(_ context.Context, id int, deleted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.items[id]
	if !ok || h.Deleted == deleted {
		return store.ErrNotFound
	}
	if !deleted && f.keyTaken(h.Key(), id) {
		return store.ErrConflict
	}
	h.Deleted = deleted
	f.items[id] = h
	return nil
}

func (f *fakeHouseholds) PurgeAll(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.items)
	f.items = map[int]types.Household{}
	return n, nil
}

func (f *fakeHouseholds) Summarize(_ context.Context, areaID *int) ([]types.AreaSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byArea := map[int]*types.AreaSummary{}
	for _, h := range f.items {
		if h.Deleted || (areaID != nil && h.AreaID != *areaID) {
			continue
		}
		s, ok := byArea[h.AreaID]
		if !ok {
			a := f.areas.items[h.AreaID]
			s = &types.AreaSummary{AreaID: a.ID, AreaName: a.Name, Location: a.Location}
			byArea[h.AreaID] = s
		}
		switch h.RiskLevel {
		case types.RiskLow:
			s.Low++
		case types.RiskModerate:
			s.Moderate++
		case types.RiskHigh:
			s.High++
		}
		s.AverageScore += float64(h.PovertyScore)
		s.AverageIncome += h.FamilyIncome
		s.Total++
	}
	out := []types.AreaSummary{}
	for _, s := range byArea {
		s.AverageScore /= float64(s.Total)
		s.AverageIncome /= float64(s.Total)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AreaName < out[j].AreaName })
	return out, nil
}

func (f *fakeHouseholds) active() []types.Household {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Household
	for _, h := range f.items {
		if !h.Deleted {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int
	items  map[int]types.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{items: map[int]types.User{}}
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) List(_ context.Context, deleted bool) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.User{}
	for _, u := range f.items {
		if u.Deleted == deleted {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) emailTaken(email string, except int) bool {
	for _, u := range f.items {
		if u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (f *fakeUsers) Create(_ context.Context, u types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emailTaken(u.Email, 0) {
		return types.User{}, store.ErrConflict
	}
	f.nextID++
	u.ID = f.nextID
	f.items[u.ID] = u
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, u types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.items[u.ID]
	if !ok || existing.Deleted {
		return types.User{}, store.ErrNotFound
	}
	if f.emailTaken(u.Email, u.ID) {
		return types.User{}, store.ErrConflict
	}
	f.items[u.ID] = u
	return u, nil
}

func (f *fakeUsers) SetDeleted(_ context.Context, id int, deleted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok || u.Deleted == deleted {
		return store.ErrNotFound
	}
	u.Deleted = deleted
	f.items[id] = u
	return nil
}

func (f *fakeUsers) AssignAreaToUnassignedWorkers(_ context.Context, areaID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, u := range f.items {
		if u.Role == types.RoleWorker && u.AreaID == nil && !u.Deleted {
			u.AreaID = intPtr(areaID)
			f.items[id] = u
			n++
		}
	}
	return n, nil
}

type fakePrograms struct {
	mu     sync.Mutex
	nextID int
	items  map[int]types.Program
}

func newFakePrograms() *fakePrograms {
	return &fakePrograms{items: map[int]types.Program{}}
}

func (f *fakePrograms) List(_ context.Context, createdBy *int) ([]types.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Program{}
	for _, p := range f.items {
		if createdBy == nil || p.CreatedBy == *createdBy {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePrograms) Get(_ context.Context, id int) (types.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return types.Program{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakePrograms) nameTaken(name string, except int) bool {
	for _, p := range f.items {
		if p.ID != except && p.Name == name {
			return true
		}
	}
	return false
}

func (f *fakePrograms) Create(_ context.Context, p types.Program) (types.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nameTaken(p.Name, 0) {
		return types.Program{}, store.ErrConflict
	}
	f.nextID++
	p.ID = f.nextID
	f.items[p.ID] = p
	return p, nil
}

func (f *fakePrograms) Update(_ context.Context, p types.Program) (types.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[p.ID]; !ok {
		return types.Program{}, store.ErrNotFound
	}
	if f.nameTaken(p.Name, p.ID) {
		return types.Program{}, store.ErrConflict
	}
	f.items[p.ID] = p
	return p, nil
}

func (f *fakePrograms) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeReferrals struct {
	mu         sync.Mutex
	nextID     int
	items      map[int]types.Referral
	households *fakeHouseholds
	programs   *fakePrograms
}

func newFakeReferrals(households *fakeHouseholds, programs *fakePrograms) *fakeReferrals {
	return &fakeReferrals{items: map[int]types.Referral{}, households: households, programs: programs}
}

func (f *fakeReferrals) expand(r types.Referral) types.Referral {
	if h, ok := f.households.items[r.HouseholdID]; ok {
		r.Household = &h
	}
	if p, ok := f.programs.items[r.ProgramID]; ok {
		r.Program = &p
	}
	return r
}

func (f *fakeReferrals) List(_ context.Context, filter store.ReferralFilter) ([]types.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Referral{}
	for _, r := range f.items {
		r = f.expand(r)
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.AreaID != nil && (r.Household == nil || r.Household.AreaID != *filter.AreaID) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeReferrals) Get(_ context.Context, id int) (types.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return types.Referral{}, store.ErrNotFound
	}
	return f.expand(r), nil
}

func (f *fakeReferrals) Create(_ context.Context, r types.Referral) (types.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	r.Household = nil
	r.Program = nil
	f.items[r.ID] = r
	return r, nil
}

func (f *fakeReferrals) UpdateStatus(_ context.Context, r types.Referral) (types.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.items[r.ID]
	if !ok {
		return types.Referral{}, store.ErrNotFound
	}
	existing.Status = r.Status
	existing.Notes = r.Notes
	existing.ApprovedBy = r.ApprovedBy
	f.items[r.ID] = existing
	return r, nil
}

func (f *fakeReferrals) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type publishedEvent struct {
	eventType string
	payload   any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeEvents) PublishEvent(_ context.Context, eventType string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType: eventType, payload: payload})
	return "evt", nil
}

type fakeArchive struct {
	imports map[string]storage.ImportUpload
	reports map[string]storage.ReportFile
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{imports: map[string]storage.ImportUpload{}, reports: map[string]storage.ReportFile{}}
}

func (f *fakeArchive) ArchiveImport(_ context.Context, upload storage.ImportUpload) (string, error) {
	key := "imports/" + upload.BatchID + "/" + upload.Filename
	f.imports[key] = upload
	return key, nil
}

func (f *fakeArchive) ArchiveReport(_ context.Context, file storage.ReportFile) (string, error) {
	key := "reports/" + file.Format + "/report." + file.Format
	f.reports[key] = file
	return key, nil
}
