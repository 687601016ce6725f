package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/lan-tournament/models"
)

type rankingKey struct {
	eventID int
	userID  int
}

// memoryState is the arena of all entities, keyed by generated ids.
type memoryState struct {
	nextID        int
	games         map[int]models.Game
	registrations map[int]models.Registration
	matches       map[int]models.Match
	pools         map[int]models.Pool
	rankings      map[rankingKey]models.Ranking
	snapshots     []models.Snapshot
	awards        []models.Award
	maps          map[int]models.TimeTrialMap
	records       map[int]models.TimeTrialRecord
}

func newMemoryState() *memoryState {
	return &memoryState{
		games:         make(map[int]models.Game),
		registrations: make(map[int]models.Registration),
		matches:       make(map[int]models.Match),
		pools:         make(map[int]models.Pool),
		rankings:      make(map[rankingKey]models.Ranking),
		maps:          make(map[int]models.TimeTrialMap),
		records:       make(map[int]models.TimeTrialRecord),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextID = s.nextID
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.registrations {
		c.registrations[k] = cloneRegistration(v)
	}
	for k, v := range s.matches {
		c.matches[k] = cloneMatch(v)
	}
	for k, v := range s.pools {
		c.pools[k] = clonePool(v)
	}
	for k, v := range s.rankings {
		c.rankings[k] = v
	}
	c.snapshots = make([]models.Snapshot, len(s.snapshots))
	for i, v := range s.snapshots {
		c.snapshots[i] = cloneSnapshot(v)
	}
	c.awards = append([]models.Award(nil), s.awards...)
	for k, v := range s.maps {
		c.maps[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	return c
}

func (s *memoryState) newID() int {
	s.nextID++
	return s.nextID
}

func cloneInts(v []int) []int {
	if v == nil {
		return nil
	}
	return append([]int(nil), v...)
}

func cloneParticipant(p models.Participant) models.Participant {
	p.MemberIDs = cloneInts(p.MemberIDs)
	return p
}

func cloneRegistration(r models.Registration) models.Registration {
	r.Participant = cloneParticipant(r.Participant)
	return r
}

func cloneMatch(m models.Match) models.Match {
	m.Roster1 = cloneInts(m.Roster1)
	m.Roster2 = cloneInts(m.Roster2)
	if m.FinishedAt != nil {
		t := *m.FinishedAt
		m.FinishedAt = &t
	}
	return m
}

func clonePool(p models.Pool) models.Pool {
	if p.Host != nil {
		h := cloneParticipant(*p.Host)
		p.Host = &h
	}
	members := make([]models.PoolMember, len(p.Members))
	for i, m := range p.Members {
		members[i] = models.PoolMember{Participant: cloneParticipant(m.Participant), Rank: m.Rank}
	}
	p.Members = members
	p.ParentIDs = cloneInts(p.ParentIDs)
	p.ChildIDs = cloneInts(p.ChildIDs)
	return p
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	s.Entries = append([]models.SnapshotEntry(nil), s.Entries...)
	return s
}

// MemoryStore keeps everything in process memory. Transactions are
// serialized by one mutex and work on a copy of the arena that replaces
// the current state only when the unit of work succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, &memoryTx{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Games() GameRepository                 { return memoryGames{t.state} }
func (t *memoryTx) Registrations() RegistrationRepository { return memoryRegistrations{t.state} }
func (t *memoryTx) Matches() MatchRepository              { return memoryMatches{t.state} }
func (t *memoryTx) Pools() PoolRepository                 { return memoryPools{t.state} }
func (t *memoryTx) Rankings() RankingRepository           { return memoryRankings{t.state} }
func (t *memoryTx) Snapshots() SnapshotRepository         { return memorySnapshots{t.state} }
func (t *memoryTx) Awards() AwardRepository               { return memoryAwards{t.state} }
func (t *memoryTx) TimeTrials() TimeTrialRepository       { return memoryTimeTrials{t.state} }

// The store mutex already serializes every transaction.
func (t *memoryTx) LockGame(ctx context.Context, gameID int) error   { return nil }
func (t *memoryTx) LockEvent(ctx context.Context, eventID int) error { return nil }

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

type memoryGames struct{ s *memoryState }

func (r memoryGames) Create(ctx context.Context, game *models.Game) error {
	game.ID = r.s.newID()
	stamp(&game.CreatedAt)
	r.s.games[game.ID] = *game
	return nil
}

func (r memoryGames) GetByID(ctx context.Context, id int) (*models.Game, error) {
	g, ok := r.s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return &g, nil
}

func (r memoryGames) List(ctx context.Context) ([]*models.Game, error) {
	games := make([]*models.Game, 0, len(r.s.games))
	for _, g := range r.s.games {
		g := g
		games = append(games, &g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

type memoryRegistrations struct{ s *memoryState }

func (r memoryRegistrations) Create(ctx context.Context, reg *models.Registration) error {
	if _, err := r.Find(ctx, reg.EventID, reg.GameID, reg.Participant); err == nil {
		return ErrRegistrationConflict
	}
	reg.ID = r.s.newID()
	stamp(&reg.CreatedAt)
	r.s.registrations[reg.ID] = cloneRegistration(*reg)
	return nil
}

func (r memoryRegistrations) Find(ctx context.Context, eventID, gameID int, p models.Participant) (*models.Registration, error) {
	for _, reg := range r.s.registrations {
		if reg.EventID == eventID && reg.GameID == gameID && reg.Participant.Same(p) {
			c := cloneRegistration(reg)
			return &c, nil
		}
	}
	return nil, ErrRegistrationNotFound
}

func (r memoryRegistrations) Delete(ctx context.Context, id int) error {
	if _, ok := r.s.registrations[id]; !ok {
		return ErrRegistrationNotFound
	}
	delete(r.s.registrations, id)
	return nil
}

func (r memoryRegistrations) ListByGame(ctx context.Context, eventID, gameID int) ([]*models.Registration, error) {
	regs := make([]*models.Registration, 0)
	for _, reg := range r.s.registrations {
		if reg.EventID == eventID && reg.GameID == gameID {
			c := cloneRegistration(reg)
			regs = append(regs, &c)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID < regs[j].ID })
	return regs, nil
}

type memoryMatches struct{ s *memoryState }

func (r memoryMatches) Create(ctx context.Context, match *models.Match) error {
	match.ID = r.s.newID()
	stamp(&match.CreatedAt)
	r.s.matches[match.ID] = cloneMatch(*match)
	return nil
}

func (r memoryMatches) GetByID(ctx context.Context, id int) (*models.Match, error) {
	m, ok := r.s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	c := cloneMatch(m)
	return &c, nil
}

func (r memoryMatches) GetForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r memoryMatches) Update(ctx context.Context, match *models.Match) error {
	stored, ok := r.s.matches[match.ID]
	if !ok {
		return ErrMatchNotFound
	}
	if stored.Finished() {
		return ErrMatchAlreadyFinished
	}
	r.s.matches[match.ID] = cloneMatch(*match)
	return nil
}

func (r memoryMatches) Finish(ctx context.Context, match *models.Match) error {
	stored, ok := r.s.matches[match.ID]
	if !ok {
		return ErrMatchNotFound
	}
	if stored.Finished() {
		return ErrMatchAlreadyFinished
	}
	r.s.matches[match.ID] = cloneMatch(*match)
	return nil
}

func (r memoryMatches) Delete(ctx context.Context, id int) error {
	if _, ok := r.s.matches[id]; !ok {
		return ErrMatchNotFound
	}
	delete(r.s.matches, id)
	return nil
}

func (r memoryMatches) FindUnfinishedBetween(ctx context.Context, eventID, gameID int, a, b models.Participant) (*models.Match, error) {
	for _, m := range r.s.matches {
		if m.EventID != eventID || m.GameID != gameID || m.Finished() {
			continue
		}
		p1, p2 := m.Participant1(), m.Participant2()
		if (p1.Same(a) && p2.Same(b)) || (p1.Same(b) && p2.Same(a)) {
			c := cloneMatch(m)
			return &c, nil
		}
	}
	return nil, ErrMatchNotFound
}

func (r memoryMatches) List(ctx context.Context, filter MatchFilter) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if m.EventID != filter.EventID {
			continue
		}
		if filter.GameID != nil && m.GameID != *filter.GameID {
			continue
		}
		if filter.Participant != nil && m.SideOf(*filter.Participant) == models.SideNone {
			continue
		}
		if len(filter.States) > 0 && !hasState(filter.States, m.State) {
			continue
		}
		c := cloneMatch(m)
		matches = append(matches, &c)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func hasState(states []models.MatchState, state models.MatchState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

type memoryPools struct{ s *memoryState }

func (r memoryPools) Create(ctx context.Context, pool *models.Pool) error {
	pool.ID = r.s.newID()
	stamp(&pool.CreatedAt)
	r.s.pools[pool.ID] = clonePool(*pool)
	return nil
}

func (r memoryPools) GetByID(ctx context.Context, id int) (*models.Pool, error) {
	p, ok := r.s.pools[id]
	if !ok {
		return nil, ErrPoolNotFound
	}
	c := clonePool(p)
	return &c, nil
}

func (r memoryPools) ListByGame(ctx context.Context, eventID, gameID int, openOnly bool) ([]*models.Pool, error) {
	pools := make([]*models.Pool, 0)
	for _, p := range r.s.pools {
		if p.EventID != eventID || p.GameID != gameID || (openOnly && p.Played) {
			continue
		}
		c := clonePool(p)
		pools = append(pools, &c)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools, nil
}

func (r memoryPools) UpdateMemberRank(ctx context.Context, poolID int, p models.Participant, rank int) error {
	pool, ok := r.s.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	if !pool.SetRank(p, rank) {
		return ErrPoolMemberNotFound
	}
	r.s.pools[poolID] = pool
	return nil
}

func (r memoryPools) MarkPlayed(ctx context.Context, id int) error {
	pool, ok := r.s.pools[id]
	if !ok {
		return ErrPoolNotFound
	}
	pool.Played = true
	r.s.pools[id] = pool
	return nil
}

func (r memoryPools) Link(ctx context.Context, parentID, childID int) error {
	parent, ok := r.s.pools[parentID]
	if !ok {
		return ErrPoolNotFound
	}
	child, ok := r.s.pools[childID]
	if !ok {
		return ErrPoolNotFound
	}
	models.LinkPools(&parent, &child)
	r.s.pools[parentID] = parent
	r.s.pools[childID] = child
	return nil
}

type memoryRankings struct{ s *memoryState }

func (r memoryRankings) Get(ctx context.Context, eventID, userID int) (*models.Ranking, error) {
	rk, ok := r.s.rankings[rankingKey{eventID, userID}]
	if !ok {
		return nil, ErrRankingNotFound
	}
	return &rk, nil
}

func (r memoryRankings) AddPoints(ctx context.Context, eventID, userID, delta int) (int, error) {
	key := rankingKey{eventID, userID}
	rk, ok := r.s.rankings[key]
	if !ok {
		rk = models.Ranking{EventID: eventID, UserID: userID}
	}
	rk.Points += delta
	if rk.Points < 0 {
		rk.Points = 0
	}
	rk.UpdatedAt = time.Now().UTC()
	r.s.rankings[key] = rk
	return rk.Points, nil
}

func (r memoryRankings) ListByEvent(ctx context.Context, eventID int) ([]*models.Ranking, error) {
	rankings := make([]*models.Ranking, 0)
	for k, rk := range r.s.rankings {
		if k.eventID == eventID {
			rk := rk
			rankings = append(rankings, &rk)
		}
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].Points != rankings[j].Points {
			return rankings[i].Points > rankings[j].Points
		}
		return rankings[i].UserID < rankings[j].UserID
	})
	return rankings, nil
}

type memorySnapshots struct{ s *memoryState }

func (r memorySnapshots) Create(ctx context.Context, snapshot *models.Snapshot) error {
	snapshot.ID = r.s.newID()
	stamp(&snapshot.TakenAt)
	r.s.snapshots = append(r.s.snapshots, cloneSnapshot(*snapshot))
	return nil
}

func (r memorySnapshots) Latest(ctx context.Context, eventID int) (*models.Snapshot, error) {
	var latest *models.Snapshot
	for i := range r.s.snapshots {
		snap := &r.s.snapshots[i]
		if snap.EventID != eventID {
			continue
		}
		if latest == nil || snap.TakenAt.After(latest.TakenAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, ErrSnapshotNotFound
	}
	c := cloneSnapshot(*latest)
	return &c, nil
}

func (r memorySnapshots) GetByID(ctx context.Context, id int) (*models.Snapshot, error) {
	for _, snap := range r.s.snapshots {
		if snap.ID == id {
			c := cloneSnapshot(snap)
			return &c, nil
		}
	}
	return nil, ErrSnapshotNotFound
}

type memoryAwards struct{ s *memoryState }

func (r memoryAwards) Create(ctx context.Context, award *models.Award) error {
	award.ID = r.s.newID()
	stamp(&award.CreatedAt)
	r.s.awards = append(r.s.awards, *award)
	return nil
}

func (r memoryAwards) ListByEvent(ctx context.Context, eventID int) ([]*models.Award, error) {
	awards := make([]*models.Award, 0)
	for _, a := range r.s.awards {
		if a.EventID == eventID {
			a := a
			awards = append(awards, &a)
		}
	}
	return awards, nil
}

type memoryTimeTrials struct{ s *memoryState }

func (r memoryTimeTrials) CreateMap(ctx context.Context, m *models.TimeTrialMap) error {
	if _, err := r.GetMapByName(ctx, m.EventID, m.Name); err == nil {
		return ErrMapConflict
	}
	m.ID = r.s.newID()
	stamp(&m.CreatedAt)
	r.s.maps[m.ID] = *m
	return nil
}

func (r memoryTimeTrials) GetMap(ctx context.Context, id int) (*models.TimeTrialMap, error) {
	m, ok := r.s.maps[id]
	if !ok {
		return nil, ErrMapNotFound
	}
	return &m, nil
}

func (r memoryTimeTrials) GetMapByName(ctx context.Context, eventID int, name string) (*models.TimeTrialMap, error) {
	for _, m := range r.s.maps {
		if m.EventID == eventID && strings.EqualFold(m.Name, name) {
			m := m
			return &m, nil
		}
	}
	return nil, ErrMapNotFound
}

func (r memoryTimeTrials) ListMaps(ctx context.Context, eventID int) ([]*models.TimeTrialMap, error) {
	maps := make([]*models.TimeTrialMap, 0)
	for _, m := range r.s.maps {
		if m.EventID == eventID {
			m := m
			maps = append(maps, &m)
		}
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].ID < maps[j].ID })
	return maps, nil
}

func (r memoryTimeTrials) MarkMapProcessed(ctx context.Context, id int) error {
	m, ok := r.s.maps[id]
	if !ok {
		return ErrMapNotFound
	}
	if m.Processed {
		return ErrMapAlreadyProcessed
	}
	m.Processed = true
	r.s.maps[id] = m
	return nil
}

func (r memoryTimeTrials) GetRecord(ctx context.Context, mapID, userID int) (*models.TimeTrialRecord, error) {
	for _, rec := range r.s.records {
		if rec.MapID == mapID && rec.UserID == userID {
			rec := rec
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (r memoryTimeTrials) SaveRecord(ctx context.Context, rec *models.TimeTrialRecord) error {
	if existing, err := r.GetRecord(ctx, rec.MapID, rec.UserID); err == nil {
		rec.ID = existing.ID
	} else {
		rec.ID = r.s.newID()
	}
	r.s.records[rec.ID] = *rec
	return nil
}

func (r memoryTimeTrials) ListRecords(ctx context.Context, mapID int) ([]*models.TimeTrialRecord, error) {
	records := make([]*models.TimeTrialRecord, 0)
	for _, rec := range r.s.records {
		if rec.MapID == mapID {
			rec := rec
			records = append(records, &rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Millis != records[j].Millis {
			return records[i].Millis < records[j].Millis
		}
		return records[i].UserID < records[j].UserID
	})
	return records, nil
}

// MemoryDirectory is an in-process identity directory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	users  map[int]models.User
	groups map[int]models.Group
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:  make(map[int]models.User),
		groups: make(map[int]models.Group),
	}
}

func (d *MemoryDirectory) AddUser(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) AddGroup(g models.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g.MemberIDs = cloneInts(g.MemberIDs)
	d.groups[g.ID] = g
}

func (d *MemoryDirectory) GetUser(ctx context.Context, id int) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *MemoryDirectory) FindUserByName(ctx context.Context, name string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Name, name) {
			u := u
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *MemoryDirectory) GetGroup(ctx context.Context, id int) (*models.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[id]
	if !ok {
		return nil, ErrGroupNotFound
	}
	g.MemberIDs = cloneInts(g.MemberIDs)
	return &g, nil
}
