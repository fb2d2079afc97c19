package services

import (
	"context"
	"sort"
	"sync"

	"github.com/Tomkoooo/tdarts/models"
	"github.com/Tomkoooo/tdarts/repositories"
)

// fakeStore is a mutex-guarded in-memory stand-in for Postgres. The repo
// fakes below share one store so cross-repository flows behave like one
// database. Targeted writes (SeatPlayerInSlot, ApplyDelta, the CAS updates)
// mirror the SQL semantics so concurrency tests exercise the same contract.
type fakeStore struct {
	mu sync.Mutex

	nextID int

	tournaments map[int]*models.Tournament
	codes       map[string]int
	tPlayers    map[int]*models.TournamentPlayer
	groups      map[int]*models.Group
	players     map[int]*models.Player
	matches     map[int]*models.Match
	legs        map[int][]models.Leg

	leagues     map[int]*models.League
	attachments map[[2]int]*models.LeagueAttachment
	pointsLogs  []*models.LeagueTournamentPoints
	adjustments []*models.LeagueAdjustment
	standings   map[[2]int]*models.LeagueStanding
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tournaments: make(map[int]*models.Tournament),
		codes:       make(map[string]int),
		tPlayers:    make(map[int]*models.TournamentPlayer),
		groups:      make(map[int]*models.Group),
		players:     make(map[int]*models.Player),
		matches:     make(map[int]*models.Match),
		legs:        make(map[int][]models.Leg),
		leagues:     make(map[int]*models.League),
		attachments: make(map[[2]int]*models.LeagueAttachment),
		standings:   make(map[[2]int]*models.LeagueStanding),
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	return &c
}

type fakeTournamentRepo struct{ store *fakeStore }

func (r *fakeTournamentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, taken := r.store.codes[t.Code]; taken {
		return repositories.ErrTournamentCodeConflict
	}
	t.ID = r.store.id()
	c := *t
	r.store.tournaments[t.ID] = &c
	r.store.codes[t.Code] = t.ID
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (r *fakeTournamentRepo) GetByCode(ctx context.Context, code string) (*models.Tournament, error) {
	r.store.mu.Lock()
	id, ok := r.store.codes[code]
	r.store.mu.Unlock()
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *fakeTournamentRepo) UpdateStatusIfCurrent(ctx context.Context, exec repositories.SQLExecutor, id int, expected, next models.TournamentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok || t.Status != expected {
		return repositories.ErrTournamentStatusStale
	}
	t.Status = next
	return nil
}

func (r *fakeTournamentRepo) AddPlayer(ctx context.Context, exec repositories.SQLExecutor, p *models.TournamentPlayer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p.ID = r.store.id()
	c := *p
	r.store.tPlayers[p.ID] = &c
	return nil
}

func (r *fakeTournamentRepo) ListPlayers(ctx context.Context, tournamentID int) ([]*models.TournamentPlayer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.TournamentPlayer
	for _, p := range r.store.tPlayers {
		if p.TournamentID == tournamentID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out, nil
}

func (r *fakeTournamentRepo) AssignPlayerToGroup(ctx context.Context, exec repositories.SQLExecutor, tournamentPlayerID, groupID, groupSeed int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.tPlayers[tournamentPlayerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	gid, seed := groupID, groupSeed
	p.GroupID = &gid
	p.GroupSeed = &seed
	return nil
}

func (r *fakeTournamentRepo) CreateGroup(ctx context.Context, exec repositories.SQLExecutor, g *models.Group) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	g.ID = r.store.id()
	c := *g
	r.store.groups[g.ID] = &c
	return nil
}

func (r *fakeTournamentRepo) ListGroups(ctx context.Context, tournamentID int) ([]*models.Group, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Group
	for _, g := range r.store.groups {
		if g.TournamentID == tournamentID {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

type fakeMatchRepo struct{ store *fakeStore }

func (r *fakeMatchRepo) findByCoordinates(tournamentID, round, position int) *models.Match {
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.Type == models.MatchTypeKnockout &&
			m.Round != nil && *m.Round == round &&
			m.BracketPosition != nil && *m.BracketPosition == position {
			return m
		}
	}
	return nil
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if m.Type == models.MatchTypeKnockout && m.Round != nil && m.BracketPosition != nil {
		if r.findByCoordinates(m.TournamentID, *m.Round, *m.BracketPosition) != nil {
			return repositories.ErrBracketSlotConflict
		}
	}
	m.ID = r.store.id()
	r.store.matches[m.ID] = copyMatch(m)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) GetByCoordinates(ctx context.Context, tournamentID, round, bracketPosition int) (*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m := r.findByCoordinates(tournamentID, round, bracketPosition)
	if m == nil {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, matchType *models.MatchType) ([]*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Match
	for _, m := range r.store.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if matchType != nil && m.Type != *matchType {
			continue
		}
		out = append(out, copyMatch(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) ListByGroup(ctx context.Context, groupID int) ([]*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Match
	for _, m := range r.store.matches {
		if m.GroupID != nil && *m.GroupID == groupID {
			out = append(out, copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, id int, stats models.MatchStatistics, p1LegsWon, p2LegsWon, winnerID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = models.MatchStatusFinished
	m.WinnerID = &winnerID
	m.Player1LegsWon = p1LegsWon
	m.Player2LegsWon = p2LegsWon
	m.Player1Average = stats.Player1.Average
	m.Player2Average = stats.Player2.Average
	m.Player1Darts = stats.Player1.TotalDarts
	m.Player2Darts = stats.Player2.TotalDarts
	return nil
}

func (r *fakeMatchRepo) UpdateStatusIfCurrent(ctx context.Context, exec repositories.SQLExecutor, id int, expected, next models.MatchStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok || m.Status != expected {
		return repositories.ErrMatchStatusStale
	}
	m.Status = next
	return nil
}

func (r *fakeMatchRepo) UpdatePlayers(ctx context.Context, exec repositories.SQLExecutor, id int, player1ID, player2ID *int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Player1ID = player1ID
	m.Player2ID = player2ID
	return nil
}

func (r *fakeMatchRepo) SeatPlayerInSlot(ctx context.Context, exec repositories.SQLExecutor, tournamentID, round, bracketPosition, slot, playerID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m := r.findByCoordinates(tournamentID, round, bracketPosition)
	if m == nil {
		return repositories.ErrMatchNotFound
	}
	id := playerID
	if slot == 1 {
		m.Player1ID = &id
	} else {
		m.Player2ID = &id
	}
	return nil
}

func (r *fakeMatchRepo) ActivateIfSeated(ctx context.Context, exec repositories.SQLExecutor, tournamentID, round, bracketPosition int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m := r.findByCoordinates(tournamentID, round, bracketPosition)
	if m == nil {
		return nil
	}
	if m.Status == models.MatchStatusPlaceholder && m.Player1ID != nil && m.Player2ID != nil {
		m.Status = models.MatchStatusPending
	}
	return nil
}

func (r *fakeMatchRepo) CountKnockoutByStatus(ctx context.Context, tournamentID int, status models.MatchStatus) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.Type == models.MatchTypeKnockout && m.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeMatchRepo) NextBracketPosition(ctx context.Context, tournamentID, round int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	next := 0
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.Type == models.MatchTypeKnockout &&
			m.Round != nil && *m.Round == round && m.BracketPosition != nil && *m.BracketPosition >= next {
			next = *m.BracketPosition + 1
		}
	}
	return next, nil
}

func (r *fakeMatchRepo) DeleteKnockout(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.Type == models.MatchTypeKnockout {
			delete(r.store.matches, id)
		}
	}
	return nil
}

type fakeLegRepo struct{ store *fakeStore }

func (r *fakeLegRepo) Create(ctx context.Context, exec repositories.SQLExecutor, leg *models.Leg) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.legs[leg.MatchID] {
		if existing.LegNumber == leg.LegNumber {
			return repositories.ErrDuplicateLegNumber
		}
	}
	leg.ID = r.store.id()
	r.store.legs[leg.MatchID] = append(r.store.legs[leg.MatchID], *leg)
	return nil
}

func (r *fakeLegRepo) ListByMatch(ctx context.Context, matchID int) ([]models.Leg, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Leg, len(r.store.legs[matchID]))
	copy(out, r.store.legs[matchID])
	sort.Slice(out, func(i, j int) bool { return out[i].LegNumber < out[j].LegNumber })
	return out, nil
}

type fakePlayerRepo struct{ store *fakeStore }

func (r *fakePlayerRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Player) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p.ID = r.store.id()
	c := *p
	r.store.players[p.ID] = &c
	return nil
}

func (r *fakePlayerRepo) GetByID(ctx context.Context, id int) (*models.Player, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakePlayerRepo) GetOrCreateByName(ctx context.Context, exec repositories.SQLExecutor, name string) (*models.Player, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.players {
		if p.Name == name {
			c := *p
			return &c, nil
		}
	}
	p := &models.Player{ID: r.store.id(), Name: name}
	r.store.players[p.ID] = p
	c := *p
	return &c, nil
}

type fakeLeagueRepo struct{ store *fakeStore }

func (r *fakeLeagueRepo) Create(ctx context.Context, exec repositories.SQLExecutor, l *models.League) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l.ID = r.store.id()
	c := *l
	r.store.leagues[l.ID] = &c
	return nil
}

func (r *fakeLeagueRepo) GetByID(ctx context.Context, id int) (*models.League, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l, ok := r.store.leagues[id]
	if !ok {
		return nil, repositories.ErrLeagueNotFound
	}
	c := *l
	return &c, nil
}

func (r *fakeLeagueRepo) ListByClub(ctx context.Context, clubID int) ([]*models.League, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.League
	for _, l := range r.store.leagues {
		if l.ClubID == clubID {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeLeagueRepo) CreateAttachment(ctx context.Context, exec repositories.SQLExecutor, a *models.LeagueAttachment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := [2]int{a.LeagueID, a.TournamentID}
	if _, ok := r.store.attachments[key]; ok {
		return repositories.ErrAlreadyAttached
	}
	c := *a
	r.store.attachments[key] = &c
	return nil
}

func (r *fakeLeagueRepo) GetAttachment(ctx context.Context, leagueID, tournamentID int) (*models.LeagueAttachment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.attachments[[2]int{leagueID, tournamentID}]
	if !ok {
		return nil, repositories.ErrAttachmentNotFound
	}
	c := *a
	return &c, nil
}

func (r *fakeLeagueRepo) ListAttachmentsByTournament(ctx context.Context, tournamentID int) ([]*models.LeagueAttachment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.LeagueAttachment
	for _, a := range r.store.attachments {
		if a.TournamentID == tournamentID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeagueID < out[j].LeagueID })
	return out, nil
}

func (r *fakeLeagueRepo) DeleteAttachment(ctx context.Context, exec repositories.SQLExecutor, leagueID, tournamentID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.attachments, [2]int{leagueID, tournamentID})
	return nil
}

func (r *fakeLeagueRepo) CreatePointsLog(ctx context.Context, exec repositories.SQLExecutor, row *models.LeagueTournamentPoints) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *row
	r.store.pointsLogs = append(r.store.pointsLogs, &c)
	return nil
}

func (r *fakeLeagueRepo) ListPointsLog(ctx context.Context, leagueID, tournamentID int) ([]*models.LeagueTournamentPoints, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.LeagueTournamentPoints
	for _, row := range r.store.pointsLogs {
		if row.LeagueID == leagueID && row.TournamentID == tournamentID {
			c := *row
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeLeagueRepo) DeletePointsLog(ctx context.Context, exec repositories.SQLExecutor, leagueID, tournamentID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.pointsLogs[:0]
	for _, row := range r.store.pointsLogs {
		if row.LeagueID != leagueID || row.TournamentID != tournamentID {
			kept = append(kept, row)
		}
	}
	r.store.pointsLogs = kept
	return nil
}

func (r *fakeLeagueRepo) CreateAdjustment(ctx context.Context, exec repositories.SQLExecutor, a *models.LeagueAdjustment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a.ID = r.store.id()
	c := *a
	r.store.adjustments = append(r.store.adjustments, &c)
	return nil
}

type fakeStandingRepo struct{ store *fakeStore }

func (r *fakeStandingRepo) ApplyDelta(ctx context.Context, exec repositories.SQLExecutor, leagueID, playerID int, delta repositories.StandingDelta) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := [2]int{leagueID, playerID}
	row, ok := r.store.standings[key]
	if !ok {
		row = &models.LeagueStanding{ID: r.store.id(), LeagueID: leagueID, PlayerID: playerID}
		r.store.standings[key] = row
	}
	row.TotalPoints += delta.TotalPoints
	row.GroupStagePoints += delta.GroupStagePoints
	row.KnockoutStagePoints += delta.KnockoutStagePoints
	row.ManualPoints += delta.ManualPoints
	row.ExistingPoints += delta.ExistingPoints
	row.TournamentsPlayed += delta.TournamentsPlayed
	row.Championships += delta.Championships
	row.RunnerUps += delta.RunnerUps
	row.SemiFinals += delta.SemiFinals
	return nil
}

func (r *fakeStandingRepo) Get(ctx context.Context, leagueID, playerID int) (*models.LeagueStanding, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.standings[[2]int{leagueID, playerID}]
	if !ok {
		return nil, repositories.ErrLeagueStandingNotFound
	}
	c := *row
	return &c, nil
}

func (r *fakeStandingRepo) ListByLeague(ctx context.Context, leagueID int) ([]*models.LeagueStanding, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.LeagueStanding
	for _, row := range r.store.standings {
		if row.LeagueID == leagueID {
			c := *row
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	return out, nil
}
