package handlers

import (
	"net/http"

	"github.com/Tomkoooo/tdarts/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	knockoutService   services.KnockoutService
}

func NewTournamentHandler(ts services.TournamentService, ks services.KnockoutService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		knockoutService:   ks,
	}
}

// CreateHandler handles POST /api/tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var params services.CreateTournamentParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), params)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByCodeHandler handles GET /api/tournaments/{code}
func (h *TournamentHandler) GetByCodeHandler(w http.ResponseWriter, r *http.Request) {
	code, err := getCodeFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournamentByCode(r.Context(), code)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GroupStandingsHandler handles GET /api/tournaments/{code}/groups/{groupID}/standings
func (h *TournamentHandler) GroupStandingsHandler(w http.ResponseWriter, r *http.Request) {
	code, err := getCodeFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.tournamentService.GetGroupStandings(r.Context(), code, groupID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateKnockoutHandler handles POST /api/tournaments/{code}/knockout
func (h *TournamentHandler) GenerateKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	code, err := getCodeFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var params services.GenerateKnockoutParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.knockoutService.GenerateKnockout(r.Context(), code, params)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AddKnockoutPairHandler handles POST /api/tournaments/{code}/knockout/pairs.
// The mode depends on how many player IDs the body carries: both seats a full
// pairing, one seats a partial pairing, none reserves an empty slot.
func (h *TournamentHandler) AddKnockoutPairHandler(w http.ResponseWriter, r *http.Request) {
	code, err := getCodeFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var params services.KnockoutPairParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var match interface{}
	switch {
	case params.Player1ID != nil && params.Player2ID != nil:
		match, err = h.knockoutService.AddManualMatch(r.Context(), code, params)
	case params.Player1ID != nil || params.Player2ID != nil:
		match, err = h.knockoutService.AddPartialMatch(r.Context(), code, params)
	default:
		match, err = h.knockoutService.AddEmptyKnockoutPair(r.Context(), code, params)
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AssignPlayerHandler handles PUT /api/tournaments/{code}/knockout/pairs/{matchID}/players/{playerID}
func (h *TournamentHandler) AssignPlayerHandler(w http.ResponseWriter, r *http.Request) {
	code, err := getCodeFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.knockoutService.AssignPlayerToPair(r.Context(), code, matchID, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReopenHandler handles POST /api/tournaments/{code}/reopen
func (h *TournamentHandler) ReopenHandler(w http.ResponseWriter, r *http.Request) {
	code, err := getCodeFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.ReopenTournament(r.Context(), code)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
