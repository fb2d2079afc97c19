package handlers

import (
	"net/http"

	"github.com/Tomkoooo/tdarts/services"
)

type LeagueHandler struct {
	leagueService services.LeagueService
}

func NewLeagueHandler(ls services.LeagueService) *LeagueHandler {
	return &LeagueHandler{leagueService: ls}
}

// CreateHandler handles POST /api/leagues
func (h *LeagueHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var params services.CreateLeagueParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	league, err := h.leagueService.CreateLeague(r.Context(), params)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"league": league}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StandingsHandler handles GET /api/leagues/{leagueID}/standings
func (h *LeagueHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.leagueService.GetStandings(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type attachTournamentRequest struct {
	TournamentID    int  `json:"tournament_id"`
	CalculatePoints bool `json:"calculate_points"`
}

// AttachTournamentHandler handles POST /api/leagues/{leagueID}/tournaments
func (h *LeagueHandler) AttachTournamentHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req attachTournamentRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.leagueService.AttachTournament(r.Context(), leagueID, req.TournamentID, req.CalculatePoints); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "tournament attached"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DetachTournamentHandler handles DELETE /api/leagues/{leagueID}/tournaments/{tournamentID}
func (h *LeagueHandler) DetachTournamentHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.leagueService.DetachTournament(r.Context(), leagueID, tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "tournament detached"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdjustPointsHandler handles POST /api/leagues/{leagueID}/adjustments
func (h *LeagueHandler) AdjustPointsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var params services.AdjustPointsParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.leagueService.AdjustPlayerPoints(r.Context(), leagueID, params); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "points adjusted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type existingPointsRequest struct {
	PlayerID int `json:"player_id"`
	Points   int `json:"points"`
}

// RecordExistingPointsHandler handles POST /api/leagues/{leagueID}/existing-points.
// It imports points a player earned before the league was tracked here.
func (h *LeagueHandler) RecordExistingPointsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req existingPointsRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.leagueService.RecordExistingPoints(r.Context(), leagueID, req.PlayerID, req.Points); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "existing points recorded"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
