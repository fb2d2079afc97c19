package routes

import (
	"github.com/Tomkoooo/tdarts/handlers"
	"github.com/Tomkoooo/tdarts/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes mounts the full HTTP surface. Reads are public, writes sit
// behind organizer authentication.
func SetupRoutes(
	router *chi.Mux,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	leagueHandler *handlers.LeagueHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/api", func(r chi.Router) {
		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/{code}", tournamentHandler.GetByCodeHandler)
			r.Get("/{code}/groups/{groupID}/standings", tournamentHandler.GroupStandingsHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Post("/", tournamentHandler.CreateHandler)
				r.Post("/{code}/knockout", tournamentHandler.GenerateKnockoutHandler)
				r.Post("/{code}/knockout/pairs", tournamentHandler.AddKnockoutPairHandler)
				r.Put("/{code}/knockout/pairs/{matchID}/players/{playerID}", tournamentHandler.AssignPlayerHandler)
				r.Post("/{code}/reopen", tournamentHandler.ReopenHandler)
			})
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/{matchID}", matchHandler.GetHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Post("/{matchID}/start", matchHandler.StartHandler)
				r.Post("/{matchID}/legs", matchHandler.AddLegHandler)
				r.Post("/{matchID}/finish", matchHandler.FinishHandler)
			})
		})

		r.Route("/leagues", func(r chi.Router) {
			r.Get("/{leagueID}/standings", leagueHandler.StandingsHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Post("/", leagueHandler.CreateHandler)
				r.Post("/{leagueID}/tournaments", leagueHandler.AttachTournamentHandler)
				r.Delete("/{leagueID}/tournaments/{tournamentID}", leagueHandler.DetachTournamentHandler)
				r.Post("/{leagueID}/adjustments", leagueHandler.AdjustPointsHandler)
				r.Post("/{leagueID}/existing-points", leagueHandler.RecordExistingPointsHandler)
			})
		})
	})

	router.Get("/ws/tournaments/{code}", webSocketHandler.ServeWs)
}
