package routes

import (
	"github.com/Dosada05/ladder-system/handlers"
	"github.com/Dosada05/ladder-system/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	ladderHandler *handlers.LadderHandler,
	rosterHandler *handlers.RosterHandler,
	challengeHandler *handlers.ChallengeHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	// События лестницы доставляются по websocket, подписка без JWT:
	// сам канал только читает публичные события комнаты.
	router.Get("/ws/ladders/{ladderID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/capsules/{capsuleID}/ladders", ladderHandler.ListByCapsule)
		r.Get("/capsules/{capsuleID}/ladders/{ladderSlug}", ladderHandler.GetBySlug)
		r.Post("/ladders", ladderHandler.Create)

		r.Route("/ladders/{ladderID}", func(r chi.Router) {
			r.Get("/", ladderHandler.Get)
			r.Patch("/", ladderHandler.Update)
			r.Delete("/", ladderHandler.Delete)
			r.Post("/publish", ladderHandler.Publish)
			r.Post("/archive", ladderHandler.Archive)
			r.Post("/logo", ladderHandler.UploadLogo)

			r.Post("/members", rosterHandler.AddMembers)
			r.Put("/members", rosterHandler.ReplaceRoster)
			r.Patch("/members/{memberID}", rosterHandler.UpdateMember)
			r.Delete("/members/{memberID}", rosterHandler.RemoveMember)

			r.Get("/challenges", challengeHandler.List)
			r.Post("/challenges", challengeHandler.Create)
			r.Post("/challenges/{challengeID}/resolve", challengeHandler.Resolve)
			r.Post("/challenges/{challengeID}/proof", challengeHandler.UploadProof)
			r.Post("/challenges/{challengeID}/void", challengeHandler.Void)
		})
	})
}
