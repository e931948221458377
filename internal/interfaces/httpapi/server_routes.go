package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /v1/hub/stats", handler.HubStats)
	mux.HandleFunc("GET /v1/feed/status", handler.FeedStatus)
}

func registerResourceRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/resources/live", handler.ListLive)
	mux.HandleFunc("GET /v1/resources/upcoming", handler.ListUpcoming)
	mux.HandleFunc("GET /v1/resources/league/{leagueID}/matches", handler.ListLeagueMatches)
	mux.HandleFunc("GET /v1/resources/leagues", handler.ListLeagues)
	mux.HandleFunc("GET /v1/matches/{matchID}", handler.GetMatch)
}

func registerRealtimeRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/subscribe", handler.Subscribe)
}
