package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	api.POST("/sessions", s.recordSession)
	api.GET("/leaderboard", s.getLeaderboard)
}
