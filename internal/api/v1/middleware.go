package v1

import "net/http"

// requireLidarr wraps a handler and returns 503 if the Lidarr client is not
// configured.
func (s *Server) requireLidarr(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.lidarr == nil {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Lidarr not configured")
			return
		}
		next(w, r)
	}
}

// requireScheduler wraps a handler and returns 503 if the scheduler is not
// configured.
func (s *Server) requireScheduler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Scheduler not configured")
			return
		}
		next(w, r)
	}
}
