package run

import (
	"fmt"
	"net/http"
	"time"

	"voxnote/internal/session"
)

// metricsHandler renders controller counters in Prometheus text format.
func metricsHandler(stats func() session.StatsSnapshot, startedAt time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		st := stats()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "voxnote_sessions_started_total %d\n", st.Started)
		fmt.Fprintf(w, "voxnote_sessions_uploaded_total %d\n", st.Uploaded)
		fmt.Fprintf(w, "voxnote_sessions_answered_total %d\n", st.Answered)
		fmt.Fprintf(w, "voxnote_sessions_failed_total %d\n", st.Failed)
		fmt.Fprintf(w, "voxnote_device_errors_total %d\n", st.DeviceErrors)
		fmt.Fprintf(w, "voxnote_speech_requests_total %d\n", st.Speech)
		fmt.Fprintf(w, "voxnote_speech_failures_total %d\n", st.SpeechFailed)
		fmt.Fprintf(w, "voxnote_uptime_seconds %.0f\n", time.Since(startedAt).Seconds())
	})
	return mux
}

func (s *Server) metricsServe(ctxDone <-chan struct{}, addr string) {
	server := &http.Server{
		Addr:    addr,
		Handler: metricsHandler(s.ctrl.Stats, s.startedAt),
	}
	go func() {
		<-ctxDone
		_ = server.Close()
	}()
	s.logger.Infof("metrics listening on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Warnf("metrics server: %v", err)
	}
}
