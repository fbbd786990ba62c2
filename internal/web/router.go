// Package web serves the live dashboard as server-rendered HTML. Fresh
// fragments are pushed to open pages over a websocket after every poll.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clusterdash/internal/app"
	"clusterdash/internal/format"
	"clusterdash/internal/refresh"
	"clusterdash/internal/report"
	"clusterdash/internal/view"
	"clusterdash/internal/ws"
	"clusterdash/pkg/sdk"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const dashboardTopic = "dashboard"

// HistorySource loads the history shown on /history.
type HistorySource func(ctx context.Context, hours int) (*sdk.HistoryData, error)

type Server struct {
	HubManager   *ws.HubManager
	Dashboard    *refresh.Poller[*sdk.DashboardData]
	History      HistorySource
	HistoryHours int

	now func() time.Time
}

func NewServer(container *app.Container) *Server {
	cfg := container.Config
	s := &Server{
		HubManager:   container.HubManager,
		History:      container.Client.GetHistoryData,
		HistoryHours: cfg.HistoryHours,
		now:          time.Now,
	}
	s.Dashboard = &refresh.Poller[*sdk.DashboardData]{
		Controller: refresh.NewController("web", cfg.RefreshInterval),
		Fetch:      container.Client.GetDashboardData,
		OnData:     func(*sdk.DashboardData) { s.publish() },
		OnError: func(err error) {
			logrus.Warnf("dashboard refresh failed: %v", err)
			s.publish()
		},
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /fragments/summary", s.handleSummaryFragment)
	mux.HandleFunc("GET /fragments/details", s.handleDetailsFragment)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /ws", s.handleWs)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.corsMiddleware(countRequests(mux))
}

// Start polls the API and serves the dashboard until ctx is cancelled.
func (s *Server) Start(ctx context.Context, listenAddr string) error {
	go s.Dashboard.Run(ctx)

	srv := &http.Server{Addr: listenAddr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Warnf("web server shutdown: %v", err)
		}
		s.HubManager.RemoveHub(dashboardTopic)
	}()

	logrus.Infof("Dashboard listening on %s", listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.state(r.URL.Query().Get("selected"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, st); err != nil {
		logrus.Errorf("rendering dashboard page: %v", err)
	}
}

func (s *Server) handleSummaryFragment(w http.ResponseWriter, r *http.Request) {
	st := s.state(r.URL.Query().Get("selected"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := fragmentsTmpl.ExecuteTemplate(w, "summary", st); err != nil {
		logrus.Errorf("rendering summary fragment: %v", err)
	}
}

func (s *Server) handleDetailsFragment(w http.ResponseWriter, r *http.Request) {
	st := s.state(r.URL.Query().Get("selected"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := fragmentsTmpl.ExecuteTemplate(w, "details", st); err != nil {
		logrus.Errorf("rendering details fragment: %v", err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.Dashboard.Refresh(context.WithoutCancel(r.Context()))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hours := s.HistoryHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		hours = h
	}

	var v view.HistoryView
	data, err := s.History(r.Context(), hours)
	if err != nil {
		logrus.Warnf("history fetch failed: %v", err)
		v = view.FailedHistory(hours)
	} else {
		v = view.BuildHistory(data, hours)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Render(w, v, report.Options{Selector: true}); err != nil {
		logrus.Errorf("rendering history page: %v", err)
	}
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	s.HubManager.GetHub(dashboardTopic).ServeWs(w, r)
}

// update is the websocket message. Fragments are pre-rendered HTML.
type update struct {
	Summary   string `json:"summary"`
	Details   string `json:"details"`
	Cluster   string `json:"cluster"`
	Updated   string `json:"updated"`
	Indicator string `json:"indicator"`
}

func (s *Server) publish() {
	st := s.state("")
	msg, err := st.update()
	if err != nil {
		logrus.Errorf("rendering dashboard update: %v", err)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.Errorf("encoding dashboard update: %v", err)
		return
	}

	kind := "data"
	if st.Err != nil {
		kind = "error"
	}
	pushesTotal.WithLabelValues(kind).Inc()
	s.HubManager.GetHub(dashboardTopic).Broadcast(payload)
}

// pageState is everything the dashboard templates need for one render.
type pageState struct {
	Loading   bool
	Err       error
	Cards     view.SummaryCards
	Panels    []view.ServerPanel
	Cluster   string
	Updated   string
	Indicator refresh.Indicator
	Interval  int
}

func (s *Server) state(selected string) pageState {
	ctrl := s.Dashboard.Controller
	st := pageState{
		Err:       ctrl.Err(),
		Indicator: ctrl.Indicator(),
		Interval:  int(ctrl.Interval() / time.Second),
	}

	data, ok := s.Dashboard.Last()
	if !ok {
		st.Loading = st.Err == nil
		return st
	}

	st.Cards = view.BuildSummaryCards(data.Servers)
	st.Panels = view.BuildServerPanels(data.Servers)
	var sel view.Selection
	if selected != "" {
		sel.Toggle(selected)
	}
	sel.Apply(st.Cards.Cards, st.Panels)

	st.Cluster = view.BuildClusterSummary(data.Servers).String()
	st.Updated = format.Clock(ctrl.LastSuccess())
	return st
}

func (st pageState) update() (update, error) {
	var summary, details strings.Builder
	if err := fragmentsTmpl.ExecuteTemplate(&summary, "summary", st); err != nil {
		return update{}, err
	}
	if err := fragmentsTmpl.ExecuteTemplate(&details, "details", st); err != nil {
		return update{}, err
	}
	return update{
		Summary:   summary.String(),
		Details:   details.String(),
		Cluster:   format.EscapeHTML(st.Cluster),
		Updated:   st.Updated,
		Indicator: string(st.Indicator),
	}, nil
}
