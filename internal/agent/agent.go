package agent

import (
	"context"
	"errors"
	"time"

	"clusterdash/internal/config"
	"clusterdash/pkg/sdk"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	maxConsecutiveFailures = 20
	postTimeout            = 5 * time.Second
)

var ErrTooManyFailures = errors.New("over 20 failed sends in a row")

var postsTotal *prometheus.CounterVec

func init() {
	postsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterdash",
			Subsystem: "agent",
			Name:      "posts_total",
			Help:      "Reports posted to the server by result",
		},
		[]string{"result"},
	)
	prometheus.MustRegister(postsTotal)
}

// Sender delivers a report. *sdk.Client satisfies it.
type Sender interface {
	PostReport(ctx context.Context, report *sdk.MachineReport) (*sdk.PostResult, error)
}

type Agent struct {
	collector Collector
	sender    Sender
	cfg       config.AgentConfig
	now       func() time.Time

	lastPost time.Time
	failures int
}

func New(collector Collector, sender Sender, cfg config.AgentConfig) *Agent {
	return &Agent{
		collector: collector,
		sender:    sender,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run collects every poll interval until ctx ends. It returns
// ErrTooManyFailures once more than 20 sends in a row have failed.
func (a *Agent) Run(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"poll": a.cfg.PollInterval,
		"post": a.cfg.PostInterval,
	}).Info("Starting up!")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := a.Step(ctx); err != nil {
			return err
		}
		timer.Reset(a.cfg.PollInterval)
	}
}

// Step takes one reading and posts it if the post interval has passed since
// the last attempt. Collection errors are logged and skipped.
func (a *Agent) Step(ctx context.Context) error {
	report, err := a.collector.Collect(ctx)
	if err != nil {
		logrus.WithError(err).Warn("collecting machine data")
		return nil
	}

	now := a.now()
	if !a.lastPost.IsZero() && now.Sub(a.lastPost) <= a.cfg.PostInterval {
		return nil
	}
	a.lastPost = now

	report.AuthCode = a.cfg.AuthCode
	report.Timestamp = unixSeconds(now)
	logrus.WithField("gpus", len(report.GPU)).Debug("sending data")

	postCtx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	res, err := a.sender.PostReport(postCtx, report)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		a.failures++
		postsTotal.WithLabelValues("error").Inc()
		logrus.WithError(err).WithField("consecutive", a.failures).Info("Request failed.")
		if a.failures > maxConsecutiveFailures {
			return ErrTooManyFailures
		}
		return nil
	}

	a.failures = 0
	postsTotal.WithLabelValues("success").Inc()
	logrus.Infof("The request was a success?: %t, %s", res.Success, res.Msg)
	return nil
}
