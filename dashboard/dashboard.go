// Package dashboard aggregates the three collections into the summary
// figures shown on the landing view. The three fetches run concurrently;
// any failure fails the snapshot.
package dashboard

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/apierror"
	"github.com/jrsteele09/go-crm-client/customers"
	"github.com/jrsteele09/go-crm-client/leads"
	"github.com/jrsteele09/go-crm-client/tasks"
)

// Stats is one point-in-time summary across all three collections.
type Stats struct {
	TotalCustomers    int
	ActiveCustomers   int
	InactiveCustomers int

	TotalLeads int
	OpenLeads  int
	WonLeads   int
	LostLeads  int
	// OpenValue is the summed value of open leads; unparseable values are
	// skipped.
	OpenValue float64

	TotalTasks     int
	CompletedTasks int
	PendingTasks   int
}

// CompletionPercent is the share of tasks completed, 0 for no tasks.
func (s Stats) CompletionPercent() int {
	if s.TotalTasks == 0 {
		return 0
	}
	return int(float64(s.CompletedTasks)/float64(s.TotalTasks)*100 + 0.5)
}

type Service struct {
	api *apiclient.Client
	log zerolog.Logger
}

type Option func(*Service)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log.With().Str("component", "dashboard").Logger()
	}
}

func New(api *apiclient.Client, options ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.New("[dashboard.New] api client is required")
	}
	s := &Service{api: api, log: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Snapshot fetches all three collections concurrently and computes the
// summary. An Unauthorized failure propagates with its classification so
// the caller can tear down the session like any list view would.
func (s *Service) Snapshot(ctx context.Context) (*Stats, error) {
	var (
		customerPage apiclient.Page[customers.Customer]
		leadPage     apiclient.Page[leads.Lead]
		taskPage     apiclient.Page[tasks.Task]
		fetchErrs    [3]error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		fetchErrs[0] = s.api.Get(ctx, "/customers/", nil, &customerPage)
	}()
	go func() {
		defer wg.Done()
		fetchErrs[1] = s.api.Get(ctx, "/leads/", nil, &leadPage)
	}()
	go func() {
		defer wg.Done()
		fetchErrs[2] = s.api.Get(ctx, "/tasks/", nil, &taskPage)
	}()
	wg.Wait()

	for _, err := range fetchErrs {
		if err != nil {
			return nil, errors.Wrap(apierror.From(err), "[Service.Snapshot] fetch")
		}
	}

	stats := &Stats{
		TotalCustomers: customerPage.Count,
		TotalLeads:     leadPage.Count,
		TotalTasks:     taskPage.Count,
	}

	for _, c := range customerPage.Results {
		if c.Status == customers.StatusActive {
			stats.ActiveCustomers++
		} else {
			stats.InactiveCustomers++
		}
	}

	for _, l := range leadPage.Results {
		switch l.Status {
		case leads.StatusOpen:
			stats.OpenLeads++
			if v, err := l.Value.Float64(); err == nil {
				stats.OpenValue += v
			}
		case leads.StatusWon:
			stats.WonLeads++
		case leads.StatusLost:
			stats.LostLeads++
		}
	}

	for _, t := range taskPage.Results {
		if t.Completed {
			stats.CompletedTasks++
		} else {
			stats.PendingTasks++
		}
	}

	s.log.Debug().
		Int("customers", stats.TotalCustomers).
		Int("leads", stats.TotalLeads).
		Int("tasks", stats.TotalTasks).
		Msg("dashboard snapshot")
	return stats, nil
}
