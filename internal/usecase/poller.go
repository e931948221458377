package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

const (
	ClassLive     = "live"
	ClassUpcoming = "upcoming"
)

// ResourceClass is one independently polled slice of the feed.
type ResourceClass struct {
	Name     string
	Interval time.Duration
	Query    func(now time.Time) FeedQuery
}

func LiveClass(interval time.Duration) ResourceClass {
	return ResourceClass{
		Name:     ClassLive,
		Interval: interval,
		Query: func(time.Time) FeedQuery {
			return FeedQuery{Live: true}
		},
	}
}

func UpcomingClass(interval time.Duration, days int) ResourceClass {
	if days < 1 {
		days = 1
	}
	return ResourceClass{
		Name:     ClassUpcoming,
		Interval: interval,
		Query: func(now time.Time) FeedQuery {
			from := now.UTC().Truncate(24 * time.Hour)
			return FeedQuery{
				Statuses: []string{"NS", "TBD"},
				From:     from,
				To:       from.AddDate(0, 0, days),
			}
		},
	}
}

func LeagueClass(leagueID int64, season int, interval time.Duration) ResourceClass {
	return ResourceClass{
		Name:     LeagueClassName(leagueID),
		Interval: interval,
		Query: func(time.Time) FeedQuery {
			return FeedQuery{LeagueID: leagueID, Season: season}
		},
	}
}

func LeagueClassName(leagueID int64) string {
	return fmt.Sprintf("league:%d", leagueID)
}

// Batch is the outcome of one poll tick.
type Batch struct {
	Class     string
	Fixtures  []RawFixture
	Raw       []byte
	Endpoint  string
	Err       error
	FetchedAt time.Time
}

type BatchHandler interface {
	HandleBatch(ctx context.Context, batch Batch)
}

type BatchHandlerFunc func(ctx context.Context, batch Batch)

func (f BatchHandlerFunc) HandleBatch(ctx context.Context, batch Batch) {
	f(ctx, batch)
}

// ClassStatus reports poll health for one class.
type ClassStatus struct {
	Name          string    `json:"name"`
	Interval      string    `json:"interval"`
	Disabled      bool      `json:"disabled"`
	Ticks         int64     `json:"ticks"`
	Failures      int64     `json:"failures"`
	LastAttemptAt time.Time `json:"lastAttemptAt,omitempty"`
	LastSuccessAt time.Time `json:"lastSuccessAt,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
	LastErrorKind string    `json:"lastErrorKind,omitempty"`
	LastFixtures  int       `json:"lastFixtures"`
}

// Poller owns one timer loop per resource class. Ticks of a class never
// overlap; classes run independently.
type Poller struct {
	feed    FixtureFeed
	handler BatchHandler
	classes []ResourceClass
	logger  *logging.Logger
	now     func() time.Time

	mu      sync.Mutex
	status  map[string]*ClassStatus
	cancel  context.CancelFunc
	wg      *conc.WaitGroup
	started bool
	stopped bool
}

func NewPoller(feed FixtureFeed, handler BatchHandler, classes []ResourceClass, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Default()
	}

	status := make(map[string]*ClassStatus, len(classes))
	valid := make([]ResourceClass, 0, len(classes))
	for _, class := range classes {
		if class.Name == "" || class.Interval <= 0 || class.Query == nil {
			logger.Warn("skip invalid poll class", "class", class.Name, "interval", class.Interval.String())
			continue
		}
		if _, dup := status[class.Name]; dup {
			logger.Warn("skip duplicate poll class", "class", class.Name)
			continue
		}
		valid = append(valid, class)
		status[class.Name] = &ClassStatus{Name: class.Name, Interval: class.Interval.String()}
	}

	return &Poller{
		feed:    feed,
		handler: handler,
		classes: valid,
		logger:  logger,
		now:     time.Now,
		status:  status,
	}
}

// Start launches every class loop. Calling it again is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg = conc.NewWaitGroup()
	for _, class := range p.classes {
		class := class
		p.wg.Go(func() {
			p.run(runCtx, class)
		})
	}

	p.logger.Info("poller started", "classes", len(p.classes))
}

// Stop halts all loops and waits for in-flight ticks. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	wg := p.wg
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wg != nil {
		wg.Wait()
	}
	p.logger.Info("poller stopped")
}

func (p *Poller) Status() []ClassStatus {
	p.mu.Lock()
	out := make([]ClassStatus, 0, len(p.status))
	for _, item := range p.status {
		out = append(out, *item)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *Poller) run(ctx context.Context, class ResourceClass) {
	if !p.Tick(ctx, class) {
		return
	}

	ticker := time.NewTicker(class.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.Tick(ctx, class) {
				return
			}
		}
	}
}

// Tick performs one fetch for class and hands the batch over. It returns
// false when the class must stop polling.
func (p *Poller) Tick(ctx context.Context, class ResourceClass) bool {
	ctx, span := rootSpan(ctx, "usecase.Poller.Tick", attribute.String("feed.class", class.Name))
	defer span.End()

	started := p.now().UTC()
	result, err := p.feed.FetchFixtures(ctx, class.Query(started))
	if err != nil && ctx.Err() != nil {
		return false
	}

	batch := Batch{
		Class:     class.Name,
		Fixtures:  result.Fixtures,
		Raw:       result.Raw,
		Endpoint:  result.Endpoint,
		Err:       err,
		FetchedAt: p.now().UTC(),
	}
	failSpan(span, err)
	disable := err != nil && crerr.Is(err, ErrConfiguration)
	p.record(class.Name, batch, started, disable)

	switch {
	case disable:
		p.logger.ErrorContext(ctx, "poll class disabled by configuration error",
			"class", class.Name,
			"error", err,
		)
	case err != nil:
		p.logger.WarnContext(ctx, "poll tick failed",
			"class", class.Name,
			"error_kind", ErrorKind(err),
			"error", err,
		)
	default:
		p.logger.DebugContext(ctx, "poll tick completed",
			"class", class.Name,
			"fixtures", len(batch.Fixtures),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}

	if p.handler != nil {
		p.handler.HandleBatch(ctx, batch)
	}
	return !disable
}

func (p *Poller) record(name string, batch Batch, attemptedAt time.Time, disable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.status[name]
	if !ok {
		item = &ClassStatus{Name: name}
		p.status[name] = item
	}
	item.Ticks++
	item.LastAttemptAt = attemptedAt
	if batch.Err != nil {
		item.Failures++
		item.LastError = batch.Err.Error()
		item.LastErrorKind = ErrorKind(batch.Err)
		item.Disabled = item.Disabled || disable
		return
	}
	item.LastSuccessAt = batch.FetchedAt
	item.LastError = ""
	item.LastErrorKind = ""
	item.LastFixtures = len(batch.Fixtures)
}
