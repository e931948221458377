// Command watch follows the matchpulse pull API through the client cache.
//
// Usage:
//
//	matchpulse-watch live
//	matchpulse-watch live --interval 5s
//	matchpulse-watch upcoming --days 3
//	matchpulse-watch league 39
//	matchpulse-watch match 1035037
//	matchpulse-watch all
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/riskibarqy/matchpulse/external/matchapi"
	"github.com/riskibarqy/matchpulse/internal/platform/cache"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

type rootOptions struct {
	baseURL     string
	interval    time.Duration
	dedupWindow time.Duration
	timeout     time.Duration
	debug       bool
}

// watcher is a started cache.Resource of any type.
type watcher interface {
	Key() string
	Interval() time.Duration
	Stop()
}

func main() {
	_ = godotenv.Load(".env")

	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "matchpulse-watch",
		Short:        "Follow matchpulse resources from the command line",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", envOr("MATCHPULSE_URL", "http://localhost:8080"), "matchpulse server URL")
	root.PersistentFlags().DurationVar(&opts.interval, "interval", envDuration("RESOURCE_REFRESH_INTERVAL", 0), "refresh interval for every resource (0 uses the per-resource default)")
	root.PersistentFlags().DurationVar(&opts.dedupWindow, "dedup-window", envDuration("RESOURCE_DEDUP_WINDOW", cache.DefaultDedupWindow), "window in which identical fetches are shared")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log every request")

	root.AddCommand(liveCmd(opts))
	root.AddCommand(upcomingCmd(opts))
	root.AddCommand(leagueCmd(opts))
	root.AddCommand(matchCmd(opts))
	root.AddCommand(allCmd(opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func liveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Watch matches in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, func(s *session) []watcher {
				return []watcher{watchMatches(s, string(cache.KindLive), s.client.Live)}
			})
		},
	}
}

func upcomingCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "Watch scheduled matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > 14 {
				return fmt.Errorf("--days must be between 1 and 14")
			}
			return runWatch(opts, func(s *session) []watcher {
				return []watcher{watchMatches(s, upcomingKey(days), func(ctx context.Context) (matchapi.Resource[matchapi.Match], error) {
					return s.client.Upcoming(ctx, days)
				})}
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 3, "days ahead")
	return cmd
}

func leagueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "league <league-id>",
		Short: "Watch the matches of one league",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leagueID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || leagueID <= 0 {
				return fmt.Errorf("invalid league id %q", args[0])
			}
			return runWatch(opts, func(s *session) []watcher {
				return []watcher{watchMatches(s, fmt.Sprintf("league:%d", leagueID), func(ctx context.Context) (matchapi.Resource[matchapi.Match], error) {
					return s.client.LeagueMatches(ctx, leagueID)
				})}
			})
		},
	}
}

func matchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <match-id>",
		Short: "Watch one match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID := strings.TrimSpace(args[0])
			return runWatch(opts, func(s *session) []watcher {
				res := cache.Watch(s.cache, "match:"+matchID, s.opts.interval, func(ctx context.Context) (matchapi.Match, error) {
					return s.client.Match(ctx, matchID)
				})
				res.OnUpdate(func(snap cache.Snapshot[matchapi.Match]) {
					if snap.Err != nil {
						s.logger.Warn("match refresh failed", "key", res.Key(), "stale", snap.Stale, "error", snap.Err)
						return
					}
					m := snap.Value
					s.logger.Info("match",
						"id", m.ID,
						"score", fmt.Sprintf("%s %d-%d %s", m.HomeTeam.Name, m.HomeScore, m.AwayScore, m.AwayTeam.Name),
						"status", m.Status,
						"minute", m.MinuteElapsed,
						"events", len(m.Events),
					)
				})
				res.Start(s.ctx)
				return []watcher{res}
			})
		},
	}
}

func allCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Watch live, upcoming and league catalog together",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, func(s *session) []watcher {
				leagues := cache.Watch(s.cache, string(cache.KindLeagues), s.opts.interval, s.client.Leagues)
				leagues.OnUpdate(func(snap cache.Snapshot[matchapi.Resource[matchapi.League]]) {
					s.logger.Info("leagues", "count", len(snap.Value.Items), "stale", snap.Stale || snap.Value.Stale, "error", errString(snap.Err))
				})
				leagues.Start(s.ctx)

				return []watcher{
					watchMatches(s, string(cache.KindLive), s.client.Live),
					watchMatches(s, upcomingKey(3), func(ctx context.Context) (matchapi.Resource[matchapi.Match], error) {
						return s.client.Upcoming(ctx, 3)
					}),
					leagues,
				}
			})
		},
	}
}

type session struct {
	ctx    context.Context
	opts   *rootOptions
	client *matchapi.Client
	cache  *cache.ResourceCache
	logger *logging.Logger
}

func runWatch(opts *rootOptions, start func(s *session) []watcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := logging.LevelInfo
	if opts.debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Options{Level: level, Format: logging.FormatConsole})
	defer func() { _ = logger.Sync() }()

	s := &session{
		ctx:    ctx,
		opts:   opts,
		client: matchapi.NewClient(matchapi.ClientConfig{BaseURL: opts.baseURL, Timeout: opts.timeout, Logger: logger}),
		cache: cache.NewResourceCache(cache.ResourceConfig{
			DedupWindow: opts.dedupWindow,
		}),
		logger: logger,
	}

	watchers := start(s)
	for _, w := range watchers {
		logger.Debug("watch resource", "key", w.Key(), "interval", w.Interval().String())
	}
	logger.Info("watching", "base_url", opts.baseURL, "resources", len(watchers))

	sweep := time.NewTicker(max(opts.dedupWindow, time.Second) * 10)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, w := range watchers {
				w.Stop()
			}
			logger.Info("stopped", "cached_keys", s.cache.Len())
			return nil
		case <-sweep.C:
			if removed := s.cache.Sweep(); removed > 0 {
				logger.Debug("cache swept", "removed", removed)
			}
		}
	}
}

func watchMatches(s *session, key string, fetch func(ctx context.Context) (matchapi.Resource[matchapi.Match], error)) watcher {
	res := cache.Watch(s.cache, key, s.opts.interval, fetch)
	res.OnUpdate(func(snap cache.Snapshot[matchapi.Resource[matchapi.Match]]) {
		if !snap.HasValue {
			s.logger.Warn("resource unavailable", "key", key, "error", errString(snap.Err))
			return
		}
		view := snap.Value
		s.logger.Info("resource",
			"key", key,
			"matches", len(view.Items),
			"stale", snap.Stale || view.Stale,
			"server_error", view.Error,
			"error", errString(snap.Err),
		)
		for _, m := range view.Items {
			s.logger.Info("match",
				"key", key,
				"id", m.ID,
				"league", m.League.Name,
				"score", fmt.Sprintf("%s %d-%d %s", m.HomeTeam.Name, m.HomeScore, m.AwayScore, m.AwayTeam.Name),
				"status", m.Status,
				"minute", m.MinuteElapsed,
				"kickoff", m.KickoffTime.Local().Format("Mon 02 Jan 15:04"),
			)
		}
	})
	res.Start(s.ctx)
	return res
}

func upcomingKey(days int) string {
	return string(cache.KindUpcoming) + ":" + strconv.Itoa(days)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(envOr(key, ""))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
