package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/lan-tournament/brackets"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

type DashboardService interface {
	// Overview collects everything the event page shows in one call.
	Overview(ctx context.Context, eventID int) (*models.EventOverview, error)
}

type dashboardService struct {
	rankings RankingService
	games    GameService
	pools    PoolService
	matches  MatchService
}

func NewDashboardService(rankings RankingService, games GameService, pools PoolService, matches MatchService) DashboardService {
	return &dashboardService{
		rankings: rankings,
		games:    games,
		pools:    pools,
		matches:  matches,
	}
}

func (s *dashboardService) Overview(ctx context.Context, eventID int) (*models.EventOverview, error) {
	overview := &models.EventOverview{EventID: eventID}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		board, err := s.rankings.Leaderboard(ctx, eventID)
		overview.Leaderboard = board
		return err
	})

	g.Go(func() error {
		games, err := s.games.ListGames(ctx)
		if err != nil {
			return err
		}
		overview.Brackets = make([]models.GameBracket, 0, len(games))
		for _, game := range games {
			if !game.MassMode {
				continue
			}
			pools, err := s.pools.ListPools(ctx, eventID, game.ID)
			if err != nil {
				return err
			}
			open := make([]*models.Pool, 0, len(pools))
			for _, p := range pools {
				if !p.Played {
					open = append(open, p)
				}
			}
			overview.Brackets = append(overview.Brackets, models.GameBracket{
				Game:  game,
				State: brackets.State(pools),
				Pools: open,
			})
		}
		return nil
	})

	g.Go(func() error {
		open, err := s.matches.ListMatches(ctx, repositories.MatchFilter{
			EventID: eventID,
			States:  []models.MatchState{models.MatchOpen, models.MatchAccepted, models.MatchAwaitingConfirmation},
		})
		overview.OpenMatches = open
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}
