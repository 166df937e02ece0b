package team

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sellerhub/affiliate-api/internal/domain/referral"
)

const (
	cacheKeyPrefix = "team:tree:"
	cacheTTL       = 60 * time.Second
)

// Service reconstructs downline trees from the flat referral-path
// encoding. Pure read path: informational only, degrades gracefully.
type Service struct {
	repo  Repository
	cache *redis.Client // optional, nil tolerated
}

func NewService(repo Repository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// GetTree returns the 3-level downline of rootID with per-member stats.
func (s *Service) GetTree(ctx context.Context, rootID uuid.UUID) (*Tree, error) {
	if cached := s.fromCache(ctx, rootID); cached != nil {
		return cached, nil
	}

	rows, err := s.repo.ListDownlineRows(ctx, rootID)
	if err != nil {
		return nil, err
	}

	tree := &Tree{RootID: rootID, Members: make([]Member, 0, len(rows))}
	memberIDs := make([]uuid.UUID, 0, len(rows))

	for _, row := range rows {
		path, err := referral.ParsePath(row.Path)
		if err != nil {
			// A malformed path poisons only its own row on a read path.
			log.Warn().Str("member_id", row.ID.String()).Msg("skipping member with malformed referral path")
			continue
		}
		idx := path.IndexOf(rootID)
		if idx < 0 {
			// LIKE pre-filter false positive (root id as substring).
			continue
		}
		level := idx + 1
		tree.Members = append(tree.Members, Member{MemberID: row.ID, Level: level})
		tree.LevelCounts[idx]++
		memberIDs = append(memberIDs, row.ID)
	}
	tree.TotalMembers = len(tree.Members)

	// Stats are informational: a failed aggregate degrades to zeros
	// instead of failing the whole view.
	children, err := s.repo.DirectChildrenCounts(ctx, memberIDs)
	if err != nil {
		log.Warn().Err(err).Msg("direct children counts unavailable")
		children = map[uuid.UUID]int{}
	}
	contribs, err := s.repo.Contributions(ctx, rootID, memberIDs)
	if err != nil {
		log.Warn().Err(err).Msg("contribution aggregates unavailable")
		contribs = map[uuid.UUID]contribution{}
	}

	for i := range tree.Members {
		m := &tree.Members[i]
		m.DirectChildren = children[m.MemberID]
		if c, ok := contribs[m.MemberID]; ok {
			m.ContributedCents = c.TotalCents
			m.LastContributionAt = c.LastContributionAt
			m.PackageEvents = c.PackageEvents
			m.TopupEvents = c.TopupEvents
		}
	}

	sort.Slice(tree.Members, func(i, j int) bool {
		if tree.Members[i].Level != tree.Members[j].Level {
			return tree.Members[i].Level < tree.Members[j].Level
		}
		return tree.Members[i].ContributedCents > tree.Members[j].ContributedCents
	})

	s.toCache(ctx, rootID, tree)
	return tree, nil
}

func (s *Service) fromCache(ctx context.Context, rootID uuid.UUID) *Tree {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKeyPrefix+rootID.String()).Bytes()
	if err != nil {
		return nil
	}
	var tree Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}
	return &tree
}

func (s *Service) toCache(ctx context.Context, rootID uuid.UUID, tree *Tree) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+rootID.String(), raw, cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("root_id", rootID.String()).Msg("failed to cache team tree")
	}
}
