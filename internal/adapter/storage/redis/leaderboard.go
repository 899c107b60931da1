package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Leaderboard implements ports.Leaderboard on a sorted set per auction.
//
// The score is the bid amount. Ties are resolved by the member encoding: a
// zero-padded inverse of the bid's nanosecond timestamp prefixes the bid id,
// so among equal scores ZREVRANGE's reverse-lexicographic order yields the
// earliest bid first. Entry payloads live in a companion hash keyed by bid id.
//
// The sorted set is a cache of the authoritative bid store; writers are
// last-writer-wins and the admission pipeline re-primes it on miss.
type Leaderboard struct {
	client *goredis.Client
	prefix string
}

// NewLeaderboard creates a Redis-backed leaderboard index.
func NewLeaderboard(client *goredis.Client) *Leaderboard {
	return &Leaderboard{
		client: client,
		prefix: "leaderboard:",
	}
}

func (l *Leaderboard) zsetKey(auctionID uuid.UUID) string {
	return l.prefix + auctionID.String()
}

func (l *Leaderboard) hashKey(auctionID uuid.UUID) string {
	return l.prefix + auctionID.String() + ":entries"
}

// member composes the tie-breaking sorted-set member for an entry.
func member(e domain.LeaderboardEntry) string {
	inverse := uint64(math.MaxInt64) - uint64(e.Timestamp.UnixNano())
	return fmt.Sprintf("%020d:%s", inverse, e.ID)
}

// bidIDFromMember recovers the bid id from a sorted-set member.
func bidIDFromMember(m string) (uuid.UUID, error) {
	parts := strings.SplitN(m, ":", 2)
	if len(parts) != 2 {
		return uuid.Nil, fmt.Errorf("malformed leaderboard member: %q", m)
	}
	return uuid.Parse(parts[1])
}

// Add inserts or refreshes a bid on its auction's leaderboard.
func (l *Leaderboard) Add(ctx context.Context, bid domain.Bid) error {
	entry := domain.NewLeaderboardEntry(bid)
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal leaderboard entry: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, l.zsetKey(bid.AuctionID), goredis.Z{
		Score:  float64(entry.Amount),
		Member: member(entry),
	})
	pipe.HSet(ctx, l.hashKey(bid.AuctionID), entry.ID.String(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard add: %w", err)
	}
	return nil
}

// Remove deletes a bid from the leaderboard. Unknown bids are a no-op.
func (l *Leaderboard) Remove(ctx context.Context, auctionID, bidID uuid.UUID) error {
	raw, err := l.client.HGet(ctx, l.hashKey(auctionID), bidID.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil
		}
		return fmt.Errorf("leaderboard lookup: %w", err)
	}

	var entry domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return fmt.Errorf("unmarshal leaderboard entry: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.ZRem(ctx, l.zsetKey(auctionID), member(entry))
	pipe.HDel(ctx, l.hashKey(auctionID), bidID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard remove: %w", err)
	}
	return nil
}

// Top returns up to limit entries ordered amount desc, timestamp asc.
func (l *Leaderboard) Top(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	members, err := l.client.ZRevRange(ctx, l.zsetKey(auctionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard range: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(members))
	for _, m := range members {
		id, err := bidIDFromMember(m)
		if err != nil {
			return nil, err
		}
		fields = append(fields, id.String())
	}

	raws, err := l.client.HMGet(ctx, l.hashKey(auctionID), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard payloads: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			// Payload evicted between range and fetch; skip, priming repairs.
			continue
		}
		var e domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("unmarshal leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Clear drops the whole index for an auction.
func (l *Leaderboard) Clear(ctx context.Context, auctionID uuid.UUID) error {
	if err := l.client.Del(ctx, l.zsetKey(auctionID), l.hashKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("leaderboard clear: %w", err)
	}
	return nil
}
