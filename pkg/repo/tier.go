package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/gocql/gocql"

	"samplr/config"
	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/utilities"
)

type TierRepo struct {
	db   *gocql.Session
	conf *config.SamplrConfModel
}

// TierRepoImply reads the tier catalog. Nothing here caches: thresholds may
// change between requests.
type TierRepoImply interface {
	ListTiers(context.Context) ([]entities.Tier, error)
	UpsertTier(context.Context, entities.Tier) error
}

func NewTierRepo(db *gocql.Session, conf *config.SamplrConfModel) TierRepoImply {
	return &TierRepo{db: db, conf: conf}
}

// ListTiers returns the configured catalog sorted ascending by order.
func (repo *TierRepo) ListTiers(ctx context.Context) ([]entities.Tier, error) {
	log := utilities.NewLogger("ListTiers")

	query := fmt.Sprintf(
		`SELECT tier_order, name, required_points FROM %s WHERE catalog = ?`,
		table(repo.conf, consts.TierTable),
	)
	iter := repo.db.Query(query, repo.conf.Ledger.TierCatalog).WithContext(ctx).Iter()

	var (
		tier  entities.Tier
		tiers []entities.Tier
	)
	for iter.Scan(&tier.Order, &tier.Name, &tier.RequiredPoints) {
		tiers = append(tiers, tier)
	}

	if err := iter.Close(); err != nil {
		log.WithError(err).Error("failed to retrieve tiers")
		return nil, err
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Order < tiers[j].Order })

	return tiers, nil
}

func (repo *TierRepo) UpsertTier(ctx context.Context, tier entities.Tier) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (catalog, tier_order, name, required_points) VALUES (?, ?, ?, ?)`,
		table(repo.conf, consts.TierTable),
	)
	if err := repo.db.Query(
		query, repo.conf.Ledger.TierCatalog, tier.Order, tier.Name, tier.RequiredPoints,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to upsert tier %d: %w", tier.Order, err)
	}
	return nil
}
