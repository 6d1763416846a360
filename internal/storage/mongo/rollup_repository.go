package mongo

import (
	"context"
	"time"

	"github.com/linktally/linktally/internal/infrastructure/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VisitRollupRepository maintains a per-day visit counter per shortId,
// written by the click consumer. This rollup is operational only; user-facing
// analytics always recomputes from the link's visitHistory.
type VisitRollupRepository struct {
	coll *mongo.Collection
}

func NewVisitRollupRepository(m *db.Mongo) (*VisitRollupRepository, error) {
	repo := &VisitRollupRepository{coll: m.Collection("visits_daily")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shortId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_shortId_date"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *VisitRollupRepository) IncDaily(ctx context.Context, shortID string, at time.Time) error {
	date := at.UTC().Format(time.DateOnly)

	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"shortId": shortID, "date": date},
		bson.M{
			"$inc": bson.M{"count": 1},
			"$setOnInsert": bson.M{
				"shortId": shortID,
				"date":    date,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
