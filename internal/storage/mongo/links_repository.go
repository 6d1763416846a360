package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/linktally/linktally/internal/infrastructure/db"
	"github.com/linktally/linktally/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LinksRepository struct {
	coll *mongo.Collection
}

type linkDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ShortID      string             `bson:"shortId"`
	URL          string             `bson:"url"`
	VisitHistory []visitDoc         `bson:"visitHistory"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type visitDoc struct {
	Timestamp time.Time `bson:"timestamp"`
}

func NewLinksRepository(m *db.Mongo) (*LinksRepository, error) {
	repo := &LinksRepository{coll: m.Collection("links")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shortId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_shortId"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *LinksRepository) Insert(ctx context.Context, link *links.Link) error {
	doc := linkDoc{
		ShortID:      link.ShortID,
		URL:          link.URL,
		VisitHistory: []visitDoc{},
		CreatedAt:    link.CreatedAt.UTC(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			link.ID = oid.Hex()
		}
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		return links.ErrShortIDTaken
	}

	return err
}

func (r *LinksRepository) FindByShortID(ctx context.Context, shortID string) (*links.Link, error) {
	var doc linkDoc
	err := r.coll.FindOne(ctx, bson.M{"shortId": shortID}).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}

	return nil, err
}

// FindAll returns every link in natural (insertion) order. The data set is
// small enough that no pagination is offered.
func (r *LinksRepository) FindAll(ctx context.Context) ([]links.Link, error) {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]links.Link, 0)
	for cur.Next(ctx) {
		var doc linkDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *mapLinkDoc(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendVisit pushes one visit onto the link's history in a single atomic
// update, so concurrent visits to the same shortId never overwrite each
// other.
func (r *LinksRepository) AppendVisit(ctx context.Context, shortID string, visit links.Visit) (*links.Link, error) {
	update := bson.M{
		"$push": bson.M{
			"visitHistory": visitDoc{Timestamp: visit.Timestamp.UTC()},
		},
	}

	var doc linkDoc
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"shortId": shortID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}

	return nil, err
}

func mapLinkDoc(doc linkDoc) *links.Link {
	history := make([]links.Visit, 0, len(doc.VisitHistory))
	for _, v := range doc.VisitHistory {
		history = append(history, links.Visit{Timestamp: v.Timestamp})
	}

	link := &links.Link{
		ShortID:      doc.ShortID,
		URL:          doc.URL,
		VisitHistory: history,
		CreatedAt:    doc.CreatedAt,
	}
	if !doc.ID.IsZero() {
		link.ID = doc.ID.Hex()
	}
	return link
}
