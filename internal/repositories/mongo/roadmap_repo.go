package mongo

import (
	"context"
	"errors"

	"github.com/yoockh/careerpath/internal/models"
	"github.com/yoockh/careerpath/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoadmapRepository persists the roadmap fields of a user document. Saves
// are last-write-wins; no history is kept.
type RoadmapRepository interface {
	// Save replaces resumeText, targetRole and roadmap in one update.
	Save(ctx context.Context, userID, resumeText, targetRole string, roadmap models.Roadmap) error
	// Load returns the stored roadmap, empty when none was generated yet.
	Load(ctx context.Context, userID string) (models.Roadmap, error)
	// ToggleWeek flips completed on every item of week and returns the
	// updated roadmap. utils.ErrNotFound is returned for an unknown user;
	// ErrWeekNotFound when the user has no item for that week.
	ToggleWeek(ctx context.Context, userID string, week int) (models.Roadmap, error)
}

var ErrWeekNotFound = errors.New("roadmap week not found")

type roadmapRepo struct {
	col *mongo.Collection
}

func NewRoadmapRepo(db *mongo.Database) RoadmapRepository {
	return &roadmapRepo{col: db.Collection(UsersCollection)}
}

type roadmapDoc struct {
	Roadmap models.Roadmap `bson:"roadmap"`
}

func (r *roadmapRepo) Save(ctx context.Context, userID, resumeText, targetRole string, roadmap models.Roadmap) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.ErrNotFound
	}
	if roadmap == nil {
		roadmap = models.Roadmap{}
	}

	// a single-document $set is atomic, readers see all three fields or none
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"resumeText": resumeText,
			"targetRole": targetRole,
			"roadmap":    roadmap,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *roadmapRepo) Load(ctx context.Context, userID string) (models.Roadmap, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	var doc roadmapDoc
	err = r.col.FindOne(ctx,
		bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"roadmap": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.Roadmap == nil {
		return models.Roadmap{}, nil
	}
	return doc.Roadmap, nil
}

func (r *roadmapRepo) ToggleWeek(ctx context.Context, userID string, week int) (models.Roadmap, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	flip := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"roadmap": bson.M{"$map": bson.M{
				"input": "$roadmap",
				"as":    "it",
				"in": bson.M{"$cond": bson.A{
					bson.M{"$eq": bson.A{"$$it.week", week}},
					bson.M{"$mergeObjects": bson.A{"$$it", bson.M{"completed": bson.M{"$not": bson.A{"$$it.completed"}}}}},
					"$$it",
				}},
			}},
		}}},
	}

	var doc roadmapDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "roadmap.week": week},
		flip,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"roadmap": 1}),
	).Decode(&doc)
	if err == nil {
		return doc.Roadmap, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// tell an unknown user apart from a missing week
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, utils.ErrNotFound
	}
	return nil, ErrWeekNotFound
}
