package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amoylab/agridash/internal/common/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

const (
	collAILogs    = "ai_logs"
	collAnalytics = "analytics"
	collReports   = "user_reports"
)

// MongoStore implements Store on MongoDB
type MongoStore struct {
	client    *mongo.Client
	aiLogs    *mongo.Collection
	analytics *mongo.Collection
	reports   *mongo.Collection
	logger    *zap.Logger
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects, pings and ensures indexes
func NewMongoStore(ctx context.Context, cfg config.DocStoreConfig, logger *zap.Logger) (*MongoStore, error) {
	opts := options.Client().ApplyURI(cfg.URI).
		SetMaxPoolSize(100).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary()).
		// nested documents decode as maps so they render as JSON objects
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:    client,
		aiLogs:    db.Collection(collAILogs),
		analytics: db.Collection(collAnalytics),
		reports:   db.Collection(collReports),
		logger:    logger,
	}
	if err := s.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("connected to mongo", zap.String("database", cfg.Database))
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.aiLogs: {
			{
				Keys:    bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("type_created_idx"),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("user_created_idx").SetSparse(true),
			},
		},
		s.analytics: {
			{
				Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "type", Value: 1}},
				Options: options.Index().SetName("created_type_idx"),
			},
		},
		s.reports: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
				Options: options.Index().SetName("owner_updated_idx"),
			},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) InsertAILog(ctx context.Context, log *AILog) error {
	stamp(&log.ID, &log.CreatedAt)
	_, err := s.aiLogs.InsertOne(ctx, log)
	return err
}

func (s *MongoStore) ListAILogs(ctx context.Context, filter AILogFilter) ([]*AILog, int64, error) {
	limit, offset := ClampPage(filter.Limit, filter.Offset)
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Success != nil {
		query["success"] = *filter.Success
	}
	if filter.UserID != 0 {
		query["user_id"] = filter.UserID
	}

	total, err := s.aiLogs.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.aiLogs.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	logs := []*AILog{}
	if err := cur.All(ctx, &logs); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (s *MongoStore) AILogStats(ctx context.Context) ([]AILogStat, error) {
	countIf := func(field string) bson.D {
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$" + field, 1, 0}}}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$type"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "successes", Value: countIf("success")},
			{Key: "fallbacks", Value: countIf("fallback")},
			{Key: "avg_latency_ms", Value: bson.D{{Key: "$avg", Value: "$latency_ms"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := s.aiLogs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	stats := []AILogStat{}
	if err := cur.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *MongoStore) InsertAnalytics(ctx context.Context, event *AnalyticsEvent) error {
	stamp(&event.ID, &event.CreatedAt)
	_, err := s.analytics.InsertOne(ctx, event)
	return err
}

func (s *MongoStore) AnalyticsSummary(ctx context.Context, since time.Time) ([]AnalyticsCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "type", Value: "$type"}, {Key: "action", Value: "$action"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "type", Value: "$_id.type"},
			{Key: "action", Value: "$_id.action"},
			{Key: "count", Value: 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "type", Value: 1}}}},
	}
	cur, err := s.analytics.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	counts := []AnalyticsCount{}
	if err := cur.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *MongoStore) CreateReport(ctx context.Context, report *UserReport) error {
	stamp(&report.ID, &report.CreatedAt)
	report.UpdatedAt = report.CreatedAt
	_, err := s.reports.InsertOne(ctx, report)
	return err
}

func ownedBy(ownerID uint, id string) bson.M {
	return bson.M{"_id": id, "user_id": ownerID}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) GetReport(ctx context.Context, ownerID uint, id string) (*UserReport, error) {
	var report UserReport
	if err := s.reports.FindOne(ctx, ownedBy(ownerID, id)).Decode(&report); err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *MongoStore) ListReports(ctx context.Context, ownerID uint, limit, offset int) ([]*UserReport, int64, error) {
	limit, offset = ClampPage(limit, offset)
	query := bson.M{"user_id": ownerID}

	total, err := s.reports.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.reports.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	reports := []*UserReport{}
	if err := cur.All(ctx, &reports); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (s *MongoStore) UpdateReport(ctx context.Context, ownerID uint, id string, patch ReportPatch) (*UserReport, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Filters != nil {
		set["filters"] = patch.Filters
	}
	if patch.AIInsights != nil {
		set["ai_insights"] = patch.AIInsights
	}
	if patch.Visualizations != nil {
		set["visualizations"] = *patch.Visualizations
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}

	var report UserReport
	err := s.reports.FindOneAndUpdate(ctx, ownedBy(ownerID, id), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&report)
	if err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *MongoStore) DeleteReport(ctx context.Context, ownerID uint, id string) error {
	res, err := s.reports.DeleteOne(ctx, ownedBy(ownerID, id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
