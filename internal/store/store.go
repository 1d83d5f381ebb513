package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatewatch/pkg/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names.
const (
	collScans  = "scans"
	collEvents = "events"
)

// ErrScanNotFound is returned when a scan id has no record.
var ErrScanNotFound = errors.New("scan not found")

// Store persists scan records and ingested log events in MongoDB. It is the
// persistence collaborator for both the ingestion loop and the validation
// path; validation summaries are written back onto the scan document.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
	ttlDays  int
}

// NewStore connects to MongoDB and prepares the collections. If a
// certificate key file is provided, X.509 authentication is used.
func NewStore(uri, database, certKeyFile string, maxPoolSize, ttlDays int, logger *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri)
	clientOpts.SetMaxPoolSize(uint64(maxPoolSize))

	if certKeyFile != "" {
		if strings.Contains(uri, "?") {
			uri = uri + "&tlsCertificateKeyFile=" + certKeyFile
		} else {
			uri = uri + "?tlsCertificateKeyFile=" + certKeyFile
		}
		clientOpts.SetAuth(options.Credential{
			AuthMechanism: "MONGODB-X509",
		})
		clientOpts.ApplyURI(uri)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Store{
		client:   client,
		database: client.Database(database),
		logger:   logger,
		ttlDays:  ttlDays,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		// Index creation failing should not stop ingestion.
		logger.Error("Failed to ensure indexes", zap.Error(err))
	}

	logger.Info("Connected to MongoDB",
		zap.String("database", database),
		zap.Int("max_pool_size", maxPoolSize))

	return s, nil
}

// InsertEvents bulk-inserts classified log events for audit.
func (s *Store) InsertEvents(ctx context.Context, events []models.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, ev := range events {
		docs[i] = ev
	}

	_, err := s.database.Collection(collEvents).
		InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.logger.Warn("Duplicate events in batch, some already exist",
				zap.Int("batch_size", len(events)))
			return nil
		}
		return fmt.Errorf("failed to insert events: %w", err)
	}

	s.logger.Debug("Events inserted", zap.Int("count", len(events)))
	return nil
}

// UpsertScan writes a scan record keyed by scan id. Ingestion may see the
// same scan confirmation more than once; the upsert keeps it idempotent.
func (s *Store) UpsertScan(ctx context.Context, rec models.ScanRecord) error {
	filter := bson.M{"scan_id": rec.ScanID}
	update := bson.M{"$set": bson.M{
		"container_no": rec.ContainerNo,
		"truck_no":     rec.TruckNo,
		"scan_time":    rec.ScanTime,
		"status":       rec.Status,
		"image_paths":  rec.ImagePaths,
	}}

	_, err := s.database.Collection(collScans).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert scan %s: %w", rec.ScanID, err)
	}
	return nil
}

// GetScan fetches one scan record by id.
func (s *Store) GetScan(ctx context.Context, scanID string) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	err := s.database.Collection(collScans).
		FindOne(ctx, bson.M{"scan_id": scanID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
		}
		return nil, fmt.Errorf("failed to fetch scan %s: %w", scanID, err)
	}
	return &rec, nil
}

// ListScans returns up to limit scan records, oldest first. When
// includeValidated is false, records that already carry a validation
// summary are skipped so batch runs are resumable.
func (s *Store) ListScans(ctx context.Context, limit int, includeValidated bool) ([]models.ScanRecord, error) {
	filter := bson.M{}
	if !includeValidated {
		filter["validated"] = bson.M{"$ne": true}
	}

	opts := options.Find().SetSort(bson.D{{Key: "scan_time", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.database.Collection(collScans).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []models.ScanRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode scans: %w", err)
	}
	return recs, nil
}

// SaveValidation writes a validation summary back onto the scan document.
func (s *Store) SaveValidation(ctx context.Context, v *models.ScanValidation) error {
	update := bson.M{"$set": bson.M{
		"validated":     true,
		"validation":    v.Summary,
		"image_results": v.ImageResults,
		"validated_at":  time.Now().UTC(),
	}}

	res, err := s.database.Collection(collScans).
		UpdateOne(ctx, bson.M{"scan_id": v.ScanID}, update)
	if err != nil {
		return fmt.Errorf("failed to save validation for %s: %w", v.ScanID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrScanNotFound, v.ScanID)
	}
	return nil
}

// ensureIndexes creates the scan and event indexes, including the TTL index
// that ages out raw audit events. Index creation is idempotent.
func (s *Store) ensureIndexes(ctx context.Context) error {
	scanIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "scan_id", Value: 1}},
			Options: options.Index().SetName("scan_id_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "scan_time", Value: 1}},
			Options: options.Index().SetName("scan_time_asc"),
		},
		{
			Keys:    bson.D{{Key: "validated", Value: 1}, {Key: "scan_time", Value: 1}},
			Options: options.Index().SetName("validated_scan_time"),
		},
	}
	if _, err := s.database.Collection(collScans).Indexes().CreateMany(ctx, scanIndexes); err != nil {
		return fmt.Errorf("failed to create scan indexes: %w", err)
	}

	eventIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("timestamp_desc"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("type_timestamp"),
		},
	}
	if s.ttlDays > 0 {
		ttlSeconds := int32(s.ttlDays * 24 * 60 * 60)
		eventIndexes = append(eventIndexes, mongo.IndexModel{
			Keys: bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().
				SetName("ttl_index").
				SetExpireAfterSeconds(ttlSeconds),
		})
	}
	if _, err := s.database.Collection(collEvents).Indexes().CreateMany(ctx, eventIndexes); err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
