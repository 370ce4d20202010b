package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig содержит настройки подключения к MongoDB
type MongoConfig struct {
	URI        string // например, mongodb://localhost:27017
	Database   string // например, replay
	Collection string // например, recordings
}

// MongoCatalog хранит RecordingInfo документами MongoDB с _id = ID записи
type MongoCatalog struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
	mutex      sync.RWMutex
	isReady    bool
}

// mongoRecording - документ коллекции записей
type mongoRecording struct {
	ID               string    `bson:"_id"`
	Path             string    `bson:"path"`
	StartedAt        time.Time `bson:"started_at"`
	StoppedAt        time.Time `bson:"stopped_at"`
	ApplicationStart float64   `bson:"application_start"`
	SimulationStart  float64   `bson:"simulation_start"`
	CameraFrames     int       `bson:"camera_frames"`
	ClockFrames      int       `bson:"clock_frames"`
	Scripts          int       `bson:"scripts"`
	Duration         float64   `bson:"duration"`
	Failed           bool      `bson:"failed,omitempty"`
}

func toMongo(info RecordingInfo) mongoRecording {
	return mongoRecording{
		ID:               info.ID,
		Path:             info.Path,
		StartedAt:        info.StartedAt,
		StoppedAt:        info.StoppedAt,
		ApplicationStart: info.ApplicationStart,
		SimulationStart:  info.SimulationStart,
		CameraFrames:     info.CameraFrames,
		ClockFrames:      info.ClockFrames,
		Scripts:          info.Scripts,
		Duration:         info.Duration,
		Failed:           info.Failed,
	}
}

func (d mongoRecording) info() RecordingInfo {
	return RecordingInfo{
		ID:               d.ID,
		Path:             d.Path,
		StartedAt:        d.StartedAt,
		StoppedAt:        d.StoppedAt,
		ApplicationStart: d.ApplicationStart,
		SimulationStart:  d.SimulationStart,
		CameraFrames:     d.CameraFrames,
		ClockFrames:      d.ClockFrames,
		Scripts:          d.Scripts,
		Duration:         d.Duration,
		Failed:           d.Failed,
	}
}

// OpenMongo подключается к MongoDB, проверяет соединение и создаёт индексы
func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoCatalog, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	c := NewMongoCatalog(client, cfg)
	if err := c.ensureIndexes(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// NewMongoCatalog оборачивает готовый клиент
func NewMongoCatalog(client *mongo.Client, cfg MongoConfig) *MongoCatalog {
	if cfg.Database == "" {
		cfg.Database = "replay"
	}
	if cfg.Collection == "" {
		cfg.Collection = "recordings"
	}
	return &MongoCatalog{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
		isReady:    true,
	}
}

func (c *MongoCatalog) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "started_at", Value: 1}},
		Options: options.Index().SetName("started_at"),
	})
	if err != nil {
		return fmt.Errorf("create recordings index: %w", err)
	}
	return nil
}

// Close закрывает соединение
func (c *MongoCatalog) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isReady {
		return nil
	}
	c.isReady = false

	ctx, cancel := context.WithTimeout(context.Background(), c.ctxTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Put сохраняет или заменяет сведения о записи
func (c *MongoCatalog) Put(ctx context.Context, info RecordingInfo) error {
	if info.ID == "" {
		return errors.New("catalog: recording ID is empty")
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	_, err := c.collection.ReplaceOne(ctx, bson.M{"_id": info.ID}, toMongo(info), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put recording %s: %w", info.ID, err)
	}
	return nil
}

// Get загружает сведения о записи по ID
func (c *MongoCatalog) Get(ctx context.Context, id string) (RecordingInfo, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return RecordingInfo{}, ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	var doc mongoRecording
	err := c.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return RecordingInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return RecordingInfo{}, fmt.Errorf("get recording %s: %w", id, err)
	}
	return doc.info(), nil
}

// List возвращает все записи по времени начала
func (c *MongoCatalog) List(ctx context.Context) ([]RecordingInfo, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return nil, ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	var docs []mongoRecording
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	out := make([]RecordingInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.info())
	}
	return out, nil
}

// Delete удаляет запись из каталога; файл записи не трогает
func (c *MongoCatalog) Delete(ctx context.Context, id string) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	if _, err := c.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	return nil
}
