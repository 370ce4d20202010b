package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
)

// MariaConfig содержит настройки подключения к MariaDB
type MariaConfig struct {
	Host     string // например, localhost
	Port     int    // например, 3306
	Database string // например, replay
	Username string
	Password string
}

// DSN формирует строку подключения драйвера mysql
func (cfg MariaConfig) DSN() string {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.Database == "" {
		cfg.Database = "replay"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

const createRecordingsTable = `
CREATE TABLE IF NOT EXISTS recordings (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	path VARCHAR(1024) NOT NULL,
	started_at DATETIME(6) NOT NULL,
	stopped_at DATETIME(6) NOT NULL,
	application_start DOUBLE NOT NULL,
	simulation_start DOUBLE NOT NULL,
	camera_frames INT NOT NULL,
	clock_frames INT NOT NULL,
	scripts INT NOT NULL,
	duration DOUBLE NOT NULL,
	failed BOOLEAN NOT NULL DEFAULT FALSE,
	INDEX idx_started_at (started_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

const recordingColumns = `id, path, started_at, stopped_at, application_start, simulation_start,
	camera_frames, clock_frames, scripts, duration, failed`

// MariaCatalog хранит RecordingInfo в таблице recordings MariaDB/MySQL
type MariaCatalog struct {
	db      *sql.DB
	mutex   sync.RWMutex
	isReady bool
}

// OpenMaria подключается к MariaDB и создаёт таблицу, если её нет
func OpenMaria(ctx context.Context, cfg MariaConfig) (*MariaCatalog, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if _, err := db.ExecContext(ctx, createRecordingsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу recordings: %w", err)
	}
	return NewMariaCatalog(db), nil
}

// NewMariaCatalog оборачивает готовое подключение; таблица должна существовать
func NewMariaCatalog(db *sql.DB) *MariaCatalog {
	return &MariaCatalog{db: db, isReady: true}
}

// Close закрывает подключение к БД
func (c *MariaCatalog) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isReady {
		return nil
	}
	c.isReady = false
	return c.db.Close()
}

// Put сохраняет или заменяет сведения о записи
func (c *MariaCatalog) Put(ctx context.Context, info RecordingInfo) error {
	if info.ID == "" {
		return errors.New("catalog: recording ID is empty")
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return ErrNotReady
	}

	query := `REPLACE INTO recordings (` + recordingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := c.db.ExecContext(ctx, query,
		info.ID, info.Path, info.StartedAt.UTC(), info.StoppedAt.UTC(),
		info.ApplicationStart, info.SimulationStart,
		info.CameraFrames, info.ClockFrames, info.Scripts, info.Duration, info.Failed)
	if err != nil {
		return fmt.Errorf("put recording %s: %w", info.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (RecordingInfo, error) {
	var info RecordingInfo
	err := row.Scan(&info.ID, &info.Path, &info.StartedAt, &info.StoppedAt,
		&info.ApplicationStart, &info.SimulationStart,
		&info.CameraFrames, &info.ClockFrames, &info.Scripts, &info.Duration, &info.Failed)
	return info, err
}

// Get загружает сведения о записи по ID
func (c *MariaCatalog) Get(ctx context.Context, id string) (RecordingInfo, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return RecordingInfo{}, ErrNotReady
	}

	row := c.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	info, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RecordingInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return RecordingInfo{}, fmt.Errorf("get recording %s: %w", id, err)
	}
	return info, nil
}

// List возвращает все записи по времени начала
func (c *MariaCatalog) List(ctx context.Context) ([]RecordingInfo, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return nil, ErrNotReady
	}

	rows, err := c.db.QueryContext(ctx, `SELECT `+recordingColumns+` FROM recordings ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []RecordingInfo
	for rows.Next() {
		info, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("list recordings: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out, nil
}

// Delete удаляет запись из каталога; файл записи не трогает
func (c *MariaCatalog) Delete(ctx context.Context, id string) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return ErrNotReady
	}

	if _, err := c.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	return nil
}
