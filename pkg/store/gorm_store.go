package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bugboard/pkg/domain"
	"bugboard/pkg/report"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migration.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&BugModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindByMessageID looks up a bug by its source Discord message id.
func (s *GormStore) FindByMessageID(ctx context.Context, messageID string) (domain.Bug, bool, error) {
	var model BugModel
	if err := s.db.WithContext(ctx).Where("discord_message_id = ?", messageID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bug{}, false, nil
		}
		return domain.Bug{}, false, err
	}
	return bugFromModel(model), true, nil
}

// Create persists a new bug with a store-assigned identity. A duplicate
// Discord message id surfaces as ErrDuplicateMessage.
func (s *GormStore) Create(ctx context.Context, bug domain.Bug) (domain.Bug, error) {
	if bug.ID == "" {
		bug.ID = uuid.NewString()
	}
	if bug.CreatedAt.IsZero() {
		bug.CreatedAt = time.Now().UTC()
	}
	bug.UpdatedAt = time.Now().UTC()

	model := bugToModel(bug)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Bug{}, ErrDuplicateMessage
		}
		return domain.Bug{}, err
	}
	return bugFromModel(model), nil
}

// Update merges pipeline-owned fields into an existing bug and returns the
// refreshed record.
func (s *GormStore) Update(ctx context.Context, id string, patch report.Patch) (domain.Bug, error) {
	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if patch.SteamID != nil {
		updates["steam_id"] = *patch.SteamID
	}
	if patch.ScreenshotURL != nil {
		updates["screenshot_url"] = *patch.ScreenshotURL
	}
	if patch.ScreenshotSourceURL != nil {
		updates["screenshot_source_url"] = *patch.ScreenshotSourceURL
	}

	tx := s.db.WithContext(ctx).Model(&BugModel{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return domain.Bug{}, tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.Bug{}, fmt.Errorf("bug %s not found", id)
	}

	var model BugModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return domain.Bug{}, err
	}
	return bugFromModel(model), nil
}

// GetBug retrieves a bug by its identity.
func (s *GormStore) GetBug(ctx context.Context, id string) (domain.Bug, bool, error) {
	var model BugModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bug{}, false, nil
		}
		return domain.Bug{}, false, err
	}
	return bugFromModel(model), true, nil
}

// ListBugs returns filtered bugs, newest first, plus the unpaginated total.
func (s *GormStore) ListBugs(ctx context.Context, filter ListFilter) ([]domain.Bug, int64, error) {
	query := s.db.WithContext(ctx).Model(&BugModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.AssignedToID != "" {
		query = query.Where("assigned_to_id = ?", filter.AssignedToID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 150
	}
	var models []BugModel
	if err := query.Order("created_at DESC").Offset(filter.Offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	bugs := make([]domain.Bug, 0, len(models))
	for _, model := range models {
		bugs = append(bugs, bugFromModel(model))
	}
	return bugs, total, nil
}

// ListBugsBySteamID returns all bugs reported by one player.
func (s *GormStore) ListBugsBySteamID(ctx context.Context, steamID string) ([]domain.Bug, error) {
	var models []BugModel
	if err := s.db.WithContext(ctx).Where("steam_id = ?", steamID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	bugs := make([]domain.Bug, 0, len(models))
	for _, model := range models {
		bugs = append(bugs, bugFromModel(model))
	}
	return bugs, nil
}

// StatusCounts returns how many bugs sit in each workflow status.
func (s *GormStore) StatusCounts(ctx context.Context) (map[domain.BugStatus]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&BugModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.BugStatus]int64, len(rows))
	for _, r := range rows {
		counts[domain.BugStatus(r.Status)] = r.Count
	}
	return counts, nil
}

// SetStatus moves a bug to another workflow status.
func (s *GormStore) SetStatus(ctx context.Context, id string, status domain.BugStatus) error {
	tx := s.db.WithContext(ctx).Model(&BugModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("bug %s not found", id)
	}
	return nil
}

// DeleteBug removes a bug.
func (s *GormStore) DeleteBug(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&BugModel{}, "id = ?", id).Error
}

func bugToModel(b domain.Bug) BugModel {
	return BugModel{
		ID:                  b.ID,
		Title:               b.Title,
		Description:         b.Description,
		Type:                string(b.Type),
		Status:              string(b.Status),
		Priority:            string(b.Priority),
		AssignedToID:        b.AssignedToID,
		DiscordMessageID:    b.DiscordMessageID,
		DiscordChannelID:    b.DiscordChannelID,
		DiscordThreadID:     b.DiscordThreadID,
		SteamID:             b.SteamID,
		Level:               b.Level,
		PlayerPosition:      b.PlayerPosition,
		CameraPosition:      b.CameraPosition,
		CameraRotation:      b.CameraRotation,
		FPS:                 b.FPS,
		GPU:                 b.GPU,
		CPU:                 b.CPU,
		OS:                  b.OS,
		RAMTotal:            b.RAMTotal,
		CurrentRAM:          b.CurrentRAM,
		VRAM:                b.VRAM,
		CurrentVRAM:         b.CurrentVRAM,
		CustomData:          customDataToJSON(b.CustomData),
		ScreenshotURL:       b.ScreenshotURL,
		ScreenshotSourceURL: b.ScreenshotSourceURL,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

func bugFromModel(m BugModel) domain.Bug {
	return domain.Bug{
		ID:                  m.ID,
		Title:               m.Title,
		Description:         m.Description,
		Type:                domain.BugType(m.Type),
		Status:              domain.BugStatus(m.Status),
		Priority:            domain.BugPriority(m.Priority),
		AssignedToID:        m.AssignedToID,
		DiscordMessageID:    m.DiscordMessageID,
		DiscordChannelID:    m.DiscordChannelID,
		DiscordThreadID:     m.DiscordThreadID,
		SteamID:             m.SteamID,
		Level:               m.Level,
		PlayerPosition:      m.PlayerPosition,
		CameraPosition:      m.CameraPosition,
		CameraRotation:      m.CameraRotation,
		FPS:                 m.FPS,
		GPU:                 m.GPU,
		CPU:                 m.CPU,
		OS:                  m.OS,
		RAMTotal:            m.RAMTotal,
		CurrentRAM:          m.CurrentRAM,
		VRAM:                m.VRAM,
		CurrentVRAM:         m.CurrentVRAM,
		CustomData:          customDataFromJSON(m.CustomData),
		ScreenshotURL:       m.ScreenshotURL,
		ScreenshotSourceURL: m.ScreenshotSourceURL,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// customDataToJSON stores the opaque custom-data payload as jsonb: reporter
// payloads that are valid JSON are kept as-is, anything else is wrapped as a
// JSON string.
func customDataToJSON(data *string) datatypes.JSON {
	if data == nil || *data == "" {
		return nil
	}
	raw := []byte(*data)
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	quoted, _ := json.Marshal(*data)
	return datatypes.JSON(quoted)
}

func customDataFromJSON(raw datatypes.JSON) *string {
	if len(raw) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return &text
	}
	value := string(raw)
	return &value
}
