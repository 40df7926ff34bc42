package database

import (
	"time"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm/clause"

	"manifesthub/internal/models"
)

// UpsertManifest inserts m or, when (app_id, depot_id, manifest_id) already
// exists, replaces its content, size, uploader and notes. m is reloaded from
// the stored row.
func UpsertManifest(m *models.Manifest) error {
	err := DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "app_id"}, {Name: "depot_id"}, {Name: "manifest_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_content", "file_size", "updated_at", "uploader_name", "notes",
		}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	return DB.Where("app_id = ? AND depot_id = ? AND manifest_id = ?", m.AppID, m.DepotID, m.ManifestID).First(m).Error
}

func ListManifests(search string, limit, offset int) ([]models.Manifest, error) {
	q := DB.Model(&models.Manifest{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(game_name) LIKE LOWER(?) OR app_id LIKE ?", like, like)
	}
	var rows []models.Manifest
	err := q.Order("uploaded_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

func ManifestTotals() (models.ManifestStats, error) {
	var s models.ManifestStats
	if err := DB.Model(&models.Manifest{}).Count(&s.TotalManifests).Error; err != nil {
		return s, err
	}
	if err := DB.Model(&models.Manifest{}).Distinct("app_id").Count(&s.UniqueGames).Error; err != nil {
		return s, err
	}
	if err := DB.Model(&models.Manifest{}).Select("COALESCE(SUM(file_size), 0)").Scan(&s.TotalSize).Error; err != nil {
		return s, err
	}
	if s.TotalManifests > 0 {
		var latest models.Manifest
		if err := DB.Select("id", "uploaded_at").Order("uploaded_at desc").First(&latest).Error; err != nil {
			return s, err
		}
		s.LastUpload = &latest.UploadedAt
	}
	s.TotalSizeHuman = humanize.IBytes(uint64(s.TotalSize))
	return s, nil
}

// ManifestsChangedSince returns rows created or updated strictly after t,
// oldest change first.
func ManifestsChangedSince(t time.Time) ([]models.Manifest, error) {
	var rows []models.Manifest
	err := DB.Where("uploaded_at > ? OR updated_at > ?", t, t).Order("updated_at asc").Find(&rows).Error
	return rows, err
}
