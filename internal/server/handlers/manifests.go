package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"manifesthub/internal/bundle"
	"manifesthub/internal/database"
	"manifesthub/internal/models"
	"manifesthub/internal/server/middleware"
	"manifesthub/internal/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func ManifestList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	rows, err := database.ListManifests(strings.TrimSpace(c.Query("search")), limit, offset)
	if err != nil {
		return err
	}
	return success(c, rows)
}

func ManifestStats(c *fiber.Ctx) error {
	s, err := database.ManifestTotals()
	if err != nil {
		return err
	}
	return success(c, s)
}

func loadManifest(c *fiber.Ctx) (*models.Manifest, error) {
	id, err := paramID(c)
	if err != nil {
		return nil, err
	}
	var m models.Manifest
	if err := database.DB.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Manifest not found")
		}
		return nil, err
	}
	return &m, nil
}

func ManifestGet(c *fiber.Ctx) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}
	return success(c, m)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ManifestUpload accepts one or more "manifest" files and at most one "lua"
// file, packs them into a single bundle and upserts the row. Ids are taken
// from each file name; for a single manifest the form's depot_id and
// manifest_id win. The row is keyed by the first manifest's ids.
func ManifestUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest("No file uploaded")
	}
	manifestFiles := form.File["manifest"]
	luaFiles := form.File["lua"]
	if len(manifestFiles) == 0 && len(luaFiles) == 0 {
		return badRequest("No file uploaded")
	}
	if len(luaFiles) > 1 {
		return badRequest("Only one lua file may be uploaded")
	}
	appID := strings.TrimSpace(c.FormValue("app_id"))
	gameName := strings.TrimSpace(c.FormValue("game_name"))
	if appID == "" || gameName == "" {
		return badRequest("Missing required fields: app_id, game_name")
	}
	formDepot := strings.TrimSpace(c.FormValue("depot_id"))
	formManifest := strings.TrimSpace(c.FormValue("manifest_id"))

	var b bundle.Bundle
	var rowDepot, rowManifest string
	for i, fh := range manifestFiles {
		data, err := readFormFile(fh)
		if err != nil {
			return fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		depot, manifest := services.ParseManifestFilename(fh.Filename)
		if len(manifestFiles) == 1 {
			if formDepot != "" {
				depot = formDepot
			}
			if formManifest != "" {
				manifest = formManifest
			}
		}
		entry := bundle.Manifest{Data: data}
		if bundle.CanEmbed(depot, manifest) {
			entry.DepotID, entry.ManifestID = depot, manifest
		}
		b.Manifests = append(b.Manifests, entry)
		if i == 0 {
			rowDepot, rowManifest = depot, manifest
		}
	}
	if len(luaFiles) == 1 {
		data, err := readFormFile(luaFiles[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", luaFiles[0].Filename, err)
		}
		b.Script = &bundle.Script{Data: data}
		if len(manifestFiles) == 0 {
			rowDepot, rowManifest = services.ParseManifestFilename(luaFiles[0].Filename)
			if formDepot != "" {
				rowDepot = formDepot
			}
			if formManifest != "" {
				rowManifest = formManifest
			}
		}
	}

	content, err := bundle.Encode(b)
	if err != nil {
		return badRequest(err.Error())
	}

	uploader := strings.TrimSpace(c.FormValue("uploader_name"))
	if uploader == "" {
		if u := middleware.CurrentUser(c); u != nil {
			uploader = u.Username
		}
	}
	row := models.Manifest{
		AppID:        appID,
		GameName:     gameName,
		DepotID:      rowDepot,
		ManifestID:   rowManifest,
		FileContent:  content,
		FileSize:     b.Size(),
		UploaderName: uploader,
		Notes:        c.FormValue("notes"),
	}
	if err := database.UpsertManifest(&row); err != nil {
		return err
	}
	log.Info("stored manifest", "app_id", row.AppID, "depot_id", row.DepotID, "manifest_id", row.ManifestID,
		"manifests", len(b.Manifests), "script", b.Script != nil, "bytes", row.FileSize)
	return success(c, row)
}

func ManifestUpdate(c *fiber.Ctx) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}
	var in struct {
		GameName  *string `json:"game_name"`
		Notes     *string `json:"notes"`
		GameImage *string `json:"game_image"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid body")
	}
	if in.GameName != nil {
		name := strings.TrimSpace(*in.GameName)
		if name == "" {
			return badRequest("game_name cannot be empty")
		}
		m.GameName = name
	}
	if in.Notes != nil {
		m.Notes = *in.Notes
	}
	if in.GameImage != nil {
		m.GameImage = *in.GameImage
	}
	if err := database.DB.Save(m).Error; err != nil {
		return err
	}
	return success(c, m)
}

// ManifestDelete removes the row and tells listeners right away, since the
// change poller only sees rows that still exist.
func ManifestDelete(hub *services.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		res := database.DB.Delete(&models.Manifest{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Manifest not found")
		}
		hub.Broadcast(services.Event{Type: services.EventManifestDeleted, Data: fiber.Map{"id": id}})
		return c.JSON(fiber.Map{"success": true, "message": "Manifest deleted successfully"})
	}
}

// extract decodes the stored bundle. A bundle that cannot be fully decoded
// is refused whole; handing out part of it would misstate what was uploaded.
func extract(m *models.Manifest) ([]bundle.File, error) {
	b, err := bundle.Decode(m.FileContent)
	if err != nil {
		var se *bundle.SectionError
		switch {
		case errors.Is(err, bundle.ErrMalformedBundle):
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "No files found to download")
		case errors.As(err, &se):
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity,
				fmt.Sprintf("Stored %s section %d is corrupt", se.Kind, se.Position))
		}
		return nil, err
	}
	return bundle.Files(b, bundle.Record{DepotID: m.DepotID, ManifestID: m.ManifestID, GameName: m.GameName}), nil
}

type fileView struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

func ManifestFiles(c *fiber.Ctx) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}
	files, err := extract(m)
	if err != nil {
		return err
	}
	out := make([]fileView, len(files))
	for i, f := range files {
		out[i] = fileView{Name: f.Name, Size: len(f.Data)}
	}
	return success(c, out)
}

func ManifestDownload(c *fiber.Ctx) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}
	files, err := extract(m)
	if err != nil {
		return err
	}
	data, err := services.ZipFiles(files, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("zip manifest %d: %w", m.ID, err)
	}
	c.Set(fiber.HeaderContentDisposition, attachment(bundle.ArchiveName(m.GameName)))
	c.Set(fiber.HeaderContentType, "application/zip")
	return c.Send(data)
}

// attachment builds the Content-Disposition value. fiber's Ctx.Attachment
// query-escapes the name, turning spaces into '+'.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
