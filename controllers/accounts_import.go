package controllers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/services"
	"kindernest_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// AccountImportController bulk-creates parent accounts and their children
// from a CSV/XLSX roster export.
type AccountImportController struct {
	mailer *services.MailerService
}

func NewAccountImportController(mailer *services.MailerService) *AccountImportController {
	return &AccountImportController{mailer: mailer}
}

// accountImportRow is one parsed line of the roster file.
type accountImportRow struct {
	ParentName     string
	Email          string
	Phone          string
	ChildFirstName string
	ChildLastName  string
	ChildNickname  string
	ClassGroupName string
}

// accountImportResult reports what happened to one row.
type accountImportResult struct {
	Row      int    `json:"row"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	ChildID  uint   `json:"child_id,omitempty"`
	Status   string `json:"status"` // created, reused, error
	Error    string `json:"error,omitempty"`
}

var accountImportColumns = []string{"ParentName", "Email", "ChildFirstName"}

// parseAccountRows validates the header and converts raw cells into rows.
// Rows missing required fields come back as per-row errors, not a global
// failure.
func parseAccountRows(rows [][]string) ([]accountImportRow, []string, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}

	col := buildColumnIndex(rows[0])
	for _, required := range accountImportColumns {
		if _, ok := col[required]; !ok {
			return nil, nil, fmt.Errorf("missing column: %s", required)
		}
	}

	var parsed []accountImportRow
	var rowErrors []string

	for i := 1; i < len(rows); i++ {
		r := rows[i]
		get := func(key string) string {
			if idx, ok := col[key]; ok && idx < len(r) {
				return strings.TrimSpace(r[idx])
			}
			return ""
		}

		row := accountImportRow{
			ParentName:     get("ParentName"),
			Email:          strings.ToLower(get("Email")),
			Phone:          get("Phone"),
			ChildFirstName: get("ChildFirstName"),
			ChildLastName:  get("ChildLastName"),
			ChildNickname:  get("ChildNickname"),
			ClassGroupName: get("ClassGroup"),
		}

		if row.ParentName == "" && row.Email == "" && row.ChildFirstName == "" {
			continue // blank line
		}
		if row.Email == "" || !strings.Contains(row.Email, "@") {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid email %q", i+1, row.Email))
			continue
		}
		if row.ChildFirstName == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: missing child first name", i+1))
			continue
		}

		parsed = append(parsed, row)
	}

	return parsed, rowErrors, nil
}

// usernameFromEmail derives a unique username from the email local part,
// appending a numeric suffix on collision.
func usernameFromEmail(email string, taken func(string) bool) string {
	base := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return -1
	}, base)
	if base == "" {
		base = "parent"
	}

	candidate := base
	for suffix := 2; taken(candidate); suffix++ {
		candidate = fmt.Sprintf("%s%d", base, suffix)
	}
	return candidate
}

// POST /api/import/accounts
// Multipart form with file field: file
func (ic *AccountImportController) Import(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot open file"})
	}
	defer file.Close()

	filename := strings.ToLower(fileHeader.Filename)
	var rows [][]string
	var parseErr error

	switch {
	case strings.HasSuffix(filename, ".csv"):
		rows, parseErr = readCSV(file)
	case strings.HasSuffix(filename, ".xlsx"), strings.HasSuffix(filename, ".xls"):
		tmpDir, _ := os.MkdirTemp("", "knxls-")
		tmp := filepath.Join(tmpDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFilename(fileHeader.Filename)))
		if err := c.SaveFile(fileHeader, tmp); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to buffer upload"})
		}
		rows, parseErr = readXLSX(tmp)
		_ = os.RemoveAll(tmpDir)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported file type (csv, xlsx)"})
	}
	if parseErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": parseErr.Error()})
	}

	parsed, rowErrors, err := parseAccountRows(rows)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]accountImportResult, 0, len(parsed))
	created := 0
	reused := 0
	childrenCreated := 0

	type credential struct {
		email      string
		parentName string
		username   string
		password   string
	}
	var credentials []credential

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		groupsByName := map[string]uint{}

		for i, row := range parsed {
			result := accountImportResult{Row: i + 2, Email: row.Email}

			// parent account: reuse by email, otherwise create with
			// generated credentials
			var parent models.User
			err := tx.Where("email = ?", row.Email).First(&parent).Error
			switch {
			case err == nil:
				reused++
				result.Status = "reused"
			case err == gorm.ErrRecordNotFound:
				username := usernameFromEmail(row.Email, func(candidate string) bool {
					var count int64
					tx.Model(&models.User{}).Where("username = ?", candidate).Count(&count)
					return count > 0
				})
				password, err := utils.GenerateRandomString(10)
				if err != nil {
					return err
				}
				hashed, err := utils.HashPassword(password)
				if err != nil {
					return err
				}

				parent = models.User{
					Username: username,
					Password: hashed,
					Email:    row.Email,
					Phone:    row.Phone,
					Role:     "parent",
					Status:   "active",
				}
				if err := tx.Create(&parent).Error; err != nil {
					result.Status = "error"
					result.Error = "failed to create parent account"
					results = append(results, result)
					continue
				}
				created++
				result.Status = "created"
				result.Username = username
				credentials = append(credentials, credential{
					email:      row.Email,
					parentName: row.ParentName,
					username:   username,
					password:   password,
				})
			default:
				return err
			}

			// class group lookup, cached per file
			var groupID uint
			if row.ClassGroupName != "" {
				if id, ok := groupsByName[row.ClassGroupName]; ok {
					groupID = id
				} else {
					var group models.ClassGroup
					if err := tx.Where("name = ?", row.ClassGroupName).First(&group).Error; err == nil {
						groupID = group.ID
						groupsByName[row.ClassGroupName] = group.ID
					} else if err != gorm.ErrRecordNotFound {
						return err
					}
				}
			}

			// child: skip duplicates under the same parent
			var existingChild models.Child
			err = tx.Where("parent_id = ? AND first_name = ? AND last_name = ?",
				parent.ID, row.ChildFirstName, row.ChildLastName).First(&existingChild).Error
			if err == gorm.ErrRecordNotFound {
				child := models.Child{
					ParentID:     parent.ID,
					ClassGroupID: groupID,
					FirstName:    row.ChildFirstName,
					LastName:     row.ChildLastName,
					Nickname:     row.ChildNickname,
					Active:       true,
				}
				if err := tx.Create(&child).Error; err != nil {
					result.Status = "error"
					result.Error = "failed to create child"
					results = append(results, result)
					continue
				}
				childrenCreated++
				result.ChildID = child.ID
			} else if err == nil {
				result.ChildID = existingChild.ID
			} else {
				return err
			}

			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// credentials go out after the transaction commits
	mailed := 0
	if ic.mailer != nil && ic.mailer.Enabled() {
		for _, cred := range credentials {
			if err := ic.mailer.SendCredentials(cred.email, cred.parentName, cred.username, cred.password); err == nil {
				mailed++
			}
		}
	}

	middleware.LogActivity(c, "IMPORT", "users", 0, fiber.Map{
		"file":             fileHeader.Filename,
		"parents_created":  created,
		"parents_reused":   reused,
		"children_created": childrenCreated,
	})

	return c.JSON(fiber.Map{
		"success":          true,
		"file_name":        fileHeader.Filename,
		"parents_created":  created,
		"parents_reused":   reused,
		"children_created": childrenCreated,
		"emails_sent":      mailed,
		"row_errors":       rowErrors,
		"results":          results,
	})
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

func buildColumnIndex(header []string) map[string]int {
	m := map[string]int{}
	for i, h := range header {
		m[strings.TrimSpace(h)] = i
	}
	return m
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
