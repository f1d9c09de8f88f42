package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kithhq/kith/internal/storage"
)

var exportHeader = []string{"contact_id", "contact_name", "tier", "telegram_handle", "category", "fact", "confidence", "fact_created_at"}

// handleExportCSV returns the whole record as CSV, one row per fact.
// Contacts without facts still get a row so the export round-trips them.
// Rows are assembled before the header is committed, so a read failure
// surfaces as an error response instead of a truncated file.
func handleExportCSV(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := d.Store.ListContacts(100000, 0)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}

		records := [][]string{exportHeader}
		for _, c := range contacts {
			facts, err := d.Store.ListFacts(c.ID)
			if err != nil {
				d.Logger.Error("exporting contact", "contact_id", c.ID, "error", err)
				respondStoreError(w, d, err)
				return
			}
			if len(facts) == 0 {
				records = append(records, []string{c.ID, c.Name, strconv.Itoa(c.Tier), c.TelegramHandle, "", "", "", ""})
				continue
			}
			for _, f := range facts {
				records = append(records, []string{
					c.ID, c.Name, strconv.Itoa(c.Tier), c.TelegramHandle,
					f.Category,
					f.Content,
					strconv.FormatFloat(f.Confidence, 'g', -1, 64),
					f.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
				})
			}
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="kith-export.csv"`)
		if err := csv.NewWriter(w).WriteAll(records); err != nil {
			d.Logger.Error("writing CSV export", "error", err)
		}
	}
}

// handleImportCSV creates contacts from an uploaded CSV. Expected columns:
// name, tier, telegram_handle; extra columns are ignored. Rows whose
// telegram handle already exists are skipped rather than duplicated.
func handleImportCSV(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err != nil {
			httpError(w, http.StatusBadRequest, "empty or unreadable CSV")
			return
		}
		col := map[string]int{}
		for i, name := range header {
			col[strings.ToLower(strings.TrimSpace(name))] = i
		}
		nameIdx, ok := col["name"]
		if !ok {
			httpError(w, http.StatusBadRequest, "CSV must have a name column")
			return
		}

		field := func(row []string, key string) string {
			idx, ok := col[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		var created, skipped int
		for line := 2; ; line++ {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				httpError(w, http.StatusBadRequest, fmt.Sprintf("line %d: %v", line, err))
				return
			}
			if nameIdx >= len(row) || strings.TrimSpace(row[nameIdx]) == "" {
				skipped++
				continue
			}

			handle := strings.TrimPrefix(field(row, "telegram_handle"), "@")
			if handle != "" {
				if _, err := d.Store.GetContactByTelegramHandle(handle); err == nil {
					skipped++
					continue
				}
			}

			tier, _ := strconv.Atoi(field(row, "tier"))
			c := storage.Contact{
				ID:             uuid.NewString(),
				Name:           strings.TrimSpace(row[nameIdx]),
				Tier:           tier,
				TelegramHandle: handle,
			}
			if err := d.Store.CreateContact(c); err != nil {
				httpError(w, http.StatusInternalServerError, fmt.Sprintf("line %d: %v", line, err))
				return
			}
			created++
		}

		respondJSON(w, http.StatusOK, map[string]int{"created": created, "skipped": skipped})
	}
}
