package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"promowatch/internal/jobs"
	"promowatch/internal/models"
	"promowatch/internal/rules"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []string{
	"url", "verdict", "verdict_reason", "ok", "has_label",
	"seller_ok", "seller_name", "label_text", "error",
}

// ExportHandler serves job results as CSV and XLSX downloads.
type ExportHandler struct {
	store *jobs.Store
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(store *jobs.Store) *ExportHandler {
	return &ExportHandler{store: store}
}

// ResultsCSV streams the job's results. A job with no results yet exports its
// pending URLs as rows with verdict "pending".
func (h *ExportHandler) ResultsCSV(c echo.Context) error {
	id := c.Param("id")
	snap, ok := h.store.Snapshot(id)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "Задача не найдена."})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(exportHeader)
	for _, row := range exportRows(snap.Results, snap.PendingURLs) {
		_ = w.Write(row)
	}
	w.Flush()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=ozon_job_%s.csv", id))
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

// ResultsXLSX exports the results as a spreadsheet. The optional "verdict"
// query parameter keeps only the listed verdicts (comma-separated).
func (h *ExportHandler) ResultsXLSX(c echo.Context) error {
	snap, ok := h.store.Snapshot(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "Задача не найдена."})
	}

	results := snap.Results
	if filter := c.QueryParam("verdict"); filter != "" {
		keep := make(map[string]struct{})
		for _, v := range strings.Split(filter, ",") {
			if v = strings.TrimSpace(v); v != "" {
				keep[v] = struct{}{}
			}
		}
		var filtered []models.Result
		for _, item := range results {
			verdict := item.Verdict
			if verdict == "" {
				verdict = rules.VerdictUnknown
			}
			if _, ok := keep[string(verdict)]; ok {
				filtered = append(filtered, item)
			}
		}
		results = filtered
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Results"
	f.SetSheetName("Sheet1", sheet)
	_ = f.SetSheetRow(sheet, "A1", &exportHeader)
	for i, row := range exportRows(results, snap.PendingURLs) {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		_ = f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &cells)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": err.Error()})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=ozon_job_%s.xlsx", exportSuffix()))
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

// SearchCSV exports the raw collected URL list, one URL per line.
func (h *ExportHandler) SearchCSV(c echo.Context) error {
	id := c.Param("id")
	urls, ok := h.store.SearchURLs(id)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "Задача не найдена."})
	}

	lines := append([]string{"url"}, urls...)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=ozon_search_%s.csv", id))
	return c.Blob(http.StatusOK, "text/csv", []byte(strings.Join(lines, "\n")))
}

// SearchXLSX exports the raw collected URL list as a spreadsheet.
func (h *ExportHandler) SearchXLSX(c echo.Context) error {
	urls, ok := h.store.SearchURLs(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "Задача не найдена."})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Search"
	f.SetSheetName("Sheet1", sheet)
	_ = f.SetCellValue(sheet, "A1", "url")
	for i, u := range urls {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), u)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": err.Error()})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=ozon_search_%s.xlsx", exportSuffix()))
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

// exportRows renders results (or pending URLs when there are none) as string
// rows in the export column order.
func exportRows(results []models.Result, pending []string) [][]string {
	var rows [][]string
	if len(results) == 0 {
		for _, u := range pending {
			rows = append(rows, []string{u, string(rules.VerdictPending), "", "", "", "", "", "", ""})
		}
		return rows
	}
	for _, item := range results {
		sellerOK := ""
		if item.SellerOK != nil {
			sellerOK = strconv.FormatBool(*item.SellerOK)
		}
		rows = append(rows, []string{
			item.URL,
			string(item.Verdict),
			item.VerdictReason,
			strconv.FormatBool(item.OK),
			strconv.FormatBool(item.HasLabel),
			sellerOK,
			item.SellerName,
			item.LabelText,
			item.Error,
		})
	}
	return rows
}

// exportSuffix is the legacy minute-hour-day-month-year file tag.
func exportSuffix() string {
	return time.Now().Format("041502012006")
}
