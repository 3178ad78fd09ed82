package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// Column layout of the TFEX trade summary workbook.
var tfexExportColumns = []string{
	"date",
	"SETopen", "SEThigh", "SETlow", "SETclose",
	"FundValNet", "ForeignValNet", "CustomerValNet",
	"FundValNetSum", "ForeignValNetSum", "CustomerValNetSum",
}

// ExportTFEXTradeSummary serves the live-augmented TFEX summary as an xlsx
// workbook.
func (h *APIHandler) ExportTFEXTradeSummary(c *gin.Context) {
	start, end, err := h.dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "FAILURE", "message": err.Error()})
		return
	}
	records, err := h.summary.TFEXLiveSummary(c.Request.Context(), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]any, len(tfexExportColumns))
	for i, col := range tfexExportColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		h.respondError(c, err)
		return
	}
	for i, record := range records {
		row := make([]any, len(tfexExportColumns))
		for j, col := range tfexExportColumns {
			if v, ok := record[col]; ok {
				row[j] = v
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			h.respondError(c, err)
			return
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		h.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("tfex-trade-summary-%s-%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
