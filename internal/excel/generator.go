package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/jobshare/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(view model.ChainView) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	sheet := "Chain"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := g.writeChain(file, sheet, view); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeChain(file *excelize.File, sheet string, view model.ChainView) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Job number")
	set("B1", view.JobNumber)
	set("A2", "Zip")
	set("B2", view.Zip)
	set("A3", "Status")
	set("B3", string(view.Status))
	set("A4", "Your level")
	set("B4", view.ViewerLevel)
	set("A5", "Generated")
	set("B5", formatDateTime(view.GeneratedAt))

	tableRow := 7
	headers := []string{
		"Level",
		"Company",
		"Sees client as",
		"Invoice amount",
		"Auto assigned",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, tableRow)
		if err != nil {
			return err
		}
		set(cell, header)
	}

	for i, link := range view.Links {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), link.Level)
		set(fmt.Sprintf("B%d", row), link.CompanyName)
		set(fmt.Sprintf("C%d", row), link.SeesClientAs)
		set(fmt.Sprintf("D%d", row), formatAmount(link.InvoiceAmount))
		set(fmt.Sprintf("E%d", row), formatBool(link.AutoAssigned))
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "C", 36)
	_ = file.SetColWidth(sheet, "D", "E", 16)
	return nil
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatAmount(value float64) string {
	if value == 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", value)
}

func formatBool(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
