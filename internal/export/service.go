package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/interlink"
)

const (
	interlinkSheet = "Interlinks"
	summarySheet   = "Summary"
)

// Service is a tiny façade over the interlinking engine that produces XLSX bytes for exports.
type Service struct {
	interlinks *interlink.Service
	logger     *slog.Logger
}

func NewService(interlinks *interlink.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{interlinks: interlinks, logger: logger}
}

// ExportInterlinksXLSX ranks items (or the default corpus when items is empty)
// against keyword and returns the ranking as an XLSX workbook.
func (s *Service) ExportInterlinksXLSX(ctx context.Context, keyword string, items []entity.ContentItem, maxResults int) ([]byte, error) {
	start := time.Now()
	opps, err := s.interlinks.Find(ctx, keyword, items, maxResults)
	if err != nil {
		return nil, fmt.Errorf("rank interlinks: %w", err)
	}
	buf, err := InterlinksXLSX(keyword, opps, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"keyword", keyword,
		"rows", len(opps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// InterlinksXLSX renders a ranking: one row per opportunity in rank order, plus a
// summary sheet with the query.
func InterlinksXLSX(keyword string, opps []entity.InterlinkOpportunity, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet is renamed so the ranking opens first.
	if err := f.SetSheetName("Sheet1", interlinkSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(interlinkSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Rank",
		"Content ID",
		"Target Title",
		"Target URL",
		"Anchor Text",
		"Relevance",
		"Match Type",
		"Matched Keywords",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(interlinkSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(interlinkSheet, 1, 1, style)
	}

	for i, o := range opps {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(interlinkSheet, cell, v)
		}
		write(1, i+1)
		write(2, o.ContentID)
		write(3, o.TargetTitle)
		write(4, o.TargetURL)
		write(5, o.AnchorText)
		write(6, o.RelevanceScore)
		write(7, string(o.MatchType))
		write(8, strings.Join(o.MatchedKeywords, ", "))
	}

	_ = f.SetColWidth(interlinkSheet, "A", "A", 6)  // rank
	_ = f.SetColWidth(interlinkSheet, "B", "B", 18) // id
	_ = f.SetColWidth(interlinkSheet, "C", "C", 40) // title
	_ = f.SetColWidth(interlinkSheet, "D", "D", 60) // url
	_ = f.SetColWidth(interlinkSheet, "E", "E", 32) // anchor
	_ = f.SetColWidth(interlinkSheet, "F", "G", 12)
	_ = f.SetColWidth(interlinkSheet, "H", "H", 40)

	summary := [][2]any{
		{"Keyword", keyword},
		{"Opportunities", len(opps)},
		{"Generated At", generatedAt.Format(time.RFC3339)},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 16)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
