package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
	"github.com/noah-isme/crm-orders-api/pkg/export"
)

// Export formats accepted by the download endpoint.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

var exportHeaders = []string{
	"ID", "Name", "Surname", "Email", "Phone", "Age",
	"Course", "Course Format", "Course Type", "Status",
	"Sum", "Already Paid", "Group", "Created At", "Manager",
}

type exportOrderLister interface {
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
}

// ExportResult carries the rendered document and its download metadata.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the filtered order book into downloadable
// spreadsheets. The same filter contract as listing applies; pagination
// does not.
type ExportService struct {
	repo    exportOrderLister
	excel   *export.ExcelExporter
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(repo exportOrderLister, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:    repo,
		excel:   export.NewExcelExporter(),
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		metrics: metrics,
		logger:  logger,
	}
}

// Export renders every order matching the filter in the requested format.
func (s *ExportService) Export(ctx context.Context, filter models.OrderFilter, format string) (*ExportResult, error) {
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	filter.Unpaged = true
	orders, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load orders for export")
	}

	dataset := buildOrderDataset(orders)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case FormatXLSX:
		payload, err = s.excel.Render(dataset, "Orders")
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case FormatPDF:
		payload, err = s.pdf.Render(dataset, "Orders")
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	if s.metrics != nil {
		s.metrics.RecordExport(format)
	}
	s.logger.Info("orders exported", zap.String("format", format), zap.Int("rows", len(orders)))

	return &ExportResult{
		Filename:    fmt.Sprintf("orders_%s.%s", uuid.NewString(), format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func buildOrderDataset(orders []models.Order) export.Dataset {
	rows := make([]map[string]string, 0, len(orders))
	for _, o := range orders {
		status := ""
		if o.Status != nil {
			status = *o.Status
		}
		manager := ""
		if o.Manager != nil {
			manager = *o.Manager
		}
		rows = append(rows, map[string]string{
			"ID":            o.ID,
			"Name":          o.Name,
			"Surname":       o.Surname,
			"Email":         o.Email,
			"Phone":         o.Phone,
			"Age":           strconv.Itoa(o.Age),
			"Course":        o.Course,
			"Course Format": o.CourseFormat,
			"Course Type":   o.CourseType,
			"Status":        status,
			"Sum":           strconv.Itoa(o.Sum),
			"Already Paid":  strconv.Itoa(o.AlreadyPaid),
			"Group":         o.Group,
			"Created At":    o.CreatedAt.UTC().Format(time.RFC3339),
			"Manager":       manager,
		})
	}
	return export.Dataset{
		Headers:   exportHeaders,
		Rows:      rows,
		MinWidths: map[string]float64{"Created At": 20},
	}
}
