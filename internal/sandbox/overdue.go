package sandbox

import (
	"context"
	"fmt"

	"github.com/invoicely-dev/invoicely/internal/models"
)

// MarkOverdue flags sent invoices whose due date has passed. It returns the
// number of invoices changed.
func (s *Server) MarkOverdue(ctx context.Context) (int64, error) {
	today := s.config.Now().Format(dateLayout)

	result := s.db.WithContext(ctx).
		Model(&invoiceRecord{}).
		Where("status = ? AND due_date <> '' AND due_date < ?", string(models.InvoiceStatusSent), today).
		Update("status", string(models.InvoiceStatusOverdue))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info().
			Int64("count", result.RowsAffected).
			Str("as_of", today).
			Msg("Marked invoices overdue")
	} else {
		s.logger.Debug().Str("as_of", today).Msg("No overdue invoices")
	}

	return result.RowsAffected, nil
}
