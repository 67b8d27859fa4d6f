package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These indexes enable efficient full-text search on OCR output and
// segmented answer text, e.g. for a reviewer searching prior submissions.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_ocr_page_results_extracted_text_gin
		ON ocr_page_results USING gin(to_tsvector('english', COALESCE(extracted_text, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create extracted_text GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_script_answers_answer_text_gin
		ON script_answers USING gin(to_tsvector('english', answer_text))`)
	if err != nil {
		return fmt.Errorf("failed to create answer_text GIN index: %w", err)
	}

	return nil
}
