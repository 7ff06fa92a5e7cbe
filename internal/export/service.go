package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pfbio/pfbex/internal/domain"
	"github.com/pfbio/pfbex/internal/schema"
	"github.com/pfbio/pfbex/internal/source"
	"github.com/pfbio/pfbex/internal/transform"
	"github.com/pfbio/pfbex/pkg/validator"
)

// Service runs one export: build the graph schema from the table
// definitions, emit the schema document and the Metadata entity, then
// stream every table's rows through the transformer into the sink.
type Service struct {
	rootSentinel     string
	namespace        string
	failureThreshold int
	parallelism      int
	validate         bool
	now              func() time.Time
	logger           *log.Logger
}

type Option func(*Service)

// WithRootSentinel overrides the id of the root anchor every entity links to.
func WithRootSentinel(id string) Option {
	return func(s *Service) {
		if strings.TrimSpace(id) != "" {
			s.rootSentinel = id
		}
	}
}

// WithNamespace overrides the namespace of the rendered schema document.
func WithNamespace(namespace string) Option {
	return func(s *Service) {
		if strings.TrimSpace(namespace) != "" {
			s.namespace = namespace
		}
	}
}

// WithFailureThreshold caps the number of skipped rows tolerated before the
// run aborts. Zero means unlimited.
func WithFailureThreshold(limit int) Option {
	return func(s *Service) {
		if limit >= 0 {
			s.failureThreshold = limit
		}
	}
}

// WithTableParallelism bounds how many tables stream concurrently.
func WithTableParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithValidation toggles per-entity validation against the graph schema.
func WithValidation(enabled bool) Option {
	return func(s *Service) {
		s.validate = enabled
	}
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an export service with the default policy: unlimited
// failures, four concurrent tables, validation on.
func NewService(opts ...Option) *Service {
	service := &Service{
		rootSentinel: transform.DefaultRootSentinel,
		namespace:    schema.DefaultDocumentNamespace,
		parallelism:  4,
		validate:     true,
		now:          time.Now,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Run executes one export over the given tables. The schema document and the
// Metadata entity reach the sink before any row entity; row entities follow
// in no particular cross-table order. Row-level failures skip the offending
// row and are reported in the summary. The returned summary is populated
// even when the run ends in an error.
func (s *Service) Run(ctx context.Context, tables []domain.TableDefinition, provider source.Provider, sink Sink) (domain.Summary, error) {
	summary := domain.Summary{
		RunID:     uuid.New(),
		Tables:    make(map[string]domain.TableCount, len(tables)),
		Failures:  []domain.RowFailure{},
		StartedAt: s.now(),
	}

	builder := schema.NewBuilder(schema.WithLogger(s.logger))
	graph, _, err := builder.Build(tables)
	if err != nil {
		summary.CompletedAt = s.now()
		return summary, fmt.Errorf("building graph schema: %w", err)
	}

	document, err := schema.RenderDocument(graph, s.namespace)
	if err != nil {
		summary.CompletedAt = s.now()
		return summary, fmt.Errorf("rendering schema document: %w", err)
	}
	if err := sink.WriteSchema(document); err != nil {
		summary.CompletedAt = s.now()
		return summary, fmt.Errorf("writing schema document: %w", err)
	}

	transformer := transform.NewTransformer(graph, transform.WithRootSentinel(s.rootSentinel))

	// No table worker starts until the Metadata entity is in the sink.
	if err := sink.WriteEntity(transformer.MetadataEntity()); err != nil {
		summary.CompletedAt = s.now()
		return summary, fmt.Errorf("writing metadata entity: %w", err)
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelism)

	for _, table := range tables {
		table := table
		group.Go(func() error {
			return s.exportTable(groupCtx, table, provider, transformer, graph, sink, &mu, &summary)
		})
	}

	runErr := group.Wait()
	summary.CompletedAt = s.now()
	if runErr != nil {
		return summary, runErr
	}

	if summary.EntitiesEmitted == 0 && len(summary.Failures) > 0 {
		return summary, fmt.Errorf("no entities emitted after %d failed rows", len(summary.Failures))
	}

	s.logger.Info("export complete",
		"run_id", summary.RunID,
		"entities", summary.EntitiesEmitted,
		"skipped", summary.RowsSkipped,
		"violations", summary.ValidationViolations,
		"duration", summary.Duration(),
	)
	return summary, nil
}

func (s *Service) exportTable(
	ctx context.Context,
	table domain.TableDefinition,
	provider source.Provider,
	transformer *transform.Transformer,
	graph domain.GraphSchema,
	sink Sink,
	mu *sync.Mutex,
	summary *domain.Summary,
) error {
	rows, err := provider.Rows(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("opening rows for table %s: %w", table.Name, err)
	}
	defer rows.Close()

	var count domain.TableCount
	defer func() {
		mu.Lock()
		summary.Tables[table.Name] = count
		mu.Unlock()
	}()

	rowNumber := 0
	for {
		row, err := rows.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading table %s: %w", table.Name, err)
		}
		rowNumber++
		count.Rows++

		entity, err := transformer.TransformRow(table, row)
		if err != nil {
			if !domain.IsRowError(err) {
				return fmt.Errorf("table %s row %d: %w", table.Name, rowNumber, err)
			}
			if stopErr := s.recordFailure(mu, summary, &count, table, rowNumber, row, err); stopErr != nil {
				return stopErr
			}
			continue
		}

		if s.validate {
			if result := validator.ValidateEntity(entity, graph); !result.Valid {
				mu.Lock()
				summary.ValidationViolations += len(result.Violations)
				mu.Unlock()
				if stopErr := s.recordFailure(mu, summary, &count, table, rowNumber, row, errors.New(violationMessage(result))); stopErr != nil {
					return stopErr
				}
				continue
			}
		}

		mu.Lock()
		writeErr := sink.WriteEntity(entity)
		if writeErr == nil {
			summary.EntitiesEmitted++
			count.Emitted++
		}
		mu.Unlock()
		if writeErr != nil {
			return fmt.Errorf("writing entity for table %s: %w", table.Name, writeErr)
		}
	}

	s.logger.Debug("table exported",
		"table", table.Name,
		"rows", count.Rows,
		"emitted", count.Emitted,
		"skipped", count.Skipped,
	)
	return nil
}

func (s *Service) recordFailure(
	mu *sync.Mutex,
	summary *domain.Summary,
	count *domain.TableCount,
	table domain.TableDefinition,
	rowNumber int,
	row source.Row,
	cause error,
) error {
	failure := domain.RowFailure{
		ID:         uuid.New(),
		Table:      table.Name,
		RowNumber:  rowNumber,
		RowID:      rowIdentifier(table, row),
		Kind:       domain.ClassifyFailure(cause),
		Message:    cause.Error(),
		OccurredAt: s.now(),
	}
	count.Skipped++

	mu.Lock()
	summary.RowsSkipped++
	summary.Failures = append(summary.Failures, failure)
	failures := len(summary.Failures)
	mu.Unlock()

	s.logger.Warn("row skipped",
		"table", table.Name,
		"row", rowNumber,
		"kind", failure.Kind,
		"error", cause,
	)

	if s.failureThreshold > 0 && failures > s.failureThreshold {
		return fmt.Errorf("aborting after %d failed rows (threshold %d)", failures, s.failureThreshold)
	}
	return nil
}

// rowIdentifier extracts the primary-key value of a failed row when it has
// a usable one.
func rowIdentifier(table domain.TableDefinition, row source.Row) *string {
	pk, ok := table.PrimaryKey()
	if !ok {
		return nil
	}
	value, ok := row[pk.Name]
	if !ok || value == nil {
		return nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
		return &s
	}
	return nil
}

func violationMessage(result validator.ValidationResult) string {
	parts := make([]string, 0, len(result.Violations))
	for _, violation := range result.Violations {
		parts = append(parts, violation.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
