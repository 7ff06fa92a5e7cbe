package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/pfbio/pfbex/internal/domain"
	"github.com/pfbio/pfbex/internal/source"
)

func familyTable() domain.TableDefinition {
	return domain.TableDefinition{
		Name: "family",
		Columns: []domain.ColumnDefinition{
			{Name: "kf_id", Type: domain.ColumnTypeText, PrimaryKey: true},
			{Name: "external_id", Type: domain.ColumnTypeText, Nullable: true},
		},
	}
}

func participantTable() domain.TableDefinition {
	return domain.TableDefinition{
		Name: "participant",
		Columns: []domain.ColumnDefinition{
			{Name: "kf_id", Type: domain.ColumnTypeText, PrimaryKey: true},
			{Name: "external_id", Type: domain.ColumnTypeText, Nullable: true},
			{Name: "family_id", Type: domain.ColumnTypeText, Nullable: true},
		},
		ForeignKeys: []domain.ForeignKeyDefinition{
			{Column: "family_id", TargetTable: "family", TargetColumn: "kf_id", Cardinality: domain.ManyToOne},
		},
	}
}

func testService(opts ...Option) *Service {
	base := []Option{WithLogger(log.New(io.Discard)), WithTableParallelism(1)}
	return NewService(append(base, opts...)...)
}

type wireEntity struct {
	ID        *string          `json:"id"`
	Name      string           `json:"name"`
	Object    map[string]any   `json:"object"`
	Relations []map[string]any `json:"relations"`
}

func decodeEntities(t *testing.T, data []byte) []wireEntity {
	t.Helper()
	var entities []wireEntity
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entity wireEntity
		if err := json.Unmarshal(line, &entity); err != nil {
			t.Fatalf("decoding entity line %q: %v", line, err)
		}
		entities = append(entities, entity)
	}
	return entities
}

func TestRunExportsFamilyAndParticipant(t *testing.T) {
	provider := source.NewStatic().
		Add("family", source.Row{"kf_id": "FA_F1", "external_id": "fam1"}).
		Add("participant", source.Row{"kf_id": "PT_01", "external_id": "Romagnol_Dianil", "family_id": "FA_F1"})

	var schemaBuf, entityBuf bytes.Buffer
	sink := NewJSONSink(&schemaBuf, &entityBuf)

	summary, err := testService().Run(context.Background(), []domain.TableDefinition{familyTable(), participantTable()}, provider, sink)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.EntitiesEmitted != 2 || summary.RowsSkipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Tables["family"].Emitted != 1 || summary.Tables["participant"].Emitted != 1 {
		t.Fatalf("unexpected table counts: %+v", summary.Tables)
	}
	if summary.CompletedAt.Before(summary.StartedAt) {
		t.Fatalf("expected completion after start, got %+v", summary)
	}

	var document map[string]any
	if err := json.Unmarshal(schemaBuf.Bytes(), &document); err != nil {
		t.Fatalf("decoding schema document: %v", err)
	}
	if document["name"] != "Entity" || document["type"] != "record" {
		t.Fatalf("unexpected document root: %v", document)
	}

	entities := decodeEntities(t, entityBuf.Bytes())
	if len(entities) != 3 {
		t.Fatalf("expected metadata plus 2 entities, got %d", len(entities))
	}

	metadata := entities[0]
	if metadata.ID != nil || metadata.Name != "Metadata" {
		t.Fatalf("expected the metadata entity first, got %+v", metadata)
	}
	if _, ok := metadata.Object["nodes"]; !ok {
		t.Fatalf("expected node descriptors in metadata object, got %v", metadata.Object)
	}

	family := entities[1]
	if family.ID == nil || *family.ID != "FA_F1" || family.Name != "family" {
		t.Fatalf("unexpected family entity: %+v", family)
	}
	if family.Object["external_id"] != "fam1" {
		t.Fatalf("unexpected family object: %v", family.Object)
	}
	if len(family.Relations) != 1 || family.Relations[0]["dst_name"] != "root" {
		t.Fatalf("expected only the root relation, got %v", family.Relations)
	}

	participant := entities[2]
	if participant.ID == nil || *participant.ID != "PT_01" || participant.Name != "participant" {
		t.Fatalf("unexpected participant entity: %+v", participant)
	}
	if participant.Object["external_id"] != "Romagnol_Dianil" {
		t.Fatalf("unexpected participant object: %v", participant.Object)
	}
	if _, ok := participant.Object["family_id"]; ok {
		t.Fatalf("expected foreign key out of the object, got %v", participant.Object)
	}
	if len(participant.Relations) != 2 {
		t.Fatalf("expected family and root relations, got %v", participant.Relations)
	}
	if participant.Relations[0]["dst_id"] != "FA_F1" || participant.Relations[0]["dst_name"] != "family" {
		t.Fatalf("unexpected family relation: %v", participant.Relations[0])
	}
	if participant.Relations[1]["dst_id"] != "root" || participant.Relations[1]["dst_name"] != "root" {
		t.Fatalf("unexpected root relation: %v", participant.Relations[1])
	}
}

func TestRunSkipsRowWithMissingRequiredLink(t *testing.T) {
	participant := participantTable()
	participant.Columns[2].Nullable = false

	provider := source.NewStatic().
		Add("family", source.Row{"kf_id": "FA_F1", "external_id": "fam1"}).
		Add("participant", source.Row{"kf_id": "PT_01", "external_id": "p1", "family_id": nil})

	summary, err := testService().Run(context.Background(), []domain.TableDefinition{familyTable(), participant}, provider, DiscardSink{})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.EntitiesEmitted != 1 {
		t.Fatalf("expected the family entity only, got %d", summary.EntitiesEmitted)
	}
	if summary.RowsSkipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d", summary.RowsSkipped)
	}

	failures := summary.FailuresFor("participant")
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure for participant, got %v", summary.Failures)
	}
	failure := failures[0]
	if failure.Kind != domain.FailureMissingRequiredLink {
		t.Fatalf("expected missing_required_link, got %s", failure.Kind)
	}
	if failure.RowID == nil || *failure.RowID != "PT_01" {
		t.Fatalf("expected row id PT_01, got %v", failure.RowID)
	}
	if summary.Tables["participant"].Skipped != 1 || summary.Tables["participant"].Emitted != 0 {
		t.Fatalf("unexpected participant counts: %+v", summary.Tables["participant"])
	}
}

func TestRunSkipsRowWithMissingPrimaryKey(t *testing.T) {
	provider := source.NewStatic().
		Add("family",
			source.Row{"kf_id": "FA_F1", "external_id": "fam1"},
			source.Row{"external_id": "fam2"},
		)

	summary, err := testService().Run(context.Background(), []domain.TableDefinition{familyTable()}, provider, DiscardSink{})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.EntitiesEmitted != 1 || summary.RowsSkipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Failures[0].Kind != domain.FailureMissingPrimaryKey {
		t.Fatalf("expected missing_primary_key, got %s", summary.Failures[0].Kind)
	}
	if summary.Failures[0].RowNumber != 2 {
		t.Fatalf("expected failure on row 2, got %d", summary.Failures[0].RowNumber)
	}
}

func TestRunRecordsValidationFailure(t *testing.T) {
	family := familyTable()
	family.Columns[1].Nullable = false

	provider := source.NewStatic().
		Add("family",
			source.Row{"kf_id": "FA_F1", "external_id": "fam1"},
			source.Row{"kf_id": "FA_F2"},
		)

	summary, err := testService().Run(context.Background(), []domain.TableDefinition{family}, provider, DiscardSink{})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.EntitiesEmitted != 1 || summary.RowsSkipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.ValidationViolations != 1 {
		t.Fatalf("expected 1 validation violation, got %d", summary.ValidationViolations)
	}
	if summary.Failures[0].Kind != domain.FailureValidation {
		t.Fatalf("expected validation failure, got %s", summary.Failures[0].Kind)
	}
	if !strings.Contains(summary.Failures[0].Message, "external_id") {
		t.Fatalf("expected message naming the property, got %q", summary.Failures[0].Message)
	}
}

func TestRunValidationCanBeDisabled(t *testing.T) {
	family := familyTable()
	family.Columns[1].Nullable = false

	provider := source.NewStatic().
		Add("family", source.Row{"kf_id": "FA_F2"})

	summary, err := testService(WithValidation(false)).Run(context.Background(), []domain.TableDefinition{family}, provider, DiscardSink{})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if summary.EntitiesEmitted != 1 || summary.ValidationViolations != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunAbortsPastFailureThreshold(t *testing.T) {
	provider := source.NewStatic().
		Add("family",
			source.Row{"external_id": "one"},
			source.Row{"external_id": "two"},
			source.Row{"kf_id": "FA_F1"},
		)

	summary, err := testService(WithFailureThreshold(1)).Run(context.Background(), []domain.TableDefinition{familyTable()}, provider, DiscardSink{})
	if err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("expected threshold error, got %v", err)
	}
	if summary.RowsSkipped != 2 {
		t.Fatalf("expected 2 skipped rows before aborting, got %d", summary.RowsSkipped)
	}
}

func TestRunFailsWhenNothingEmittedAndRowsFailed(t *testing.T) {
	provider := source.NewStatic().
		Add("family", source.Row{"external_id": "fam1"})

	_, err := testService().Run(context.Background(), []domain.TableDefinition{familyTable()}, provider, DiscardSink{})
	if err == nil || !strings.Contains(err.Error(), "no entities emitted") {
		t.Fatalf("expected zero-entity failure, got %v", err)
	}
}

func TestRunEmptyTablesSucceed(t *testing.T) {
	provider := source.NewStatic()

	summary, err := testService().Run(context.Background(), []domain.TableDefinition{familyTable()}, provider, DiscardSink{})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if summary.EntitiesEmitted != 0 || len(summary.Failures) != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunSchemaErrorIsFatal(t *testing.T) {
	var schemaBuf, entityBuf bytes.Buffer
	sink := NewJSONSink(&schemaBuf, &entityBuf)

	tables := []domain.TableDefinition{familyTable(), familyTable()}
	_, err := testService().Run(context.Background(), tables, source.NewStatic(), sink)

	var dupErr domain.DuplicateNodeTypeError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected duplicate node type error, got %v", err)
	}
	if entityBuf.Len() != 0 {
		t.Fatalf("expected no entities written, got %q", entityBuf.String())
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	provider := source.NewStatic().
		Add("family", source.Row{"kf_id": "FA_F1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testService().Run(ctx, []domain.TableDefinition{familyTable()}, provider, DiscardSink{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunMetadataPrecedesEntitiesAcrossTables(t *testing.T) {
	provider := source.NewStatic().
		Add("family", source.Row{"kf_id": "FA_F1"}).
		Add("participant", source.Row{"kf_id": "PT_01"})

	var schemaBuf, entityBuf bytes.Buffer
	sink := NewJSONSink(&schemaBuf, &entityBuf)

	service := testService(WithTableParallelism(2))
	if _, err := service.Run(context.Background(), []domain.TableDefinition{familyTable(), participantTable()}, provider, sink); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	entities := decodeEntities(t, entityBuf.Bytes())
	if len(entities) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(entities))
	}
	if entities[0].Name != "Metadata" {
		t.Fatalf("expected the metadata entity first, got %+v", entities[0])
	}
	for _, entity := range entities[1:] {
		if entity.Name == "Metadata" {
			t.Fatalf("expected a single metadata entity, got %v", entities)
		}
	}
}
