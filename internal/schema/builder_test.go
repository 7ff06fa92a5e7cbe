package schema

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/pfbio/pfbex/internal/domain"
)

func testBuilder() *Builder {
	return NewBuilder(WithLogger(log.New(io.Discard)))
}

func familyTable() domain.TableDefinition {
	return domain.TableDefinition{
		Name: "family",
		Columns: []domain.ColumnDefinition{
			{Name: "kf_id", Type: domain.ColumnTypeString, PrimaryKey: true},
			{Name: "external_id", Type: domain.ColumnTypeText, Nullable: true},
		},
	}
}

func participantTable() domain.TableDefinition {
	return domain.TableDefinition{
		Name: "participant",
		Columns: []domain.ColumnDefinition{
			{Name: "kf_id", Type: domain.ColumnTypeString, PrimaryKey: true},
			{Name: "external_id", Type: domain.ColumnTypeText, Nullable: true},
			{Name: "family_id", Type: domain.ColumnTypeString, Nullable: true},
		},
		ForeignKeys: []domain.ForeignKeyDefinition{
			{Column: "family_id", TargetTable: "family", TargetColumn: "kf_id"},
		},
	}
}

func TestBuildSingleTableWithoutForeignKeys(t *testing.T) {
	graph, report, err := testBuilder().Build([]domain.TableDefinition{familyTable()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if graph.Len() != 3 {
		t.Fatalf("expected root, Metadata and family nodes, got %d", graph.Len())
	}
	nodes := graph.Nodes()
	if nodes[0].Name != domain.RootNodeName || nodes[1].Name != domain.MetadataNodeName {
		t.Fatalf("expected sentinels first, got %s, %s", nodes[0].Name, nodes[1].Name)
	}

	family, ok := graph.Node("family")
	if !ok {
		t.Fatalf("expected family node")
	}
	if len(family.Links) != 1 || family.Links[0].Destination != domain.RootNodeName {
		t.Errorf("expected only the root link, got %v", family.Links)
	}
	if family.Links[0].Multiplicity != domain.ManyToOne {
		t.Errorf("expected MANY_TO_ONE root link, got %s", family.Links[0].Multiplicity)
	}
	if len(family.Properties) != 1 || family.Properties[0].Name != "external_id" {
		t.Errorf("expected the primary key to stay out of properties, got %v", family.Properties)
	}
	if len(report.DefaultedLinks) != 0 {
		t.Errorf("expected no defaulted links, got %v", report.DefaultedLinks)
	}
}

func TestBuildDerivesLinksFromForeignKeys(t *testing.T) {
	graph, report, err := testBuilder().Build([]domain.TableDefinition{familyTable(), participantTable()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	participant, ok := graph.Node("participant")
	if !ok {
		t.Fatalf("expected participant node")
	}
	if len(participant.Links) != 2 {
		t.Fatalf("expected family and root links, got %v", participant.Links)
	}
	link := participant.Links[0]
	if link.Name != "family_id" || link.Destination != "family" {
		t.Errorf("expected link family_id -> family, got %s -> %s", link.Name, link.Destination)
	}
	if link.Multiplicity != domain.ManyToOne {
		t.Errorf("expected defaulted MANY_TO_ONE, got %s", link.Multiplicity)
	}
	if link.Required {
		t.Errorf("expected link from nullable column to be optional")
	}
	if participant.Links[1].Destination != domain.RootNodeName {
		t.Errorf("expected root link last, got %v", participant.Links[1])
	}

	// The foreign key carried no hint, so the default must be flagged.
	if len(report.DefaultedLinks) != 1 {
		t.Fatalf("expected 1 defaulted link, got %v", report.DefaultedLinks)
	}
	flagged := report.DefaultedLinks[0]
	if flagged.Table != "participant" || flagged.Column != "family_id" || flagged.Target != "family" {
		t.Errorf("unexpected defaulted link record: %+v", flagged)
	}

	// Foreign key columns do not surface as properties.
	if _, ok := participant.Property("family_id"); ok {
		t.Errorf("expected family_id to stay out of properties")
	}
}

func TestBuildHonorsExplicitCardinality(t *testing.T) {
	participant := participantTable()
	participant.ForeignKeys[0].Cardinality = domain.OneToOne

	graph, report, err := testBuilder().Build([]domain.TableDefinition{familyTable(), participant})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node, _ := graph.Node("participant")
	if node.Links[0].Multiplicity != domain.OneToOne {
		t.Errorf("expected ONE_TO_ONE, got %s", node.Links[0].Multiplicity)
	}
	if len(report.DefaultedLinks) != 0 {
		t.Errorf("expected no defaulted links with explicit hint, got %v", report.DefaultedLinks)
	}
}

func TestBuildMarksRequiredLinks(t *testing.T) {
	participant := participantTable()
	for i := range participant.Columns {
		if participant.Columns[i].Name == "family_id" {
			participant.Columns[i].Nullable = false
		}
	}

	graph, _, err := testBuilder().Build([]domain.TableDefinition{familyTable(), participant})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node, _ := graph.Node("participant")
	if !node.Links[0].Required {
		t.Errorf("expected link from non-nullable column to be required")
	}
}

func TestBuildRejectsDuplicateNormalizedNames(t *testing.T) {
	tables := []domain.TableDefinition{
		{Name: "ParticipantStudy", Columns: []domain.ColumnDefinition{{Name: "id", Type: domain.ColumnTypeString, PrimaryKey: true}}},
		{Name: "participant_study", Columns: []domain.ColumnDefinition{{Name: "id", Type: domain.ColumnTypeString, PrimaryKey: true}}},
	}

	_, _, err := testBuilder().Build(tables)
	if err == nil {
		t.Fatalf("expected duplicate node type error")
	}
	var dup domain.DuplicateNodeTypeError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNodeTypeError, got %v", err)
	}
	if dup.Name != "participant_study" {
		t.Errorf("expected normalized name participant_study, got %s", dup.Name)
	}
	if len(dup.Tables) != 2 {
		t.Errorf("expected both source tables in the error, got %v", dup.Tables)
	}
}

func TestBuildRejectsDanglingForeignKey(t *testing.T) {
	_, _, err := testBuilder().Build([]domain.TableDefinition{participantTable()})
	if err == nil {
		t.Fatalf("expected dangling foreign key error")
	}
	var dangling domain.DanglingForeignKeyError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected DanglingForeignKeyError, got %v", err)
	}
	if dangling.Target != "family" {
		t.Errorf("expected error to name the missing table, got %+v", dangling)
	}
}

func TestBuildRejectsUnsupportedColumnType(t *testing.T) {
	table := domain.TableDefinition{
		Name: "sample",
		Columns: []domain.ColumnDefinition{
			{Name: "kf_id", Type: domain.ColumnTypeString, PrimaryKey: true},
			{Name: "shape", Type: "polygon"},
		},
	}

	_, _, err := testBuilder().Build([]domain.TableDefinition{table})
	if err == nil {
		t.Fatalf("expected unsupported type error")
	}
	var unsupported domain.UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
}

func TestBuildRejectsSentinelCollision(t *testing.T) {
	table := domain.TableDefinition{
		Name:    "Metadata",
		Columns: []domain.ColumnDefinition{{Name: "id", Type: domain.ColumnTypeString, PrimaryKey: true}},
	}

	if _, _, err := testBuilder().Build([]domain.TableDefinition{table}); err == nil {
		t.Fatalf("expected error for table colliding with sentinel name")
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	tables := []domain.TableDefinition{familyTable(), participantTable()}

	first, _, err := testBuilder().Build(tables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := testBuilder().Build(tables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first.Nodes(), second.Nodes()) {
		t.Errorf("expected identical schemas from identical input")
	}
}
