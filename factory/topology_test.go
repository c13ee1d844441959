package factory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const sampleDiagram = `{
  "areas": [{"code": "mine", "name": "Mine Site"}],
  "nodes": [
    {"id": "reservoir", "label": "Main Reservoir", "area": "mine", "type": "dam", "x": 10, "y": 20},
    {"id": "plant", "label": "Process Plant", "area": "mine", "type": "plant", "x": 120, "y": 20}
  ],
  "edges": [
    {"from": "reservoir", "to": "plant", "flow_type": "clean",
     "excel_mapping": {"sheet": "Mine Site", "column": "reservoir__TO__plant", "enabled": true}},
    {"from": "plant", "to": "plant", "flow_type": "recirculation"}
  ],
  "inflows": [
    {"into": "reservoir", "kind": "borehole", "name": "Borehole field"}
  ],
  "outflows": [
    {"from": "plant", "kind": "mining_consumption"}
  ]
}`

func TestBuildFromDiagram(t *testing.T) {
	// GIVEN a diagram document with two nodes, a mapped edge, a
	// recirculation self-loop, and boundary edges
	var d Diagram
	if err := json.Unmarshal([]byte(sampleDiagram), &d); err != nil {
		t.Fatalf("parse sample: %v", err)
	}

	// WHEN the factory builds it
	res, err := Build(d)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// THEN the graph holds every element
	if got := len(res.Graph.Connections()); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
	if got := len(res.Graph.InflowSources()); got != 1 {
		t.Fatalf("expected 1 inflow source, got %d", got)
	}
	if got := len(res.Graph.OutflowDestinations()); got != 1 {
		t.Fatalf("expected 1 outflow destination, got %d", got)
	}

	// AND the excel mapping is registered under the derived flow id
	mp, ok := res.Mappings.Enabled("reservoir__TO__plant")
	if !ok {
		t.Fatal("expected enabled mapping for reservoir__TO__plant")
	}
	if mp.Target.Sheet != "Mine Site" || mp.Target.Column != "reservoir__TO__plant" {
		t.Fatalf("unexpected mapping target %v", mp.Target)
	}

	// AND the recirculation self-loop raised no validation errors
	for _, is := range res.Issues {
		if is.Severity == "error" {
			t.Fatalf("unexpected validation error: %v", is)
		}
	}
}

func TestBuildRejectsUnknownNodeReference(t *testing.T) {
	var d Diagram
	if err := json.Unmarshal([]byte(sampleDiagram), &d); err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	d.Edges = append(d.Edges, DiagramEdge{From: "reservoir", To: "ghost", FlowType: "clean"})

	if _, err := Build(d); err == nil {
		t.Fatal("expected build failure for edge to unknown node")
	}
}

func TestBuildRejectsUnknownFlowType(t *testing.T) {
	var d Diagram
	if err := json.Unmarshal([]byte(sampleDiagram), &d); err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	d.Edges[0].FlowType = "sideways"

	if _, err := Build(d); err == nil {
		t.Fatal("expected build failure for unknown flow type")
	}
}

func TestBuildSurfacesDuplicateEdgesAsIssues(t *testing.T) {
	// Documents edited by hand can carry the same edge twice. The build
	// must succeed and report the collision rather than silently drop it.
	var d Diagram
	if err := json.Unmarshal([]byte(sampleDiagram), &d); err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	dup := d.Edges[0]
	dup.ExcelMapping = nil
	d.Edges = append(d.Edges, dup)

	res, err := Build(d)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	found := false
	for _, is := range res.Issues {
		if is.Code == "duplicate_connection" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a duplicate_connection issue")
	}
	if got := len(res.Graph.DetectDuplicates()); got != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", got)
	}
}

func TestLoadDiagramFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagram.json")
	if err := os.WriteFile(path, []byte(sampleDiagram), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	d, err := LoadDiagram(path)
	if err != nil {
		t.Fatalf("LoadDiagram: %v", err)
	}
	if len(d.Nodes) != 2 || len(d.Edges) != 2 {
		t.Fatalf("unexpected diagram shape: %d nodes, %d edges", len(d.Nodes), len(d.Edges))
	}

	if _, err := LoadDiagram(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
