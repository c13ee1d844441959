/*
Package factory builds a flow topology and its volume mappings from the
JSON diagram definition.

PURPOSE:
  The site's flow diagram lives in a JSON document owned by maintenance
  tooling: nodes with position/label metadata, edges with flow types and
  optional excel mappings. The factory converts that document into a
  topology.Graph plus a source.MappingSet, validating as it goes. The
  calculation core reads the document; it never writes it back.

DOCUMENT SHAPE:
  nodes: {id, label, area, type, group, x, y}
  edges: {from, to, flow_type, subcategory, bidirectional,
          excel_mapping: {sheet, column, enabled}}
  inflows:  {into, kind, name}
  outflows: {from, kind, name}

DUPLICATES:
  Edges load through Graph.LoadConnection so a malformed document's
  duplicate signatures survive into the graph where DetectDuplicates can
  surface them - the factory reports them in the build result instead of
  silently collapsing.
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hydrova/waterbalance-engine/source"
	"github.com/hydrova/waterbalance-engine/topology"
)

// =============================================================================
// DIAGRAM DOCUMENT
// =============================================================================

type DiagramNode struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Area  string  `json:"area"`
	Type  string  `json:"type"`
	Group bool    `json:"group,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type ExcelMapping struct {
	Sheet   string `json:"sheet"`
	Column  string `json:"column"`
	Enabled bool   `json:"enabled"`
}

type DiagramEdge struct {
	From          string        `json:"from"`
	To            string        `json:"to"`
	FlowType      string        `json:"flow_type"`
	Subcategory   string        `json:"subcategory,omitempty"`
	Bidirectional bool          `json:"is_bidirectional,omitempty"`
	ExcelMapping  *ExcelMapping `json:"excel_mapping,omitempty"`
}

type DiagramBoundary struct {
	Into string `json:"into,omitempty"`
	From string `json:"from,omitempty"`
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

type Diagram struct {
	Areas    []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"areas"`
	Nodes    []DiagramNode     `json:"nodes"`
	Edges    []DiagramEdge     `json:"edges"`
	Inflows  []DiagramBoundary `json:"inflows"`
	Outflows []DiagramBoundary `json:"outflows"`
}

// LoadDiagram reads and parses a diagram file.
func LoadDiagram(path string) (Diagram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Diagram{}, fmt.Errorf("read diagram: %w", err)
	}
	var d Diagram
	if err := json.Unmarshal(data, &d); err != nil {
		return Diagram{}, fmt.Errorf("parse diagram: %w", err)
	}
	return d, nil
}

// =============================================================================
// BUILD
// =============================================================================

// BuildResult carries what the build found alongside the artifacts.
type BuildResult struct {
	Graph    *topology.Graph
	Mappings *source.MappingSet
	Issues   []topology.Issue
}

// Build converts a diagram into a graph and mapping set. Structural errors
// (unknown node references, bad flow types) fail the build; topology
// validation findings are reported in Issues without failing.
func Build(d Diagram) (BuildResult, error) {
	g := topology.NewGraph()
	nodeArea := make(map[string]topology.AreaCode)

	for _, a := range d.Areas {
		g.AddArea(topology.Area{Code: topology.AreaCode(a.Code), Name: a.Name})
	}

	for _, n := range d.Nodes {
		area := topology.AreaCode(n.Area)
		s := topology.Structure{
			Area:    area,
			Code:    topology.StructureCode(n.ID),
			Name:    n.Label,
			Type:    topology.StructureType(n.Type),
			IsGroup: n.Group,
		}
		if err := g.AddStructure(s); err != nil {
			return BuildResult{}, fmt.Errorf("node %q: %w", n.ID, err)
		}
		nodeArea[n.ID] = area
	}

	mappings := source.NewMappingSet()
	for _, e := range d.Edges {
		from, ok := nodeArea[e.From]
		if !ok {
			return BuildResult{}, fmt.Errorf("edge %s -> %s: unknown from-node", e.From, e.To)
		}
		to, ok := nodeArea[e.To]
		if !ok {
			return BuildResult{}, fmt.Errorf("edge %s -> %s: unknown to-node", e.From, e.To)
		}

		ft, err := parseFlowType(e.FlowType)
		if err != nil {
			return BuildResult{}, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}

		conn := topology.FlowConnection{
			From:          topology.StructureRef{Area: from, Structure: topology.StructureCode(e.From)},
			To:            topology.StructureRef{Area: to, Structure: topology.StructureCode(e.To)},
			FlowType:      ft,
			Subcategory:   e.Subcategory,
			Bidirectional: e.Bidirectional,
		}
		if err := g.LoadConnection(conn); err != nil {
			return BuildResult{}, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}

		if e.ExcelMapping != nil {
			err := mappings.Add(source.Mapping{
				FlowID:  conn.FlowID(),
				Target:  source.Target{Sheet: e.ExcelMapping.Sheet, Column: e.ExcelMapping.Column},
				Enabled: e.ExcelMapping.Enabled,
			})
			if err != nil {
				return BuildResult{}, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
			}
		}
	}

	for _, b := range d.Inflows {
		area, ok := nodeArea[b.Into]
		if !ok {
			return BuildResult{}, fmt.Errorf("inflow into %q: unknown node", b.Into)
		}
		err := g.AddInflowSource(topology.InflowSource{
			Into: topology.StructureRef{Area: area, Structure: topology.StructureCode(b.Into)},
			Kind: topology.InflowKind(b.Kind),
			Name: b.Name,
		})
		if err != nil {
			return BuildResult{}, fmt.Errorf("inflow into %q: %w", b.Into, err)
		}
	}

	for _, b := range d.Outflows {
		area, ok := nodeArea[b.From]
		if !ok {
			return BuildResult{}, fmt.Errorf("outflow from %q: unknown node", b.From)
		}
		err := g.AddOutflowDestination(topology.OutflowDestination{
			From: topology.StructureRef{Area: area, Structure: topology.StructureCode(b.From)},
			Kind: topology.OutflowKind(b.Kind),
			Name: b.Name,
		})
		if err != nil {
			return BuildResult{}, fmt.Errorf("outflow from %q: %w", b.From, err)
		}
	}

	return BuildResult{Graph: g, Mappings: mappings, Issues: g.Validate()}, nil
}

func parseFlowType(s string) (topology.FlowType, error) {
	switch topology.FlowType(s) {
	case topology.FlowClean, topology.FlowDirty, topology.FlowEvaporation, topology.FlowRecirculation:
		return topology.FlowType(s), nil
	default:
		return "", fmt.Errorf("unknown flow type %q", s)
	}
}
