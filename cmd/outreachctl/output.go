package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

const previewLen = 60

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printKV(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := newTable()
	for _, k := range keys {
		tw.AppendRow(table.Row{k, m[k]})
	}
	tw.Render()
}

func printAgent(a agentView) error {
	if jsonOutput() {
		return printJSON(a)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Name", "Role", "Email", "Active", "Actions"})
	tw.AppendRow(table.Row{a.ID, a.Name, a.Role, a.Email, a.IsActive, strings.Join(a.Actions, ", ")})
	tw.Render()
	return nil
}

func printOutcome(o agents.OutreachOutcome) {
	meta := o.Metadata
	tw := newTable()
	tw.AppendRows([]table.Row{
		{"Message ID", o.MessageID},
		{"Ticket ID", o.TicketID},
		{"Run ID", meta.RunID},
		{"Type", meta.MessageType},
		{"Tone", meta.Tone},
		{"Stage", meta.Relationship.Stage},
		{"Examples", meta.ExamplesUsed},
		{"Overall", fmt.Sprintf("%.2f", meta.Analysis.OverallScore)},
		{"Personalization", fmt.Sprintf("%.2f", meta.Analysis.Scores.Personalization)},
		{"Relevance", fmt.Sprintf("%.2f", meta.Analysis.Scores.Relevance)},
		{"Engagement", fmt.Sprintf("%.2f", meta.Analysis.Scores.Engagement)},
		{"Tone score", fmt.Sprintf("%.2f", meta.Analysis.Scores.Tone)},
		{"Call to action", fmt.Sprintf("%.2f", meta.Analysis.Scores.CallToAction)},
	})
	if meta.Analysis.Fallback {
		tw.AppendRow(table.Row{"Scoring", "fallback defaults"})
	}
	tw.Render()

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, o.Message)
	if len(meta.Analysis.Improvements) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Improvements:")
		for _, s := range meta.Analysis.Improvements {
			fmt.Fprintf(stdout, "  - %s\n", s)
		}
	}
}

func printBatch(r model.BatchGenerationResult) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Ticket", "Message ID", "Score", "Preview / Error"})
	for _, item := range r.Successful {
		msgID := ""
		if item.MessageID != nil {
			msgID = item.MessageID.String()
		}
		tw.AppendRow(table.Row{item.TicketID, msgID, fmt.Sprintf("%.2f", item.Metadata.Analysis.OverallScore), preview(item.Message)})
	}
	for _, f := range r.Failed {
		tw.AppendRow(table.Row{f.TicketID, "", "failed", f.Error})
	}
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d/%d succeeded, avg %dms", r.Summary.Succeeded, r.Summary.Total, r.Summary.AverageGenerationMS)})
	tw.Render()
}

func printResearch(r model.ResearchReport) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Ticket", "Qualification", "Priority", "Industry", "Role / Error"})
	for _, o := range r.Researched {
		industry, role := "", ""
		if o.Research != nil {
			industry = o.Research.Company.Industry
			role = o.Research.Person.Role
		}
		tw.AppendRow(table.Row{o.TicketID, fmt.Sprintf("%.2f", o.QualificationScore), o.Priority, industry, role})
	}
	for _, f := range r.Failed {
		tw.AppendRow(table.Row{f.TicketID, "", "failed", "", f.Error})
	}
	tw.Render()
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
