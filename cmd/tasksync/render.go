package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/service"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

const (
	secondary = lipgloss.Color("#888")
	faded     = lipgloss.Color("#555")

	green  = lipgloss.Color("#00a352")
	red    = lipgloss.Color("#c42912")
	yellow = lipgloss.Color("#c4b810")
)

var (
	icon   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	undone = icon.Foreground(secondary).Render("•")
	done   = icon.Foreground(green).Render("✓")

	title     = lipgloss.NewStyle().Bold(true)
	titleDone = title.Foreground(secondary).Strikethrough(true)

	faint     = lipgloss.NewStyle().Foreground(faded)
	pending   = lipgloss.NewStyle().Foreground(yellow).Render("pending sync")
	syncError = lipgloss.NewStyle().Foreground(red).Render("sync failed")

	divider = lipgloss.NewStyle().Padding(0, 1).Foreground(faded).Render("•")
)

func renderTask(t model.Task) string {
	var b strings.Builder
	if t.Completed {
		b.WriteString(done)
		b.WriteString(titleDone.Render(t.Title))
	} else {
		b.WriteString(undone)
		b.WriteString(title.Render(t.Title))
	}

	switch t.SyncStatus {
	case model.SyncStatusPending, model.SyncStatusSyncing:
		b.WriteString(divider + pending)
	case model.SyncStatusError:
		b.WriteString(divider + syncError)
	}
	if t.ReminderAt != nil {
		b.WriteString(divider + faint.Render("remind "+t.ReminderAt.Local().Format("2006-01-02 15:04")))
	}
	b.WriteString("\n   " + faint.Render(t.ID))
	if t.Description != "" {
		b.WriteString("\n   " + t.Description)
	}
	return b.String()
}

func renderStats(s model.TaskStats) string {
	line := fmt.Sprintf("%d tasks, %d active, %d completed", s.Total, s.Active, s.Completed)
	if s.Unsynced > 0 {
		line += fmt.Sprintf(", %d not yet synced", s.Unsynced)
	}
	return faint.Render(line)
}

func renderState(st service.State) string {
	last := "never"
	if st.LastSyncAt != nil {
		last = st.LastSyncAt.Local().Format(time.DateTime)
	}
	lines := []string{
		"Last sync: " + last,
		fmt.Sprintf("Pending changes: %t", st.HasPendingChanges),
		fmt.Sprintf("Syncing: %t", st.IsSyncing),
		renderStats(st.Stats),
	}
	return strings.Join(lines, "\n")
}

func renderReport(r syncer.Report) string {
	switch r.Outcome {
	case syncer.OutcomeOffline:
		return lipgloss.NewStyle().Foreground(yellow).Render("offline") + ": changes stay queued until the network is back"
	case syncer.OutcomeSkipped:
		return "a sync for this owner is already running"
	}

	mark := lipgloss.NewStyle().Foreground(green).Render("✓")
	if r.Outcome == syncer.OutcomeFailed {
		mark = lipgloss.NewStyle().Foreground(red).Render("✗")
	}
	s := fmt.Sprintf("%s sync %s: pushed %d, replayed %d, pulled %d new, %d updated",
		mark, r.Outcome, r.Pushed, r.Replayed, r.Inserted, r.Overwritten)
	if r.Abandoned > 0 {
		s += fmt.Sprintf(", %d abandoned", r.Abandoned)
	}
	return s
}

func renderEntry(e model.MutationEntry) string {
	status := string(e.Status)
	if e.Status == model.EntryStatusAbandoned {
		status = lipgloss.NewStyle().Foreground(red).Render(status)
	}
	s := fmt.Sprintf("%s  %-6s task %s  retries %d  %s",
		e.ID, e.Operation, e.Payload.TaskID, e.RetryCount, status)
	if e.LastError != "" {
		s += "\n   " + faint.Render(e.LastError)
	}
	return s
}
