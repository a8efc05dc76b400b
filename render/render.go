// Package render draws task snapshots and notifications for a terminal.
// It only reads: nothing here feeds data back into the core.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/task"
)

// Empty-state messages per section.
const (
	EmptyActive    = "No active tasks"
	EmptyAvailable = "No available tasks right now"
	EmptyHistory   = "No completed tasks yet"
	DegradedBanner = "Server unreachable: showing demo data. Actions are disabled until the next successful refresh."
)

// Label turns an identifier such as "in_progress" into "In Progress".
func Label(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// Dashboard writes the stats line and the active, available, and history
// sections of st.
func Dashboard(w io.Writer, st cache.State) {
	if st.Snapshot == nil {
		fmt.Fprintln(w, "No data loaded yet")
		return
	}
	if st.Degraded() {
		fmt.Fprintln(w, DegradedBanner)
		fmt.Fprintln(w)
	}
	snap := st.Snapshot
	Stats(w, snap.Stats)
	fmt.Fprintln(w)

	section(w, "Active", snap.ActiveTasks, EmptyActive)
	section(w, "Available", snap.AvailableTasks, EmptyAvailable)
	section(w, "History", snap.HistoryTasks, EmptyHistory)

	if !st.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated %s\n", st.UpdatedAt.Format(time.TimeOnly))
	}
}

// Stats writes the aggregate counters on one line.
func Stats(w io.Writer, s task.Stats) {
	fmt.Fprintf(w, "Active: %d   In progress: %d   Completed: %d   Available: %d\n",
		s.Active, s.InProgress, s.Completed, s.Available)
}

func section(w io.Writer, name string, tasks []task.Task, empty string) {
	fmt.Fprintf(w, "== %s (%d) ==\n", name, len(tasks))
	if len(tasks) == 0 {
		fmt.Fprintf(w, "  %s\n\n", empty)
		return
	}
	for _, t := range tasks {
		Card(w, t)
	}
}

// Card writes one task card.
func Card(w io.Writer, t task.Task) {
	head := fmt.Sprintf("#%d  %s", t.ID, t.CompanyName)
	if t.Priority == task.PriorityHigh {
		head += "  [HIGH]"
	}
	fmt.Fprintf(w, "  %s  (%s)\n", head, Label(string(t.Status)))

	device := t.Model
	if t.DeviceType != "" {
		device = t.DeviceType + " " + device
	}
	if t.SerialNumber != "" {
		device += ", s/n " + t.SerialNumber
	}
	fmt.Fprintf(w, "    Device:  %s\n", device)
	if t.Address != "" {
		fmt.Fprintf(w, "    Address: %s\n", t.Address)
	}
	if t.ContactPhone != "" {
		fmt.Fprintf(w, "    Phone:   %s\n", t.ContactPhone)
	}
	if t.Description != "" {
		fmt.Fprintf(w, "    Issue:   %s\n", t.Description)
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "    Done:    %s\n", t.CompletedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)
}

// Table writes tasks as aligned columns.
func Table(w io.Writer, tasks []task.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, EmptyAvailable)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCLIENT\tDEVICE\tADDRESS")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, Label(string(t.Status)), t.CompanyName, t.Model, t.Address)
	}
	return tw.Flush()
}

// Notification writes a notification event. Expiry and dismissal are
// silent.
func Notification(w io.Writer, ev notify.Event) {
	if ev.Kind != notify.EventShown {
		return
	}
	notification(w, ev.Notification)
}

// Notifications writes ns one per line, in order.
func Notifications(w io.Writer, ns []notify.Notification) {
	for _, n := range ns {
		notification(w, n)
	}
}

func notification(w io.Writer, n notify.Notification) {
	fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(n.Severity)), n.Message)
}
