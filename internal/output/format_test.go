package output

import (
	"bytes"
	"testing"

	"taskmate/internal/service"
)

func TestFormatTask(t *testing.T) {
	tests := []struct {
		name string
		num  int
		task service.Task
		want string
	}{
		{"open", 1, service.Task{Title: "Buy milk", Priority: service.PriorityLow}, "   1  [ ] Buy milk  (Low)\n"},
		{"completed", 12, service.Task{Title: "Ship report", Priority: service.PriorityHigh, Completed: true}, "  12  [x] Ship report  (High)\n"},
		{"multiline title", 3, service.Task{Title: "line one\nline two", Priority: service.PriorityMedium}, "   3  [ ] line one line two  (Medium)\n"},
		{"blank title", 4, service.Task{Title: "  ", Priority: service.PriorityLow}, "   4  [ ] (untitled)  (Low)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			FormatTask(&buf, tt.num, tt.task)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestFormatTasks(t *testing.T) {
	var buf bytes.Buffer
	FormatTasks(&buf, []service.Task{
		{Title: "a", Priority: service.PriorityLow},
		{Title: "b", Priority: service.PriorityHigh, Completed: true},
	})
	want := "   1  [ ] a  (Low)\n   2  [x] b  (High)\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestFormatHeader(t *testing.T) {
	var buf bytes.Buffer
	FormatHeader(&buf, "Incomplete", 1, 2)
	want := Separator + "\nIncomplete (1 of 2)\n" + Separator + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
