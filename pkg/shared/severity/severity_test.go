package severity

import (
	"math/rand"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{Critical, "critical"},
		{High, "high"},
		{Medium, "medium"},
		{Low, "low"},
		{Info, "info"},
		{Unknown, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLevel_Priority(t *testing.T) {
	tests := []struct {
		level    Level
		expected int
	}{
		{Critical, 5},
		{High, 4},
		{Medium, 3},
		{Low, 2},
		{Info, 1},
		{Unknown, 0},
		{Level("invalid"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.Priority(); got != tt.expected {
				t.Errorf("Level.Priority() = %v, want %v", got, tt.expected)
			}
			if got := tt.level.Weight(); got != tt.expected {
				t.Errorf("Level.Weight() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLevel_TotalOrder(t *testing.T) {
	levels := AllLevels()
	for i, a := range levels {
		for j, b := range levels {
			want := 0
			switch {
			case i < j:
				want = 1
			case i > j:
				want = -1
			}
			if got := Compare(a, b); got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", a, b, got, want)
			}
			if Compare(a, b) != -Compare(b, a) {
				t.Errorf("Compare(%s, %s) is not antisymmetric", a, b)
			}
		}
	}

	if !(Low.Priority() < Medium.Priority() && Medium.Priority() < High.Priority() && High.Priority() < Critical.Priority()) {
		t.Error("expected low < medium < high < critical")
	}
}

func TestLevel_IsHigherThan(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Level
		expected bool
	}{
		{"Critical > High", Critical, High, true},
		{"High > Medium", High, Medium, true},
		{"Medium > Low", Medium, Low, true},
		{"Low > Info", Low, Info, true},
		{"Same severity", High, High, false},
		{"Low not > High", Low, High, false},
		{"Unknown not > Info", Unknown, Info, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsHigherThan(tt.b); got != tt.expected {
				t.Errorf("Level.IsHigherThan() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLevel_SARIFLevel(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{Critical, "error"},
		{High, "error"},
		{Medium, "warning"},
		{Low, "note"},
		{Info, "note"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.SARIFLevel(); got != tt.expected {
				t.Errorf("Level.SARIFLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"CRITICAL", Critical},
		{"critical", Critical},
		{"fatal", Critical},
		{"HIGH", High},
		{"error", High},
		{"2", High},
		{"MEDIUM", Medium},
		{"warning", Medium},
		{"1", Medium},
		{"LOW", Low},
		{"convention", Low},
		{"INFO", Info},
		{"note", Info},
		{"", Unknown},
		{"random", Unknown},
		{"  HIGH  ", High},
		{"\tmedium\n", Medium},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FromString(tt.input); got != tt.expected {
				t.Errorf("FromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMaxMin(t *testing.T) {
	if got := Max(Low, Critical); got != Critical {
		t.Errorf("Max() = %v, want critical", got)
	}
	if got := Min(Low, Critical); got != Low {
		t.Errorf("Min() = %v, want low", got)
	}
}

func TestSummaryOf(t *testing.T) {
	levels := []Level{Critical, Critical, High, Medium, Low, Info, Info, Unknown}
	s := SummaryOf(levels)

	if s.Total != 8 {
		t.Errorf("Total = %d, want 8", s.Total)
	}
	if s.Critical != 2 || s.High != 1 || s.Medium != 1 || s.Low != 1 {
		t.Errorf("SummaryOf() = %+v", s)
	}
	if s.Info() != 3 {
		t.Errorf("Info() = %d, want 3", s.Info())
	}
	if s.Critical+s.High+s.Medium+s.Low+s.Info() != s.Total {
		t.Error("bucket counts do not add up to Total")
	}
	if s.Highest() != Critical {
		t.Errorf("Highest() = %v, want critical", s.Highest())
	}
}

func TestSummaryOf_OrderInvariant(t *testing.T) {
	levels := []Level{Critical, High, High, Medium, Low, Low, Low, Info}
	want := SummaryOf(levels)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]Level(nil), levels...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := SummaryOf(shuffled); got != want {
			t.Fatalf("SummaryOf(shuffled) = %+v, want %+v", got, want)
		}
	}
}

func TestSummary_HighestEmpty(t *testing.T) {
	var s Summary
	if got := s.Highest(); got != Unknown {
		t.Errorf("Highest() = %v, want unknown", got)
	}
}
