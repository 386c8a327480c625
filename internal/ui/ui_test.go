package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestClampWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, MinTerminalWidth},
		{80, 80},
		{500, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := ClampWidth(tt.in); got != tt.want {
			t.Errorf("ClampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHeaderKeepsParamOrder(t *testing.T) {
	out := NewHeader("Leituras", "regador show",
		Param{Key: "Dispositivo", Value: "10.0.0.7"},
		Param{Key: "Formato", Value: "detailed"},
	).SetWidth(80).Render()

	if !strings.Contains(out, "LEITURAS") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	first, second := strings.Index(out, "10.0.0.7"), strings.Index(out, "detailed")
	if first < 0 || second < 0 || first > second {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestProgressPercent(t *testing.T) {
	p := NewProgress("", "a", "b", "c", "d").SetWidth(80)
	p.UpdateStep(1, StepComplete, "")
	p.UpdateStep(2, StepSkipped, "")
	p.UpdateStep(3, StepRunning, "")
	if p.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", p.Percent)
	}
	if p.Current != 3 {
		t.Errorf("Current = %d, want 3", p.Current)
	}
	p.UpdateStep(9, StepComplete, "") // ignored
	if p.Percent != 0.5 {
		t.Errorf("out of range step changed Percent to %v", p.Percent)
	}
}

func TestRunnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Regar agora",
		Command:   "regador water",
		StepNames: []string{"Conectar", "Regando"},
		Output:    &buf,
		Width:     80,
	})
	err := r.Run(context.Background(), func(_ context.Context, onStep StepCallback) ([]Param, error) {
		onStep(1, StepComplete, "")
		onStep(2, StepRunning, "")
		onStep(2, StepComplete, "5s")
		return []Param{{Key: "Tempo de rega", Value: "5s"}}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"REGAR AGORA", "Conectar", "(5s)", "OK", "Tempo de rega", "Duração"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if r.Progress().Percent != 1 {
		t.Errorf("Percent = %v, want 1", r.Progress().Percent)
	}
}

func TestRunnerFailure(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:           "Regar agora",
		StepNames:       []string{"Conectar"},
		Troubleshooting: []string{"Confira o endereço"},
		Output:          &buf,
		Width:           80,
	})
	boom := errors.New("connection refused")
	err := r.Run(context.Background(), func(_ context.Context, onStep StepCallback) ([]Param, error) {
		onStep(1, StepFailed, "")
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	out := buf.String()
	for _, want := range []string{"FALHA", "connection refused", "Confira o endereço"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
