// Command tune searches pulse and coast durations that maximise mean
// electrical output over a fixed simulated horizon, then prints them as a
// params overlay.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"

	"gonum.org/v1/gonum/optimize"
	"gopkg.in/yaml.v3"

	"kppsim/internal/app/engine"
	"kppsim/internal/app/params"
)

const (
	minDuration = 0.2
	maxDuration = 20.0
)

type result struct {
	PulseDuration float64 `yaml:"pulse_duration"`
	CoastDuration float64 `yaml:"coast_duration"`
	MeanPower     float64 `yaml:"-"`
	Evaluations   int     `yaml:"-"`
}

func main() {
	paramsFile := flag.String("params", "", "Base params YAML file (empty = defaults)")
	horizon := flag.Float64("horizon", 120, "Simulated seconds per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	flag.Parse()

	base, err := params.Load(*paramsFile)
	if err != nil {
		log.Fatalf("load params: %v", err)
	}
	best, err := tune(base, *horizon, *maxEvals)
	if err != nil {
		log.Fatalf("tune: %v", err)
	}

	out, err := yaml.Marshal(best)
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Printf("# mean power %.1f W after %d evaluations\n", best.MeanPower, best.Evaluations)
	os.Stdout.Write(out)
}

func tune(base params.Params, horizon float64, maxEvals int) (result, error) {
	best := result{MeanPower: math.Inf(-1)}
	var evalErr error

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			pulse, coast := clamp(x[0]), clamp(x[1])
			power, err := meanPower(base, pulse, coast, horizon)
			best.Evaluations++
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			if power > best.MeanPower {
				best.PulseDuration, best.CoastDuration, best.MeanPower = pulse, coast, power
			}
			return -power
		},
	}
	settings := &optimize.Settings{FuncEvaluations: maxEvals}
	initX := []float64{base.PulseDuration, base.CoastDuration}

	// Hitting the evaluation budget is the normal way out.
	if _, err := optimize.Minimize(problem, initX, settings, &optimize.NelderMead{}); err != nil && best.Evaluations == 0 {
		return result{}, err
	}
	if math.IsInf(best.MeanPower, -1) {
		return result{}, fmt.Errorf("no successful evaluation: %w", evalErr)
	}
	return best, nil
}

// meanPower runs a headless engine for horizon simulated seconds and
// averages the electrical output over every tick.
func meanPower(base params.Params, pulse, coast, horizon float64) (float64, error) {
	p, err := base.Apply(map[string]any{
		"pulse_duration": pulse,
		"coast_duration": coast,
	})
	if err != nil {
		return 0, err
	}
	eng, err := engine.New(p, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return 0, err
	}
	ticks := int(math.Ceil(horizon / p.TimeStep))
	if ticks < 1 {
		ticks = 1
	}
	var sum float64
	for i := 0; i < ticks; i++ {
		snap, err := eng.Step(p.TimeStep)
		if err != nil {
			return 0, err
		}
		sum += snap.Power
	}
	return sum / float64(ticks), nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return minDuration
	}
	return math.Max(minDuration, math.Min(maxDuration, v))
}
