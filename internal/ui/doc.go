// Package ui renders the output of the one-shot regador commands.
//
// Unlike the dashboard, these components print and exit. A Runner shows a
// Header with the command parameters, then one line per Step as the
// operation reports progress, then a Result box:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Regar agora",
//	    Command:   "regador water",
//	    Params:    []ui.Param{{Key: "Dispositivo", Value: addr}},
//	    StepNames: []string{"Conectar", "Enviar pedido", "Regando", "Aguardando"},
//	})
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ...
//	    onStep(1, ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Logging is silent unless --log-level is set, so the styled output is not
// interleaved with log lines.
package ui
