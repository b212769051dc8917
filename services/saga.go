package services

import (
	"context"

	"go.uber.org/zap"
)

// sagaStep ist ein Schritt der Deposit-Pipeline. Required-Schritte
// brechen bei Fehler ab und lösen die Kompensationen aller bereits
// gelaufenen Schritte in umgekehrter Reihenfolge aus; Best-Effort-
// Schritte loggen nur und lassen die Pipeline weiterlaufen.
type sagaStep struct {
	name       string
	required   bool
	run        func(ctx context.Context) error
	compensate func(ctx context.Context)
}

// runSaga führt die Schritte der Reihe nach aus. Kompensationen laufen
// auch dann weiter, wenn einzelne davon selbst fehlschlagen.
func runSaga(ctx context.Context, logger *zap.Logger, steps []sagaStep) error {
	var done []sagaStep
	for _, step := range steps {
		logger.Debug("Pipeline-Schritt", zap.String("step", step.name))
		err := step.run(ctx)
		if err == nil {
			done = append(done, step)
			continue
		}
		if !step.required {
			logger.Warn("Optionaler Schritt fehlgeschlagen, Pipeline läuft weiter",
				zap.String("step", step.name), zap.Error(err))
			continue
		}
		logger.Error("Schritt fehlgeschlagen, Deposit wird zurückgerollt",
			zap.String("step", step.name), zap.Error(err))
		for i := len(done) - 1; i >= 0; i-- {
			if done[i].compensate != nil {
				done[i].compensate(ctx)
			}
		}
		return err
	}
	return nil
}
