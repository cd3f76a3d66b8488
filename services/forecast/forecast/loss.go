// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forecast

import (
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch is returned when labels and predictions differ in
// length.
var ErrLengthMismatch = errors.New("labels and predictions differ in length")

// logLossEpsilon clamps predictions away from 0 and 1.
const logLossEpsilon = 1e-15

// Loss scores predictions against labels. Lower is better.
type Loss func(labels, predictions []float64) (float64, error)

// Losses maps loss names to functions.
var Losses = map[string]Loss{
	"log":      LogLoss,
	"avg_diff": AvgDiffLoss,
	"mae":      MAELoss,
}

func checkLengths(labels, predictions []float64) error {
	if len(labels) != len(predictions) {
		return fmt.Errorf("%w: %d labels, %d predictions", ErrLengthMismatch, len(labels), len(predictions))
	}
	return nil
}

// LogLoss returns the summed binary cross entropy of probability
// predictions against 0/1 labels.
func LogLoss(labels, predictions []float64) (float64, error) {
	if err := checkLengths(labels, predictions); err != nil {
		return 0, err
	}
	var loss float64
	for i, label := range labels {
		p := math.Max(logLossEpsilon, math.Min(1-logLossEpsilon, predictions[i]))
		loss -= label*math.Log(p) + (1-label)*math.Log(1-p)
	}
	return loss, nil
}

// AvgDiffLoss returns 1 minus the gap between the mean prediction for
// positive labels and the mean prediction for the rest. It is 0 when
// either class is empty.
func AvgDiffLoss(labels, predictions []float64) (float64, error) {
	if err := checkLengths(labels, predictions); err != nil {
		return 0, err
	}
	var posSum, negSum float64
	var posCount, negCount int
	for i, label := range labels {
		if label == 1 {
			posSum += predictions[i]
			posCount++
		} else {
			negSum += predictions[i]
			negCount++
		}
	}
	if posCount == 0 || negCount == 0 {
		return 0, nil
	}
	return 1 - (posSum/float64(posCount) - negSum/float64(negCount)), nil
}

// MAELoss returns the mean absolute error, 0 for no samples.
func MAELoss(labels, predictions []float64) (float64, error) {
	if err := checkLengths(labels, predictions); err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		return 0, nil
	}
	var sum float64
	for i, label := range labels {
		sum += math.Abs(label - predictions[i])
	}
	return sum / float64(len(labels)), nil
}
