// Command parity_check replays recorded feature vectors through the exported
// model artifacts and compares the outcome against expectations captured from
// the retired Python service. It exits non-zero when any critical case
// diverges, which makes it usable as a CI gate after a model re-export.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/noah-isme/edupredict-api/internal/ml"
	"github.com/noah-isme/edupredict-api/internal/models"
	"github.com/noah-isme/edupredict-api/internal/service"
	"github.com/noah-isme/edupredict-api/pkg/config"
)

type testCase struct {
	Name          string             `json:"name"`
	Features      map[string]float64 `json:"features"`
	ExpectedGrade string             `json:"expected_grade"`
	ExpectedRisk  string             `json:"expected_risk"`
	Critical      bool               `json:"critical"`
}

type caseFile struct {
	Cases []testCase `json:"cases"`
}

type outcome struct {
	Case       testCase
	Grade      models.GradeLabel
	Risk       models.RiskLevel
	Confidence float64
	GradeMatch bool
	RiskMatch  bool
	Err        error
}

func main() {
	var (
		modelDir  string
		casesPath string
	)

	flag.StringVar(&modelDir, "model-dir", "./ml_models", "Directory holding the exported model artifacts")
	flag.StringVar(&casesPath, "cases", filepath.Join("scripts", "parity_check", "cases.json"), "Path to JSON parity cases")
	flag.Parse()

	artifacts, err := ml.LoadArtifacts(config.ModelConfig{
		Dir:             modelDir,
		ClassifierFile:  "grade_predictor.json",
		ScalerFile:      "scaler.json",
		MetadataFile:    "model_metadata.json",
		FeatureListFile: "feature_list.json",
	})
	if err != nil {
		log.Fatalf("failed to load model artifacts: %v", err)
	}

	cases, err := loadCases(casesPath)
	if err != nil {
		log.Fatalf("failed to load parity cases: %v", err)
	}

	var breaking, optionalDiff int
	outcomes := make([]outcome, 0, len(cases))
	for _, tc := range cases {
		out := runCase(artifacts, tc)
		if out.Err != nil || !out.GradeMatch || !out.RiskMatch {
			if tc.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		outcomes = append(outcomes, out)
	}

	printReport(outcomes)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadCases(path string) ([]testCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file caseFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("no cases defined in %s", path)
	}
	return file.Cases, nil
}

func runCase(artifacts *ml.Artifacts, tc testCase) outcome {
	out := outcome{Case: tc}

	vector := make([]float64, len(artifacts.Metadata.FeatureOrder))
	for i, name := range artifacts.Metadata.FeatureOrder {
		vector[i] = tc.Features[name]
	}

	scaled, err := artifacts.Scaler.Transform(vector)
	if err != nil {
		out.Err = fmt.Errorf("scale features: %w", err)
		return out
	}
	probs, err := artifacts.Classifier.PredictProba(scaled)
	if err != nil {
		out.Err = fmt.Errorf("predict: %w", err)
		return out
	}
	class, err := artifacts.Classifier.Predict(scaled)
	if err != nil {
		out.Err = fmt.Errorf("predict class: %w", err)
		return out
	}

	grade, err := service.GradeLabelFor(class)
	if err != nil {
		out.Err = err
		return out
	}
	out.Grade = grade
	out.Confidence = probs[class]
	out.Risk = service.RiskLevelFor(grade, out.Confidence)
	out.GradeMatch = string(out.Grade) == tc.ExpectedGrade
	out.RiskMatch = string(out.Risk) == tc.ExpectedRisk
	return out
}

func printReport(results []outcome) {
	fmt.Println("Model Parity Report")
	fmt.Println("====================")
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "ERROR"
		} else if !res.GradeMatch || !res.RiskMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s\n", status, res.Case.Name)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  Grade: %s (want %s) | Risk: %s (want %s) | Confidence: %.4f | Critical: %t\n",
			res.Grade, res.Case.ExpectedGrade, res.Risk, res.Case.ExpectedRisk, res.Confidence, res.Case.Critical)
	}
}
