package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"seal-gateway/internal/gemini"
	"seal-gateway/internal/intervention"
)

// scoreFile is the input document: raw per-area scores plus class metadata.
type scoreFile struct {
	Scores   map[string][]float64 `json:"scores"`
	Metadata struct {
		ClassID       string `json:"class_id"`
		DeficientArea string `json:"deficient_area"`
		NumStudents   int    `json:"num_students"`
	} `json:"metadata"`
}

func main() {
	baseURL := flag.String("base-url", envOr("GEMINI_BASE_URL", ""), "Gemini-compatible base URL")
	apiKey := flag.String("api-key", envOr("GEMINI_API_KEY", ""), "API key for endpoint")
	model := flag.String("model", envOr("GEMINI_MODEL", ""), "Model ID")
	scoresPath := flag.String("scores", "", "Path to scores JSON file (required)")
	safetyLevel := flag.String("safety-level", "standard", "Safety level: strict|standard|permissive")
	temperature := flag.Float64("temperature", 0.7, "Sampling temperature")
	maxTokens := flag.Int("max-tokens", 2048, "Max output tokens")
	maxAttempts := flag.Int("max-attempts", 3, "Max model call attempts")
	timeout := flag.Duration("timeout", 60*time.Second, "HTTP timeout")
	format := flag.String("format", "json", "Output format: json|text")
	flag.Parse()

	if *scoresPath == "" {
		fmt.Fprintln(os.Stderr, "-scores is required")
		os.Exit(2)
	}
	data, err := os.ReadFile(*scoresPath)
	if err != nil {
		fatal("read scores file", err)
	}
	var input scoreFile
	if err := json.Unmarshal(data, &input); err != nil {
		fatal("parse scores file", err)
	}

	level, err := intervention.ParseSafetyLevel(*safetyLevel)
	if err != nil {
		fatal("parse safety level", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := gemini.NewClient(gemini.Config{
		BaseURL: *baseURL,
		APIKey:  *apiKey,
		Model:   *model,
		Timeout: *timeout,
	})
	health := intervention.NewHealthMonitor(intervention.SubsystemModel)
	gateway := intervention.NewGateway(client, intervention.GatewayConfig{
		Params: intervention.GenerationParams{
			Temperature:     *temperature,
			MaxOutputTokens: *maxTokens,
		},
		MaxAttempts: *maxAttempts,
	}, health, intervention.SubsystemModel, logger)

	svc := intervention.NewService(intervention.ServiceDeps{
		Gateway:   gateway,
		Prompts:   intervention.NewPromptBuilder(intervention.StaticTemplates{}),
		Guardrail: intervention.NewGuardrail(level, logger),
		Validator: intervention.NewPlanValidator(),
		Logger:    logger,
	})

	scores := make(intervention.ScoreSet, len(input.Scores))
	for area, values := range input.Scores {
		scores[intervention.Area(area)] = values
	}
	request := intervention.InterventionRequest{
		Scores: scores,
		Metadata: intervention.ClassMetadata{
			ClassID:       input.Metadata.ClassID,
			DeficientArea: intervention.Area(input.Metadata.DeficientArea),
			NumStudents:   input.Metadata.NumStudents,
		},
	}

	ctx := context.Background()
	plan, err := svc.GeneratePlan(ctx, request)
	if err != nil {
		fatal("generate plan", err)
	}

	switch *format {
	case "text":
		printText(plan)
	default:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(plan); err != nil {
			fatal("encode plan", err)
		}
	}
}

func printText(plan *intervention.InterventionPlan) {
	fmt.Println("Analysis:")
	fmt.Printf("  %s\n\n", plan.Analysis)
	fmt.Println("Strategies:")
	for i, strategy := range plan.Strategies {
		fmt.Printf("  %d. %s (%s)\n", i+1, strategy.Activity, strategy.TimeAllocation)
		for _, step := range strategy.Implementation {
			fmt.Printf("     - %s\n", step)
		}
	}
	fmt.Println("\nTimeline:")
	for phase, items := range plan.Timeline {
		fmt.Printf("  %s:\n", phase)
		for _, item := range items {
			fmt.Printf("    - %s\n", item)
		}
	}
	fmt.Println("Success metrics:")
	for _, metric := range plan.SuccessMetrics.Quantitative {
		fmt.Printf("  [quantitative] %s\n", metric)
	}
	for _, metric := range plan.SuccessMetrics.Qualitative {
		fmt.Printf("  [qualitative] %s\n", metric)
	}
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
