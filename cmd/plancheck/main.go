package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"encounter-recs/internal/config"
	"encounter-recs/internal/domain"
	"encounter-recs/internal/llm"
	"encounter-recs/internal/service"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	failure = color.New(color.FgRed)
	success = color.New(color.FgGreen)
)

var rootCmd = &cobra.Command{
	Use:   "plancheck",
	Short: "Judge the intent planner against fixed trait profiles",
	Long: `plancheck corre el planner contra el LLM configurado y le pide al mismo LLM
que evalue relevancia y diversidad de las busquedas.

Ejemplos:
  plancheck                    # todas las categorias
  plancheck --category books   # solo libros`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPlanCheck,
}

func init() {
	rootCmd.Flags().String("category", "", "restrict the run to one category")
	rootCmd.Flags().Duration("timeout", 10*time.Minute, "overall timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runPlanCheck(cmd *cobra.Command, _ []string) error {
	only, _ := cmd.Flags().GetString("category")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	categories, err := selectCategories(only)
	if err != nil {
		return err
	}

	llmClient := llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	planner := service.NewIntentPlanner(llmClient, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	summary := runScenarios(ctx, planner, llmClient, defaultScenarios(), categories, out)
	success.Fprintf(out, "\nPromedio relevancia: %.2f | diversidad: %.2f | fallos: %d/%d\n",
		summary.avgRelevance(), summary.avgDiversity(), summary.failures, summary.runs)
	if summary.failures > 0 {
		return fmt.Errorf("%d of %d runs failed", summary.failures, summary.runs)
	}
	return nil
}

func selectCategories(only string) ([]domain.Category, error) {
	if strings.TrimSpace(only) == "" {
		return domain.Categories, nil
	}
	c, ok := domain.ParseCategory(only)
	if !ok {
		return nil, errors.New("invalid category " + only)
	}
	return []domain.Category{c}, nil
}

// Scenario es un perfil de rasgos fijo contra el que se mide el planner.
type Scenario struct {
	Name   string
	Traits []domain.Trait
}

func defaultScenarios() []Scenario {
	now := time.Now().UTC()
	mk := func(label string, conf float64, kws ...string) domain.Trait {
		return domain.Trait{Label: label, Confidence: conf, Keywords: kws, ExtractedAt: now}
	}
	return []Scenario{
		{
			Name: "Introvertido curioso",
			Traits: []domain.Trait{
				mk("introversion", 0.9, "silencio", "lectura"),
				mk("curiosidad intelectual", 0.85, "ciencia", "historia"),
				mk("orden", 0.6, "planificacion"),
			},
		},
		{
			Name: "Aventurero social",
			Traits: []domain.Trait{
				mk("extroversion", 0.8, "fiestas", "viajes"),
				mk("busqueda de novedad", 0.9, "aventura", "montana"),
				mk("competitividad", 0.5, "deporte"),
			},
		},
		{
			Name: "Creativo sensible",
			Traits: []domain.Trait{
				mk("apertura a la experiencia", 0.95, "arte", "musica"),
				mk("empatia", 0.7, "cuidado"),
				mk("ansiedad", 0.4),
			},
		},
	}
}

type runSummary struct {
	runs         int
	failures     int
	relevanceSum int
	diversitySum int
}

func (s runSummary) avgRelevance() float64 {
	if s.runs == s.failures {
		return 0
	}
	return float64(s.relevanceSum) / float64(s.runs-s.failures)
}

func (s runSummary) avgDiversity() float64 {
	if s.runs == s.failures {
		return 0
	}
	return float64(s.diversitySum) / float64(s.runs-s.failures)
}

type intentPlanner interface {
	Plan(ctx context.Context, category domain.Category, traits []domain.Trait) (domain.IntentPlan, error)
}

func runScenarios(ctx context.Context, planner intentPlanner, judge llm.LLMClient, scenarios []Scenario, categories []domain.Category, out io.Writer) runSummary {
	var summary runSummary
	for _, sc := range scenarios {
		for _, category := range categories {
			summary.runs++
			heading.Fprintf(out, "[%s / %s]\n", sc.Name, category)

			plan, err := planner.Plan(ctx, category, sc.Traits)
			if err != nil {
				summary.failures++
				failure.Fprintf(out, "planning failed: %v\n", err)
				continue
			}
			keywords := make([]string, 0, len(plan.SearchIntents))
			for _, in := range plan.SearchIntents {
				keywords = append(keywords, in.Keyword)
			}
			fmt.Fprintf(out, "  keywords: %s\n  contexto: %s\n", strings.Join(keywords, " | "), plan.PersonalityContext)

			jr, err := evaluatePlan(ctx, judge, category, sc.Traits, plan)
			if err != nil {
				summary.failures++
				failure.Fprintf(out, "judge failed: %v\n", err)
				continue
			}
			summary.relevanceSum += jr.RelevanceScore
			summary.diversitySum += jr.DiversityScore
			fmt.Fprintf(out, "  relevancia=%d diversidad=%d :: %s\n", jr.RelevanceScore, jr.DiversityScore, jr.Reasoning)
		}
	}
	return summary
}
