package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/careprep/careprep/internal/analytics"
	"github.com/careprep/careprep/internal/assemble"
	"github.com/careprep/careprep/internal/bank"
	"github.com/careprep/careprep/internal/handler"
	appI18n "github.com/careprep/careprep/internal/i18n"
	"github.com/careprep/careprep/internal/model"
	"github.com/careprep/careprep/internal/score"
	"github.com/careprep/careprep/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "careprep",
		Short: "Multi-language practice exam delivery, scoring, and study guidance",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateFormCmd(), scoreCmd(), analyzeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "careprep.db", "SQLite database path")
	f.StringP("bank", "b", "questions/question_bank.json", "Path to question bank JSON")
	f.StringP("lang", "l", "en", "Default delivery language (en, es, fr, ht)")
	f.Int("per-chapter", 12, "Questions drawn per chapter for live attempts")
	f.IntSlice("chapters", []int{1, 2, 3, 4, 5}, "Chapters covered by live attempts")
	f.Duration("time-limit", 90*time.Minute, "Attempt time limit (0 = untimed)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func generateFormCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-form",
		Short: "Freeze a reproducible exam form from a blueprint",
		RunE:  runGenerateForm,
	}
	f := cmd.Flags()
	f.StringP("bank", "b", "questions/question_bank.json", "Path to question bank JSON")
	f.String("blueprint", "", "Path to blueprint JSON (required)")
	f.String("form-id", "", "Form identifier (default: generated)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("blueprint")

	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an attempt against a frozen form",
		RunE:  runScore,
	}
	f := cmd.Flags()
	f.StringP("bank", "b", "questions/question_bank.json", "Path to question bank JSON")
	f.String("form", "", "Path to form JSON (required)")
	f.String("attempt", "", "Path to attempt JSON (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("form")
	_ = cmd.MarkFlagRequired("attempt")

	return cmd
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute and persist write-once analytics for a finished attempt",
		RunE:  runAnalyze,
	}
	f := cmd.Flags()
	f.StringP("bank", "b", "questions/question_bank.json", "Path to question bank JSON")
	f.String("attempt", "", "Path to attempt JSON (required)")
	f.String("form", "", "Path to form JSON (optional; supplies the delivered sequence)")
	f.String("db", "careprep.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("attempt")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CAREPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("careprep")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/careprep")
	v.AddConfigPath("/etc/careprep")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	b, err := loadBank(v.GetString("bank"))
	if err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := model.DeliveryConfig{
		PerChapter:  v.GetInt("per-chapter"),
		ChapterTags: v.GetIntSlice("chapters"),
		TimeLimit:   v.GetDuration("time-limit"),
		DefaultLang: lang,
	}

	h := handler.New(db, b, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"bank", v.GetString("bank"),
		"questions", b.Len(),
		"lang", lang,
		"per_chapter", cfg.PerChapter,
		"chapters", cfg.ChapterTags,
		"time_limit", cfg.TimeLimit,
	)
	return http.ListenAndServe(addr, r)
}

func runGenerateForm(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	b, err := loadBank(v.GetString("bank"))
	if err != nil {
		return err
	}

	var bp model.Blueprint
	if err := readJSONFile(v.GetString("blueprint"), &bp); err != nil {
		return fmt.Errorf("read blueprint: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return err
	}

	formID := v.GetString("form-id")
	if formID == "" {
		formID = uuid.NewString()
	}

	form, err := assemble.BuildForm(bp, b, formID, time.Now())
	if err != nil {
		return fmt.Errorf("build form: %w", err)
	}

	slog.Info("form generated", "exam_form_id", form.ExamFormID, "questions", len(form.QuestionIDs))
	return writeJSONOutput(v.GetString("output"), form)
}

func runScore(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	b, err := loadBank(v.GetString("bank"))
	if err != nil {
		return err
	}

	var form model.Form
	if err := readJSONFile(v.GetString("form"), &form); err != nil {
		return fmt.Errorf("read form: %w", err)
	}
	var attempt model.Attempt
	if err := readJSONFile(v.GetString("attempt"), &attempt); err != nil {
		return fmt.Errorf("read attempt: %w", err)
	}

	result := score.Score(form, b, attempt)
	slog.Info("attempt scored",
		"attempt_id", result.AttemptID,
		"correct", result.Correct,
		"total", result.TotalQuestions,
		"percent", result.Percent,
	)
	return writeJSONOutput(v.GetString("output"), result)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	b, err := loadBank(v.GetString("bank"))
	if err != nil {
		return err
	}

	var attempt model.Attempt
	if err := readJSONFile(v.GetString("attempt"), &attempt); err != nil {
		return fmt.Errorf("read attempt: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// The form gives the full delivered sequence, unanswered questions
	// included; without it only answered questions enter the analysis.
	var deliveredQIDs []string
	if formPath := v.GetString("form"); formPath != "" {
		var form model.Form
		if err := readJSONFile(formPath, &form); err != nil {
			return fmt.Errorf("read form: %w", err)
		}
		deliveredQIDs = form.QuestionIDs
	} else {
		for _, a := range attempt.Answers {
			deliveredQIDs = append(deliveredQIDs, a.QuestionID)
		}
	}

	payload, err := analytics.FinalizeAttempt(
		attempt.AttemptID, attempt.Status, deliveredQIDs, attempt.AnswersByQID(), b, db,
	)
	if err != nil {
		return fmt.Errorf("finalize analytics: %w", err)
	}

	slog.Info("analytics persisted",
		"attempt_id", payload.AttemptID,
		"overall_status", payload.OverallStatus,
		"guidance_entries", len(payload.ChapterGuidance),
	)
	return writeJSONOutput("-", payload)
}

func loadBank(path string) (*bank.Bank, error) {
	b, err := bank.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	for _, warning := range b.Warnings {
		slog.Warn("question bank record", "warning", warning)
	}
	slog.Info("loaded question bank", "path", path, "questions", b.Len())
	return b, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSONOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}
